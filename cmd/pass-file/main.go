// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// pass-file is a password helper for dbkey that keeps the database password
// in a plaintext file:
//
//	pass-file read <file>    print the stored password
//	pass-file write <file>   store the password read from stdin and print it back
//
// The file gives no protection beyond its permissions. Use it for tests and
// throwaway databases only.
//
// config.yaml:
//
//	password_command:
//	  argv: ["/usr/local/bin/pass-file", "/home/me/.dbkey/vault.pass"]
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aplane-algo/dbkey/internal/fsutil"
	"github.com/aplane-algo/dbkey/internal/passwordcmd"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pass-file: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: pass-file <%s|%s> <file>", passwordcmd.VerbRead, passwordcmd.VerbWrite)
	}
	verb, path := args[0], args[1]

	switch verb {
	case passwordcmd.VerbRead:
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err

	case passwordcmd.VerbWrite:
		password, err := io.ReadAll(io.LimitReader(stdin, passwordcmd.MaxOutput+1))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if len(password) > passwordcmd.MaxOutput {
			return fmt.Errorf("password longer than %d bytes", passwordcmd.MaxOutput)
		}
		if err := fsutil.WriteFileAtomic(path, password); err != nil {
			return err
		}
		_, err = stdout.Write(password)
		return err

	default:
		return fmt.Errorf("unknown verb %q", verb)
	}
}
