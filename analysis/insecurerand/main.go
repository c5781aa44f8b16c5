// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Command insecurerand checks that packages producing salts, seeds, key files
// and token secrets use crypto/rand and never math/rand.
//
// Usage: insecurerand <repo-root>
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// criticalDirs must never use math/rand.
var criticalDirs = []string{
	"internal/crypto",
	"internal/keys",
	"internal/challenge",
	"internal/database",
	"internal/quickunlock",
}

var mathRandImport = regexp.MustCompile(`"math/rand(/v2)?"`)

var cryptoRandImport = regexp.MustCompile(`"crypto/rand"`)

// mathRandCalls exist only in math/rand.
var mathRandCalls = regexp.MustCompile(`rand\.(Seed|Intn\(|Int31|Int63|Float|Perm|Shuffle|NewSource)`)

type finding struct {
	file    string
	line    int
	content string
	reason  string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: insecurerand <repo-root>")
		os.Exit(1)
	}
	root := os.Args[1]

	var findings []finding
	checked := 0
	for _, dir := range criticalDirs {
		err := filepath.Walk(filepath.Join(root, dir), func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			checked++
			findings = append(findings, scan(path, f)...)
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error walking %s: %v\n", dir, err)
		}
	}

	fmt.Printf("Insecure Random Analysis\n")
	fmt.Printf("========================\n")
	fmt.Printf("Files checked: %d\n", checked)
	fmt.Printf("Critical directories: %v\n\n", criticalDirs)

	if len(findings) == 0 {
		fmt.Println("No issues found.")
		return
	}

	fmt.Printf("Potential issues: %d\n\n", len(findings))
	for _, f := range findings {
		fmt.Printf("%s:%d\n", f.file, f.line)
		fmt.Printf("  Line: %s\n", strings.TrimSpace(f.content))
		fmt.Printf("  Issue: %s\n\n", f.reason)
	}
	os.Exit(1)
}

// scan flags a math/rand import, and math/rand-only calls in files that do
// not import crypto/rand.
func scan(name string, r io.Reader) []finding {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	var findings []finding
	hasCryptoRand := false
	for i, line := range lines {
		if mathRandImport.MatchString(line) {
			findings = append(findings, finding{
				file: name, line: i + 1, content: line,
				reason: "math/rand import in security-critical package, use crypto/rand",
			})
		}
		if cryptoRandImport.MatchString(line) {
			hasCryptoRand = true
		}
	}
	if hasCryptoRand {
		return findings
	}

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		if mathRandCalls.MatchString(line) {
			findings = append(findings, finding{
				file: name, line: i + 1, content: line,
				reason: "math/rand function in security-critical code",
			})
		}
	}
	return findings
}
