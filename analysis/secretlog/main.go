// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Command secretlog flags log and print statements that may write key
// material: passwords, master keys, token secrets and challenge responses.
//
// Usage: secretlog <repo-root>
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

// outputCall matches calls that write to logs, errors or the terminal.
var outputCall = regexp.MustCompile(`\b(slog|log|logger|fmt|a)\.(Debug|Info|Warn|Error|Print|Println|Printf|Fprint|Fprintln|Fprintf|Errorf|printf)\(`)

// secretArg matches identifiers holding key material when used as an argument.
var secretArg = regexp.MustCompile(`[,(]\s*(password|repeat|pw|masterKey|master|secret|raw|resp|response|sealed)\s*[,)]`)

// allowed are argument forms that only describe key material.
var allowed = []*regexp.Regexp{
	regexp.MustCompile(`len\((password|master|secret|raw)\)`),
	regexp.MustCompile(`(?i)"[^"]*%[sqv]?[^"]*"\s*,\s*(path|id|serial)`),
}

// exemptFiles intentionally show secrets the user asked for.
var exemptFiles = map[string]string{
	"cmd/pass-file/main.go": "password helper protocol prints the stored password",
}

type finding struct {
	file    string
	line    int
	content string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: secretlog <repo-root>")
		os.Exit(1)
	}

	findings, checked, err := walk(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking directory: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Secret Logging Analysis\n")
	fmt.Printf("=======================\n")
	fmt.Printf("Files checked: %d\n\n", checked)

	if len(findings) == 0 {
		fmt.Println("No issues found.")
		return
	}

	fmt.Printf("Potential issues: %d\n\n", len(findings))
	for _, f := range findings {
		fmt.Printf("%s:%d\n  %s\n\n", f.file, f.line, strings.TrimSpace(f.content))
	}
	os.Exit(1)
}

func walk(root string) ([]finding, int, error) {
	var findings []finding
	checked := 0

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			switch info.Name() {
			case "vendor", ".git", "analysis", "_examples":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if _, ok := exemptFiles[filepath.ToSlash(rel)]; ok {
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
	return findings, checked, err
}

// scan reports output calls in r that pass a secret-named argument.
func scan(name string, r io.Reader) []finding {
	var findings []finding
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		if !outputCall.MatchString(line) || !secretArg.MatchString(line) {
			continue
		}
		if isAllowed(line) {
			continue
		}
		findings = append(findings, finding{file: name, line: lineNum, content: line})
	}
	return findings
}

func isAllowed(line string) bool {
	for _, pat := range allowed {
		if pat.MatchString(line) {
			return true
		}
	}
	return false
}
