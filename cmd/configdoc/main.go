// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// configdoc generates markdown documentation from the config struct tags.
// Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md
package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/aplane-algo/dbkey/internal/config"
	"github.com/aplane-algo/dbkey/internal/logging"
)

type envVar struct {
	Name        string
	Description string
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--help" {
		fmt.Println("Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md")
		fmt.Println()
		fmt.Println("Generates markdown documentation from Go struct tags.")
		return
	}
	render(os.Stdout)
}

func render(w io.Writer) {
	fmt.Fprintln(w, "# Configuration Reference")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Auto-generated from Go struct tags. Do not edit manually.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "---")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## dbkey Configuration")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: `config.yaml` in the data directory (`-d` or `%s`)\n", config.DataDirEnv)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Field | Type | Default | Description |")
	fmt.Fprintln(w, "|-------|------|---------|-------------|")
	printFields(w, reflect.TypeOf(config.Config{}), "")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Environment Variables")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Variable | Description |")
	fmt.Fprintln(w, "|----------|-------------|")
	for _, env := range envVars(reflect.TypeOf(config.Config{})) {
		fmt.Fprintf(w, "| `%s` | %s |\n", env.Name, env.Description)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Data Directory")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. `-d <path>` flag")
	fmt.Fprintf(w, "2. `%s` environment variable\n", config.DataDirEnv)
	fmt.Fprintf(w, "3. `%s`\n", config.DefaultDataDir)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Current Password")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. `password_command` when configured")
	fmt.Fprintln(w, "2. Interactive prompt")
}

func printFields(w io.Writer, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		name := strings.Split(field.Tag.Get("yaml"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}

		desc := field.Tag.Get("description")
		if field.Type.Kind() == reflect.Struct {
			if desc == "" {
				desc = "(nested config block)"
			}
			fmt.Fprintf(w, "| `%s` | object | (none) | %s |\n", name, desc)
			printFields(w, field.Type, name)
			continue
		}
		if desc == "" {
			desc = "(no description)"
		}

		def := field.Tag.Get("default")
		switch def {
		case "":
			def = "(none)"
		case `""`:
			def = "(empty string)"
		}

		fmt.Fprintf(w, "| `%s` | %s | `%s` | %s |\n", name, formatType(field.Type), def, desc)
	}
}

// envVars collects env tags, followed by the variables read outside config.
func envVars(t reflect.Type) []envVar {
	var vars []envVar
	var walk func(reflect.Type)
	walk = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.Type.Kind() == reflect.Struct {
				walk(field.Type)
				continue
			}
			if name := field.Tag.Get("env"); name != "" {
				vars = append(vars, envVar{name, field.Tag.Get("description")})
			}
		}
	}
	walk(t)

	return append(vars,
		envVar{config.DataDirEnv, "Data directory (config, quick unlock cache)"},
		envVar{logging.DebugEnv, "Set to any value to enable debug logging"},
	)
}

func formatType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t.String() == "time.Duration" {
			return "duration"
		}
		return "int"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "uint"
	case reflect.Bool:
		return "bool"
	case reflect.Slice:
		return "[]" + formatType(t.Elem())
	case reflect.Map:
		return "map[" + formatType(t.Key()) + "]" + formatType(t.Elem())
	default:
		return t.String()
	}
}
