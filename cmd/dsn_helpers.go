// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"os"
	"strings"

	"pgload/cli/internal/keychain"

	"github.com/pterm/pterm"
)

// resolveDSN returns the raw DSN to use for a command. A non-empty
// positional argument wins; otherwise the resolution order is the
// PGLOAD_DSN and DATABASE_URL environment variables, then the OS keychain
// populated by `pgload connect`.
func resolveDSN(positional string) (string, error) {
	if strings.TrimSpace(positional) != "" {
		return strings.TrimSpace(positional), nil
	}
	if env := strings.TrimSpace(os.Getenv("PGLOAD_DSN")); env != "" {
		pterm.Println("Using DSN from PGLOAD_DSN environment variable")
		return env, nil
	}
	if env := strings.TrimSpace(os.Getenv("DATABASE_URL")); env != "" {
		pterm.Println("Using DSN from DATABASE_URL environment variable")
		return env, nil
	}
	km, err := keychain.GetManager()
	if err == nil {
		if v, err := km.LoadDBDSN(); err == nil && strings.TrimSpace(v) != "" {
			pterm.Println("Using DSN from OS keychain")
			return strings.TrimSpace(v), nil
		}
	}
	return "", errors.New("no database connection configured; pass a DSN, set PGLOAD_DSN, or run 'pgload connect'")
}
