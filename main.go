// Package main is the entry point for the pgload CLI application.
// It bulk-loads delimited text files into PostgreSQL tables through
// the server's native COPY protocol.
package main

import (
	"pgload/cli/cmd"
)

// main is the entry point for the pgload CLI application.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
