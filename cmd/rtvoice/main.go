// Package main provides the rtvoice CLI tool.
//
// Usage:
//
//	rtvoice [flags] <command> [args]
//
// Commands:
//
//	session  - Realtime session operations (chat, events, token)
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.rtvoice/
//	Use 'rtvoice config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/streamvox/realtime-go/cmd/rtvoice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
