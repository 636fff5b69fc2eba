// Package cli provides shared utilities for the rtvoice command-line tool.
//
// This package includes:
//   - Configuration management (contexts, kubectl-style)
//   - Result rendering (YAML, JSON)
//   - Request file loading (YAML/JSON)
//
// Configuration is stored in the ~/.rtvoice/ directory, supporting
// multiple named contexts so one machine can hold credentials for
// several accounts or endpoints.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig()
//
//	ctx, err := cfg.GetCurrentContext()
//
//	err = cli.Output(result, cli.FormatJSON, outputPath)
package cli
