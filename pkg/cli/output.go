package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// FormatYAML is the default terminal rendering.
	FormatYAML OutputFormat = "yaml"
	// FormatJSON renders indented JSON, for piping into jq.
	FormatJSON OutputFormat = "json"
)

// Render writes result to w in the given format. An empty format means
// YAML.
func Render(w io.Writer, result any, format OutputFormat) error {
	switch format {
	case FormatYAML, "":
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("render yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Output renders result to stdout, or to file when one is given.
func Output(result any, format OutputFormat, file string) error {
	if file == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// Terminal status lines. Status goes to stdout; verbose tracing to
// stderr so it never pollutes piped output.

// PrintSuccess prints a checkmarked status line.
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintInfo prints an informational status line.
func PrintInfo(format string, args ...any) {
	fmt.Printf("ℹ "+format+"\n", args...)
}

// PrintWarning prints a warning status line.
func PrintWarning(format string, args ...any) {
	fmt.Printf("⚠ "+format+"\n", args...)
}

// PrintVerbose prints to stderr when verbose is set.
func PrintVerbose(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}
