package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// LoadRequest reads a session request file into v. YAML and JSON are
// accepted; "-" reads from stdin.
func LoadRequest(path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return parseRequest(data, path, v)
}

func parseRequest(data []byte, name string, v any) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json", "":
		// YAML 1.2 is a JSON superset, so one parser covers both.
	default:
		return fmt.Errorf("unsupported request file type %q", filepath.Ext(name))
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(name), err)
	}
	return nil
}
