package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sampleResult struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleResult{Name: "alloy", Count: 2}, FormatYAML); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "name: alloy") || !strings.Contains(out, "count: 2") {
		t.Errorf("output = %q", out)
	}
}

func TestRender_DefaultIsYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleResult{Name: "alloy"}, ""); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !strings.Contains(buf.String(), "name: alloy") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleResult{Name: "alloy", Count: 2}, FormatJSON); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"name": "alloy"`) {
		t.Errorf("output = %q", out)
	}
	if !strings.HasPrefix(out, "{\n") {
		t.Errorf("JSON output not indented: %q", out)
	}
}

func TestRender_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleResult{}, OutputFormat("xml")); err == nil {
		t.Error("Render should reject an unknown format")
	}
}

func TestOutput_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Output(sampleResult{Name: "alloy"}, FormatJSON, path); err != nil {
		t.Fatalf("Output error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"name": "alloy"`) {
		t.Errorf("file content = %q", data)
	}
}

func TestOutput_BadFilePath(t *testing.T) {
	if err := Output(sampleResult{}, FormatYAML, "/nonexistent/dir/out.yaml"); err == nil {
		t.Error("Output should fail for an uncreatable file")
	}
}
