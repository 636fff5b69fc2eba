package cli

import (
	"os"
	"path/filepath"
	"testing"
)

type sessionRequest struct {
	Model        string   `yaml:"model" json:"model"`
	Voice        string   `yaml:"voice" json:"voice"`
	Instructions string   `yaml:"instructions" json:"instructions"`
	Modalities   []string `yaml:"modalities" json:"modalities"`
}

func TestLoadRequest_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.yaml")
	content := "model: gpt-4o-realtime-preview\nvoice: echo\nmodalities:\n  - text\n  - audio\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var req sessionRequest
	if err := LoadRequest(path, &req); err != nil {
		t.Fatalf("LoadRequest error: %v", err)
	}

	if req.Model != "gpt-4o-realtime-preview" {
		t.Errorf("Model = %q", req.Model)
	}
	if len(req.Modalities) != 2 || req.Modalities[1] != "audio" {
		t.Errorf("Modalities = %v", req.Modalities)
	}
}

func TestLoadRequest_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	content := `{"model":"gpt-4o-realtime-preview","instructions":"be brief"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var req sessionRequest
	if err := LoadRequest(path, &req); err != nil {
		t.Fatalf("LoadRequest error: %v", err)
	}

	if req.Instructions != "be brief" {
		t.Errorf("Instructions = %q", req.Instructions)
	}
}

func TestParseRequest_NoExtension(t *testing.T) {
	// Stdin input has no extension; JSON still parses, YAML being a
	// superset of it.
	var req sessionRequest
	if err := parseRequest([]byte(`{"voice":"alloy"}`), "-", &req); err != nil {
		t.Fatalf("parseRequest error: %v", err)
	}
	if req.Voice != "alloy" {
		t.Errorf("Voice = %q", req.Voice)
	}
}

func TestParseRequest_Unparseable(t *testing.T) {
	var req sessionRequest
	if err := parseRequest([]byte("{{not valid"), "req.yaml", &req); err == nil {
		t.Error("parseRequest should fail on unparseable input")
	}
}

func TestParseRequest_UnsupportedExtension(t *testing.T) {
	var req sessionRequest
	if err := parseRequest([]byte("voice: alloy"), "req.toml", &req); err == nil {
		t.Error("parseRequest should reject an unsupported file type")
	}
}

func TestLoadRequest_MissingFile(t *testing.T) {
	var req sessionRequest
	if err := LoadRequest("/nonexistent/req.yaml", &req); err == nil {
		t.Error("LoadRequest should fail for missing file")
	}
}
