package config

import (
	"strings"
	"testing"
)

const validDoc = `{
  "stats": "1s",
  "nodes": {
    "src": {"type": "siggen", "signal_type": "sine", "out": {"signals": [{"name": "v1", "type": "float"}]}},
    "dst": {"type": "loopback", "in": {"signals": [{"name": "v1", "type": "float"}]}}
  },
  "paths": [
    {"name": "p0", "mode": "any", "in": ["src"], "out": ["dst"], "mapping": ["src.data[0]"]}
  ]
}`

func TestLoadValidDocument(t *testing.T) {
	doc, err := Load(strings.NewReader(validDoc))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("len(Nodes)=%d want 2", len(doc.Nodes))
	}
	if len(doc.Paths) != 1 || doc.Paths[0].Name != "p0" {
		t.Fatalf("Paths=%+v", doc.Paths)
	}
	stats, err := doc.Stats()
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.Seconds() != 1 {
		t.Fatalf("Stats()=%v want 1s", stats)
	}
}

func TestLoadRejectsUnknownNodeReference(t *testing.T) {
	bad := `{
      "nodes": {"src": {"type": "siggen"}},
      "paths": [{"name": "p0", "in": ["src"], "out": ["missing"]}]
    }`
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatal("expected error for path referencing unknown destination node")
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	bad := `{"nodes": {"src": {"type": "siggen"}}}`
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatal("expected schema validation error for missing paths")
	}
}
