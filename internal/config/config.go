// Package config loads and validates a villasd config document (spec
// §6, SPEC_FULL §1.2). The loader itself is a declared external
// collaborator per spec §1; this package owns only the schema, the
// validation pass, and the typed Document the supervisor consumes.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var compiledSchema *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	s, err := jsonschema.CompileString("villasd://config.schema.json", documentSchema)
	if err != nil {
		return nil, fmt.Errorf("config: compiling schema: %w", err)
	}
	compiledSchema = s
	return s, nil
}

// Load validates and decodes a config document from r. Validation runs
// against the raw JSON value first (mirroring the teacher's
// schema.Validate-then-strict-decode sequence in config.Init); decode
// then uses DisallowUnknownFields so a malformed document is a
// ConfigError, never a silently-ignored field (spec §4.3, §7).
func Load(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: reading: %w", err)
	}

	s, err := schema()
	if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("config: invalid json: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return nil, fmt.Errorf("config: schema validation: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("config: at least one node required")
	}
	for _, p := range doc.Paths {
		for _, in := range p.In {
			if _, ok := doc.Nodes[in]; !ok {
				return nil, fmt.Errorf("config: path %q references unknown source node %q", p.Name, in)
			}
		}
		for _, out := range p.Out {
			if _, ok := doc.Nodes[out]; !ok {
				return nil, fmt.Errorf("config: path %q references unknown destination node %q", p.Name, out)
			}
		}
	}

	return &doc, nil
}

// LoadFile reads and parses the config document at path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Load(f)
}
