package config

import (
	"encoding/json"
	"time"
)

// SignalSpec is the config-facing signal descriptor (spec §6).
type SignalSpec struct {
	Name    string          `json:"name"`
	Unit    string          `json:"unit"`
	Type    string          `json:"type"`
	Init    json.RawMessage `json:"init"`
	Enabled bool            `json:"enabled"`
}

// HookSpec is one entry of a hooks array: a built-in or user hook type
// name, its priority, and its type-specific parameters.
type HookSpec struct {
	Type     string          `json:"type"`
	Priority int             `json:"priority"`
	Params   json.RawMessage `json:"-"`
}

// UnmarshalJSON captures every field not named "type"/"priority" as
// Params, so hook-specific config (ratio, offset, prefix, ...) doesn't
// need a schema entry per hook type.
func (h *HookSpec) UnmarshalJSON(data []byte) error {
	type alias struct {
		Type     string `json:"type"`
		Priority int    `json:"priority"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	h.Type = a.Type
	h.Priority = a.Priority
	h.Params = data
	return nil
}

// DirectionSpec is the config-facing node_direction sub-document (spec
// §6's `in.signals`, `in.hooks`, `in.vectorize`, `in.builtin`, mirrored
// for `out`).
type DirectionSpec struct {
	Signals   []SignalSpec `json:"signals"`
	Hooks     []HookSpec   `json:"hooks"`
	Vectorize int          `json:"vectorize"`
	Builtin   bool         `json:"builtin"`
}

// NodeSpec is one entry of the top-level "nodes" map, keyed by node
// name. Params carries node-type-specific fields (NATS address, siggen
// waveform, loopback queuelen, ...).
type NodeSpec struct {
	Type   string          `json:"type"`
	In     DirectionSpec   `json:"in"`
	Out    DirectionSpec   `json:"out"`
	Params json.RawMessage `json:"-"`
}

func (n *NodeSpec) UnmarshalJSON(data []byte) error {
	type alias struct {
		Type string        `json:"type"`
		In   DirectionSpec `json:"in"`
		Out  DirectionSpec `json:"out"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	n.Type, n.In, n.Out = a.Type, a.In, a.Out
	n.Params = data
	return nil
}

// PathSpec is one entry of the top-level "paths" array.
type PathSpec struct {
	Name               string     `json:"name"`
	Mode               string     `json:"mode"`
	OriginalSequenceNo bool       `json:"original_sequence_no"`
	In                 []string   `json:"in"`
	Out                []string   `json:"out"`
	Mapping            []string   `json:"mapping"`
	Hooks              []HookSpec `json:"hooks"`
}

// Document is the fully parsed, schema-validated config (SPEC_FULL
// §1.2): the supervisor builds its node/path registries from it.
type Document struct {
	Nodes     map[string]NodeSpec `json:"nodes"`
	Paths     []PathSpec          `json:"paths"`
	StatsRaw  string              `json:"stats"`
	Hugepages int                 `json:"hugepages"`
}

// Stats parses StatsRaw, defaulting to 1s when absent — the supervisor
// periodic-task interval (spec §4.8).
func (d *Document) Stats() (time.Duration, error) {
	if d.StatsRaw == "" {
		return time.Second, nil
	}
	return time.ParseDuration(d.StatsRaw)
}
