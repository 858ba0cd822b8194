package config

// documentSchema is the top-level structural schema for a villasd
// config document, validated before decode — grounded on the teacher's
// pattern of a bundled JSON-schema string validated ahead of a strict
// json.Decoder pass (pkg/schema/schema.go, config/config.go).
const documentSchema = `
{
  "type": "object",
  "properties": {
    "stats": {
      "description": "Interval, parsable by time.ParseDuration, between HookList.Periodic/stats-flush runs.",
      "type": "string"
    },
    "hugepages": {
      "description": "Hugepages to reserve; tracked for parity with the config schema, not enforced by this port.",
      "type": "integer"
    },
    "nodes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "type": { "type": "string" },
          "in": { "$ref": "#/$defs/direction" },
          "out": { "$ref": "#/$defs/direction" }
        },
        "required": ["type"]
      }
    },
    "paths": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": { "type": "string" },
          "mode": { "type": "string", "enum": ["any", "all"] },
          "original_sequence_no": { "type": "boolean" },
          "in": {
            "type": "array",
            "items": { "type": "string" }
          },
          "out": {
            "type": "array",
            "items": { "type": "string" }
          },
          "mapping": {
            "type": "array",
            "items": { "type": "string" }
          },
          "hooks": {
            "type": "array",
            "items": { "$ref": "#/$defs/hook" }
          }
        },
        "required": ["name", "in", "out"]
      }
    }
  },
  "required": ["nodes", "paths"],
  "$defs": {
    "direction": {
      "type": "object",
      "properties": {
        "signals": {
          "type": "array",
          "items": { "$ref": "#/$defs/signal" }
        },
        "hooks": {
          "type": "array",
          "items": { "$ref": "#/$defs/hook" }
        },
        "vectorize": { "type": "integer" },
        "builtin": { "type": "boolean" }
      }
    },
    "signal": {
      "type": "object",
      "properties": {
        "name": { "type": "string" },
        "unit": { "type": "string" },
        "type": { "type": "string", "enum": ["float", "integer", "boolean", "complex"] },
        "init": {},
        "enabled": { "type": "boolean" }
      },
      "required": ["name", "type"]
    },
    "hook": {
      "type": "object",
      "properties": {
        "type": { "type": "string" },
        "priority": { "type": "integer" }
      },
      "required": ["type"]
    }
  }
}`
