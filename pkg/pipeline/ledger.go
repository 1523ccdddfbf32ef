package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"resume-tailor/pkg/errs"
)

// Ledger holds the factual fields extracted from the original resume before
// generation. It is the read-only oracle the verification stage checks the
// generated resume against. An empty ledger disables verification.
type Ledger struct {
	Name           string   `json:"name,omitempty"`
	Employers      []string `json:"employers,omitempty"`
	Titles         []string `json:"titles,omitempty"`
	Dates          []string `json:"dates,omitempty"`
	Degrees        []string `json:"degrees,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
}

func (l Ledger) Empty() bool {
	return l.Name == "" && len(l.Employers) == 0 && len(l.Titles) == 0 &&
		len(l.Dates) == 0 && len(l.Degrees) == 0 && len(l.Certifications) == 0
}

// JSON renders the ledger for prompt embedding.
func (l Ledger) JSON() string {
	b, _ := json.Marshal(l)
	return string(b)
}

func ledgerSchemaMap() map[string]any {
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":           map[string]any{"type": "string"},
			"employers":      stringList,
			"titles":         stringList,
			"dates":          stringList,
			"degrees":        stringList,
			"certifications": stringList,
		},
	}
}

func compileLedgerSchema() (*jsonschema.Schema, error) {
	b, err := json.Marshal(ledgerSchemaMap())
	if err != nil {
		return nil, fmt.Errorf("marshal ledger schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("ledger.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add ledger schema: %w", err)
	}
	return compiler.Compile("ledger.json")
}

// parseLedger validates and decodes the extractor's output. Models sometimes
// wrap JSON in a markdown fence; strip it before decoding.
func parseLedger(schema *jsonschema.Schema, raw string) (Ledger, error) {
	cleaned := stripFence(raw)

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return Ledger{}, errs.Parsing("ledger is not valid json", err)
	}
	if err := schema.Validate(v); err != nil {
		return Ledger{}, errs.Parsing("ledger does not match schema", err)
	}
	var l Ledger
	if err := json.Unmarshal([]byte(cleaned), &l); err != nil {
		return Ledger{}, errs.Parsing("decode ledger", err)
	}
	return l, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
