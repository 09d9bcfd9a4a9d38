package vision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParseError carries the raw model output when no JSON could be recovered.
// Its JSON form is the error marker contract of the rutai CLI.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return "model reply is not JSON"
}

// Marker returns the {"error","raw"} object, raw capped at 500 bytes.
func (e *ParseError) Marker() []byte {
	raw := e.Raw
	if len(raw) > 500 {
		raw = raw[:500]
	}
	b, _ := json.Marshal(map[string]string{"error": "Respuesta no JSON", "raw": raw})
	return b
}

var reJSONBlock = regexp.MustCompile(`(?s)(\[.*\]|\{.*\})`)

// unwrap recovers a list of table items from whatever shape the model
// returned. Tried in order: a JSON array; an object with an "items" array;
// an object holding any array value; a single object, wrapped as a
// one-element list; the same rules applied to a JSON block embedded in
// surrounding prose. ok is false when nothing JSON-like can be recovered.
func unwrap(content string) (items []json.RawMessage, ok bool) {
	if items, ok = unwrapValue([]byte(content)); ok {
		return items, true
	}
	if m := reJSONBlock.FindString(content); m != "" {
		if items, ok = unwrapValue([]byte(m)); ok {
			return items, true
		}
	}
	return nil, false
}

func unwrapValue(data []byte) ([]json.RawMessage, bool) {
	data = bytes.TrimSpace(data)

	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	if raw, found := obj["items"]; found {
		if err := json.Unmarshal(raw, &arr); err == nil {
			return arr, true
		}
	}
	for _, raw := range obj {
		if err := json.Unmarshal(raw, &arr); err == nil {
			return arr, true
		}
	}
	// a lone object is one table row
	return []json.RawMessage{json.RawMessage(data)}, true
}

var entrySchema = mustCompileEntrySchema()

func mustCompileEntrySchema() *jsonschema.Schema {
	const src = `{
		"type": "object",
		"properties": {
			"rut":    {"type": "string", "minLength": 1},
			"nombre": {"type": "string"}
		},
		"required": ["rut"]
	}`
	return jsonschema.MustCompileString("entry.json", src)
}

// validateEntry checks one unwrapped item against the rut/nombre schema.
func validateEntry(item json.RawMessage) error {
	var v any
	if err := json.Unmarshal(item, &v); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	if err := entrySchema.Validate(v); err != nil {
		return fmt.Errorf("item does not match schema: %w", err)
	}
	return nil
}
