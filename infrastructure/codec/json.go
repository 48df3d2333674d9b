package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"microgrid/infrastructure/snapshot"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c *JSONCodec) Format() string      { return "json" }
func (c *JSONCodec) ContentType() string { return "application/json" }

// Parse imports a topology document from JSON
func (c *JSONCodec) Parse(r io.Reader) (*snapshot.Document, error) {
	var doc snapshot.Document
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	normalizeNumbers(&doc)
	if err := validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Export exports a topology document to JSON
func (c *JSONCodec) Export(doc *snapshot.Document, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// normalizeNumbers turns json.Number into int64 or float64 so property
// bags look the same regardless of the source format
func normalizeNumbers(doc *snapshot.Document) {
	for i := range doc.Devices {
		normalizeMap(doc.Devices[i].Properties)
	}
	for i := range doc.Connections {
		normalizeMap(doc.Connections[i].Properties)
	}
}

func normalizeMap(m map[string]any) {
	for k, v := range m {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			m[k] = i
		} else if f, err := n.Float64(); err == nil {
			m[k] = f
		} else {
			m[k] = n.String()
		}
	}
}
