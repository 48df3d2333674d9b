package codec

import (
	"fmt"
	"io"

	"microgrid/infrastructure/snapshot"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

func (c *YAMLCodec) Format() string      { return "yaml" }
func (c *YAMLCodec) ContentType() string { return "application/x-yaml" }

// Parse imports a topology document from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*snapshot.Document, error) {
	var doc snapshot.Document
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Export exports a topology document to YAML
func (c *YAMLCodec) Export(doc *snapshot.Document, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
