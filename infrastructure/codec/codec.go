// Package codec 拓扑文件的导入导出格式
package codec

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"microgrid/infrastructure/snapshot"
)

// Importer parses a topology document
type Importer interface {
	Parse(r io.Reader) (*snapshot.Document, error)
	Format() string
}

// Exporter writes a topology document
type Exporter interface {
	Export(doc *snapshot.Document, w io.Writer) error
	Format() string
}

// Codec can both import and export
type Codec interface {
	Importer
	Exporter
	ContentType() string
}

// Registry looks codecs up by format name
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry registers the built-in JSON and YAML codecs
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string]Codec)}
	r.Register(NewJSONCodec())
	r.Register(NewYAMLCodec())
	return r
}

func (r *Registry) Register(c Codec) {
	r.codecs[c.Format()] = c
}

// Lookup accepts the format name case-insensitively; "yml" is an alias of "yaml"
func (r *Registry) Lookup(format string) (Codec, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "yml" {
		f = "yaml"
	}
	c, ok := r.codecs[f]
	if !ok {
		return nil, fmt.Errorf("unsupported format %q (supported: %s)", format, strings.Join(r.Formats(), ", "))
	}
	return c, nil
}

func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.codecs))
	for f := range r.codecs {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func validate(doc *snapshot.Document) error {
	if strings.TrimSpace(doc.Name) == "" {
		return fmt.Errorf("document has no topology name")
	}
	seen := make(map[string]bool, len(doc.Devices))
	for i, d := range doc.Devices {
		if d.ID == "" {
			return fmt.Errorf("device #%d has no id", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("device %s is listed twice", d.ID)
		}
		seen[d.ID] = true
	}
	for i, c := range doc.Connections {
		if c.ID == "" {
			return fmt.Errorf("connection #%d has no id", i)
		}
	}
	return nil
}
