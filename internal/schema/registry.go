// Package schema holds the closed set of document types (escritos) and the
// ordered fields each one asks for.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed escritos.yaml
var builtin []byte

// ErrUnknownDocumentType is returned by Lookup for names outside the registry.
var ErrUnknownDocumentType = errors.New("unknown document type")

// FieldKind selects the input widget and the post-processing of a field.
type FieldKind string

const (
	SingleLineText FieldKind = "text_input"
	MultiLineText  FieldKind = "text_area"
	Date           FieldKind = "date_input"
)

// Valid reports whether k is one of the known kinds.
func (k FieldKind) Valid() bool {
	switch k {
	case SingleLineText, MultiLineText, Date:
		return true
	default:
		return false
	}
}

// Widget returns the HTML input flavour used to render k.
func (k FieldKind) Widget() string {
	switch k {
	case SingleLineText:
		return "text"
	case MultiLineText:
		return "textarea"
	case Date:
		return "date"
	default:
		return ""
	}
}

// Field is one labeled input of a document type.
type Field struct {
	Name string    `yaml:"name" json:"name"`
	Kind FieldKind `yaml:"kind" json:"kind"`
}

// DocumentType describes one escrito: its template file and ordered fields.
type DocumentType struct {
	Name     string  `yaml:"name" json:"name"`
	Template string  `yaml:"template" json:"template"`
	Fields   []Field `yaml:"fields" json:"fields"`
}

// FieldNames returns the field names in declaration order.
func (d DocumentType) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Has reports whether the type declares a field called name.
func (d DocumentType) Has(name string) bool {
	for _, f := range d.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (d DocumentType) clone() DocumentType {
	d.Fields = append([]Field(nil), d.Fields...)
	return d
}

// Registry is the read-only table of document types. It is safe for
// concurrent use because nothing mutates it after Parse.
type Registry struct {
	types  []DocumentType
	byName map[string]int
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in registry. It panics if the embedded table is
// invalid, which can only happen at development time.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Parse(builtin)
		if err != nil {
			panic(fmt.Sprintf("schema: built-in table: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// LoadFile parses a registry from a YAML file with the same layout as the
// built-in table.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes and validates a registry table.
func Parse(data []byte) (*Registry, error) {
	var doc struct {
		Escritos []DocumentType `yaml:"escritos"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if len(doc.Escritos) == 0 {
		return nil, errors.New("no document types defined")
	}

	reg := &Registry{
		types:  make([]DocumentType, 0, len(doc.Escritos)),
		byName: make(map[string]int, len(doc.Escritos)),
	}
	for _, dt := range doc.Escritos {
		if err := validate(dt); err != nil {
			return nil, err
		}
		if _, dup := reg.byName[dt.Name]; dup {
			return nil, fmt.Errorf("duplicate document type %q", dt.Name)
		}
		reg.byName[dt.Name] = len(reg.types)
		reg.types = append(reg.types, dt.clone())
	}
	return reg, nil
}

func validate(dt DocumentType) error {
	if strings.TrimSpace(dt.Name) == "" {
		return errors.New("document type with empty name")
	}
	if strings.TrimSpace(dt.Template) == "" {
		return fmt.Errorf("document type %q has no template", dt.Name)
	}
	if len(dt.Fields) == 0 {
		return fmt.Errorf("document type %q has no fields", dt.Name)
	}
	seen := make(map[string]struct{}, len(dt.Fields))
	for _, f := range dt.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("document type %q has a field with empty name", dt.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("document type %q declares field %q twice", dt.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if !f.Kind.Valid() {
			return fmt.Errorf("field %q of %q has unknown kind %q", f.Name, dt.Name, f.Kind)
		}
	}
	return nil
}

// Lookup returns the document type called name.
func (r *Registry) Lookup(name string) (DocumentType, error) {
	idx, ok := r.byName[name]
	if !ok {
		return DocumentType{}, fmt.Errorf("%w: %q", ErrUnknownDocumentType, name)
	}
	return r.types[idx].clone(), nil
}

// Names lists the document types in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.types))
	for i, dt := range r.types {
		names[i] = dt.Name
	}
	return names
}

// All returns a copy of every document type in declaration order.
func (r *Registry) All() []DocumentType {
	out := make([]DocumentType, len(r.types))
	for i, dt := range r.types {
		out[i] = dt.clone()
	}
	return out
}
