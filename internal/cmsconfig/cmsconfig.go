// internal/cmsconfig/cmsconfig.go
package cmsconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Annany2002/nebula-cms/internal/core"
	"github.com/Annany2002/nebula-cms/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Errors for loading and querying the CMS document
var (
	ErrTableNotFound     = errors.New("table not found in cms config")
	ErrInvalidDocument   = errors.New("invalid cms config document")
	ErrDuplicateField    = errors.New("duplicate field declaration")
	ErrUnsupportedFormat = errors.New("unsupported cms config format")
)

// AgentsTable is the table describing agent profile records.
const AgentsTable = "agents"

// FieldType is the declared type tag of a field.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeString   FieldType = "string"
	TypeTextarea FieldType = "textarea"
	TypeNumber   FieldType = "number"
	TypeFile     FieldType = "file"
	TypeCheckbox FieldType = "checkbox"
	TypeEnum     FieldType = "enum"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
	TypeTime     FieldType = "time"
	TypeJSON     FieldType = "json"
	TypeArray    FieldType = "array"
	TypeObject   FieldType = "object"
	TypeRelation FieldType = "relation"
)

// Known reports whether t is one of the enumerated field types.
func (t FieldType) Known() bool {
	switch t {
	case TypeText, TypeString, TypeTextarea, TypeNumber, TypeFile, TypeCheckbox, TypeEnum,
		TypeDate, TypeDatetime, TypeTime, TypeJSON, TypeArray, TypeObject, TypeRelation:
		return true
	}
	return false
}

// Validation holds the optional per-field validation block.
type Validation struct {
	Required  bool     `json:"required,omitempty" yaml:"required"`
	MaxLength int      `json:"maxLength,omitempty" yaml:"maxLength"`
	FileTypes []string `json:"fileTypes,omitempty" yaml:"fileTypes"`
	MaxSize   float64  `json:"maxSize,omitempty" yaml:"maxSize"` // megabytes
}

// UI holds rendering hints for a field.
type UI struct {
	Template string `json:"template,omitempty" yaml:"template"`
}

// FieldDeclaration is the schema metadata of one record attribute.
type FieldDeclaration struct {
	Name       string      `json:"-" yaml:"-"`
	Type       FieldType   `json:"type" yaml:"type"`
	Label      string      `json:"label,omitempty" yaml:"label"`
	Hidden     bool        `json:"hidden,omitempty" yaml:"hidden"`
	Readonly   bool        `json:"readonly,omitempty" yaml:"readonly"`
	Options    []string    `json:"options,omitempty" yaml:"options"`     // enum choices
	RelatedTo  string      `json:"relatedTo,omitempty" yaml:"relatedTo"` // relation target table
	Validation *Validation `json:"validation,omitempty" yaml:"validation"`
	UI         *UI         `json:"ui,omitempty" yaml:"ui"`
}

// Required reports whether the validation block marks the field as required.
func (f *FieldDeclaration) Required() bool {
	return f.Validation != nil && f.Validation.Required
}

// Template returns the ui template name or "" when none is declared.
func (f *FieldDeclaration) Template() string {
	if f.UI == nil {
		return ""
	}
	return f.UI.Template
}

// DisplayLabel falls back to the field name when no label is configured.
func (f *FieldDeclaration) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// FieldMap is an ordered collection of field declarations.
// Declaration order from the source document is preserved.
type FieldMap struct {
	order  []string
	byName map[string]*FieldDeclaration
}

// NewFieldMap builds a FieldMap from declarations in the given order.
func NewFieldMap(decls ...FieldDeclaration) (FieldMap, error) {
	var m FieldMap
	for _, decl := range decls {
		if err := m.add(decl.Name, decl); err != nil {
			return FieldMap{}, err
		}
	}
	return m, nil
}

func (m *FieldMap) add(name string, decl FieldDeclaration) error {
	if m.byName == nil {
		m.byName = make(map[string]*FieldDeclaration)
	}
	if name == "" {
		return fmt.Errorf("%w: empty field name", ErrInvalidDocument)
	}
	if _, exists := m.byName[name]; exists {
		return fmt.Errorf("%w: '%s'", ErrDuplicateField, name)
	}
	decl.Name = name
	m.byName[name] = &decl
	m.order = append(m.order, name)
	return nil
}

// Names returns the field names in declaration order.
func (m FieldMap) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Get looks up a declaration by field name.
func (m FieldMap) Get(name string) (*FieldDeclaration, bool) {
	decl, ok := m.byName[name]
	return decl, ok
}

// Len returns the number of declared fields.
func (m FieldMap) Len() int {
	return len(m.order)
}

// All returns the declarations in declaration order.
func (m FieldMap) All() []*FieldDeclaration {
	out := make([]*FieldDeclaration, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.byName[name])
	}
	return out
}

// UnmarshalJSON decodes a JSON object keeping key order.
func (m *FieldMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: fields must be an object", ErrInvalidDocument)
	}

	*m = FieldMap{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		name, _ := tok.(string)

		var decl FieldDeclaration
		if err := dec.Decode(&decl); err != nil {
			return fmt.Errorf("%w: field '%s': %v", ErrInvalidDocument, name, err)
		}
		if err := m.add(name, decl); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// MarshalJSON encodes the fields as an object in declaration order.
func (m FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(m.byName[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a YAML mapping keeping key order.
func (m *FieldMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: fields must be a mapping (line %d)", ErrInvalidDocument, node.Line)
	}
	*m = FieldMap{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var decl FieldDeclaration
		if err := node.Content[i+1].Decode(&decl); err != nil {
			return fmt.Errorf("%w: field '%s': %v", ErrInvalidDocument, name, err)
		}
		if err := m.add(name, decl); err != nil {
			return err
		}
	}
	return nil
}

// Tab is one named group of fields in a detail view.
type Tab struct {
	Name   string   `json:"name" yaml:"name"`
	Fields []string `json:"fields" yaml:"fields"`
}

// DetailView describes how a record is laid out: either flat or tabbed.
type DetailView struct {
	Fields []string `json:"fields,omitempty" yaml:"fields"`
	Tabs   []Tab    `json:"tabs,omitempty" yaml:"tabs"`
}

// TableSchema is a named collection of field declarations.
type TableSchema struct {
	ID         string      `json:"id" yaml:"-"`
	Label      string      `json:"label,omitempty" yaml:"label"`
	Fields     FieldMap    `json:"fields" yaml:"fields"`
	DetailView *DetailView `json:"detailView,omitempty" yaml:"detailView"`
}

// CMSConfig is the table/field schema document, immutable once loaded.
type CMSConfig struct {
	Title  string                  `json:"title,omitempty" yaml:"title"`
	Tables map[string]*TableSchema `json:"tables" yaml:"tables"`
}

// Table returns the schema registered under id.
func (c *CMSConfig) Table(id string) (*TableSchema, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: '%s'", ErrTableNotFound, id)
	}
	table, ok := c.Tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrTableNotFound, id)
	}
	return table, nil
}

// TableIDs returns the table ids in sorted order.
func (c *CMSConfig) TableIDs() []string {
	ids := make([]string, 0, len(c.Tables))
	for id := range c.Tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads a CMS document from disk. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func Load(path string) (*CMSConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		customLog.Warnf("CMSConfig: Failed to read '%s': %v", path, err)
		return nil, fmt.Errorf("failed to read cms config: %w", err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	cfg, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	customLog.Printf("CMSConfig: Loaded %d table(s) from %s", len(cfg.Tables), path)
	return cfg, nil
}

// Parse decodes a CMS document in the given format ("json" or "yaml").
func Parse(data []byte, format string) (*CMSConfig, error) {
	var cfg CMSConfig
	switch format {
	case "json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, wrapDocumentErr(err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, wrapDocumentErr(err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("%w: no tables declared", ErrInvalidDocument)
	}
	for id, table := range cfg.Tables {
		if !core.IsValidIdentifier(id) {
			return nil, fmt.Errorf("%w: invalid table id '%s'", ErrInvalidDocument, id)
		}
		if table == nil {
			return nil, fmt.Errorf("%w: table '%s' is empty", ErrInvalidDocument, id)
		}
		table.ID = id
	}
	return &cfg, nil
}

func wrapDocumentErr(err error) error {
	if errors.Is(err, ErrInvalidDocument) || errors.Is(err, ErrDuplicateField) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
}
