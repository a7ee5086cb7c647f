// internal/form/plan.go
package form

import (
	"sort"

	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
)

// Field is the compiled, render-ready description of one visible field.
type Field struct {
	Name      string              `json:"name"`
	Label     string              `json:"label"`
	Type      cmsconfig.FieldType `json:"type"`
	Widget    WidgetKind          `json:"widget"`
	InputType string              `json:"inputType"`
	Rule      string              `json:"rule"`
	Required  bool                `json:"required"`
	Readonly  bool                `json:"readonly"`
	MaxLength int                 `json:"maxLength,omitempty"`
	FileTypes []string            `json:"fileTypes,omitempty"`
	MaxSize   float64             `json:"maxSize,omitempty"`
	Options   []string            `json:"options,omitempty"`
	RelatedTo string              `json:"relatedTo,omitempty"`
}

// Section is a group of fields rendered together. Name is empty for the
// flat layout.
type Section struct {
	Name   string   `json:"name,omitempty"`
	Fields []string `json:"fields"`
}

// Plan is the immutable validation and widget plan compiled for a table.
type Plan struct {
	Table    string    `json:"table"`
	Label    string    `json:"label,omitempty"`
	Fields   []Field   `json:"fields"`
	Sections []Section `json:"sections"`

	rules  []Rule
	decls  map[string]*cmsconfig.FieldDeclaration
	hidden map[string]bool
}

// Compile turns a table's field declarations into a Plan. Hidden fields are
// left out entirely. A detail view that references undeclared fields yields
// a *ConfigurationError.
func Compile(table *cmsconfig.TableSchema) (*Plan, error) {
	if table == nil {
		return nil, &ConfigurationError{Reason: "table schema is missing"}
	}
	if table.Fields.Len() == 0 {
		return nil, &ConfigurationError{Table: table.ID, Reason: "table declares no fields"}
	}

	plan := &Plan{
		Table: table.ID,
		Label: table.Label,
		decls:  make(map[string]*cmsconfig.FieldDeclaration),
		hidden: make(map[string]bool),
	}

	for _, decl := range table.Fields.All() {
		if !decl.Type.Known() {
			customLog.Warnf("Form: Field '%s' in table '%s' has unknown type '%s'; rendering as plain text", decl.Name, table.ID, decl.Type)
		}
		if decl.Hidden {
			plan.hidden[decl.Name] = true
			continue
		}
		plan.decls[decl.Name] = decl
		plan.rules = append(plan.rules, newRule(decl))
		plan.Fields = append(plan.Fields, compileField(decl))
	}

	sections, err := compileSections(table, plan.decls)
	if err != nil {
		return nil, err
	}
	plan.Sections = sections
	return plan, nil
}

func compileField(decl *cmsconfig.FieldDeclaration) Field {
	f := Field{
		Name:      decl.Name,
		Label:     decl.DisplayLabel(),
		Type:      decl.Type,
		Widget:    SelectWidget(decl),
		InputType: InputType(decl),
		Rule:      ruleKindFor(decl.Type).String(),
		Required:  decl.Required(),
		Readonly:  decl.Readonly,
		Options:   decl.Options,
		RelatedTo: decl.RelatedTo,
	}
	if v := decl.Validation; v != nil {
		f.MaxLength = v.MaxLength
		f.FileTypes = v.FileTypes
		f.MaxSize = v.MaxSize
	}
	return f
}

// compileSections lays out tabs in declared order, or a single flat section.
func compileSections(table *cmsconfig.TableSchema, visible map[string]*cmsconfig.FieldDeclaration) ([]Section, error) {
	view := table.DetailView

	if view != nil && len(view.Tabs) > 0 {
		seenTabs := make(map[string]bool)
		placed := make(map[string]string)
		sections := make([]Section, 0, len(view.Tabs))
		for _, tab := range view.Tabs {
			if tab.Name == "" {
				return nil, &ConfigurationError{Table: table.ID, Reason: "tab without a name"}
			}
			if seenTabs[tab.Name] {
				return nil, &ConfigurationError{Table: table.ID, Reason: "duplicate tab '" + tab.Name + "'"}
			}
			seenTabs[tab.Name] = true

			section := Section{Name: tab.Name, Fields: []string{}}
			for _, name := range tab.Fields {
				if _, declared := table.Fields.Get(name); !declared {
					return nil, &ConfigurationError{Table: table.ID, Field: name, Reason: "tab '" + tab.Name + "' references an undeclared field"}
				}
				if other, dup := placed[name]; dup {
					return nil, &ConfigurationError{Table: table.ID, Field: name, Reason: "field listed in tabs '" + other + "' and '" + tab.Name + "'"}
				}
				placed[name] = tab.Name
				if _, ok := visible[name]; ok {
					section.Fields = append(section.Fields, name)
				}
			}
			sections = append(sections, section)
		}
		return sections, nil
	}

	flat := Section{Fields: []string{}}
	if view != nil && len(view.Fields) > 0 {
		for _, name := range view.Fields {
			if _, declared := table.Fields.Get(name); !declared {
				return nil, &ConfigurationError{Table: table.ID, Field: name, Reason: "detail view references an undeclared field"}
			}
			if _, ok := visible[name]; ok {
				flat.Fields = append(flat.Fields, name)
			}
		}
		return []Section{flat}, nil
	}

	for _, decl := range table.Fields.All() {
		if !decl.Hidden {
			flat.Fields = append(flat.Fields, decl.Name)
		}
	}
	return []Section{flat}, nil
}

// Field returns the compiled field by name.
func (p *Plan) Field(name string) (Field, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Declaration returns the source declaration of a visible field.
func (p *Plan) Declaration(name string) (*cmsconfig.FieldDeclaration, bool) {
	decl, ok := p.decls[name]
	return decl, ok
}

// Result is the outcome of validating a whole record.
type Result struct {
	Values map[string]any    `json:"values"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Valid reports whether every field passed.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// FailedFields lists the failing field names, sorted.
func (r Result) FailedFields() []string {
	names := make([]string, 0, len(r.Errors))
	for name := range r.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Err returns a *ValidationError for table when any field failed, else nil.
func (r Result) Err(table string) error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Table: table, Errors: r.Errors}
}

// Validate checks a full record in one pass and reports every failing field.
// Values holds the coerced record. Submitted values for hidden fields are
// dropped; undeclared keys are copied unchanged.
func (p *Plan) Validate(record map[string]any) Result {
	res := Result{
		Values: make(map[string]any, len(record)),
		Errors: make(map[string]string),
	}

	for key, value := range record {
		if _, ruled := p.decls[key]; !ruled && !p.hidden[key] {
			res.Values[key] = value
		}
	}

	for _, rule := range p.rules {
		value, present := record[rule.Field]
		out, keep, msg := rule.Apply(value, present)
		if msg != "" {
			res.Errors[rule.Field] = msg
			if present {
				res.Values[rule.Field] = value
			}
			continue
		}
		if keep {
			res.Values[rule.Field] = out
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res
}

// ValidateUpdate validates input as the new body of current. Readonly fields
// keep their current value whatever was submitted, and hidden fields are
// carried over from current. Undeclared keys in current survive unless input
// sets them.
func (p *Plan) ValidateUpdate(current, input map[string]any) Result {
	in := make(map[string]any, len(input))
	for k, v := range input {
		in[k] = v
	}
	for name, decl := range p.decls {
		if !decl.Readonly {
			continue
		}
		if v, ok := current[name]; ok {
			in[name] = v
		} else {
			delete(in, name)
		}
	}

	res := p.Validate(in)
	if !res.Valid() {
		return res
	}

	merged := make(map[string]any, len(current)+len(res.Values))
	for k, v := range current {
		if _, rendered := p.decls[k]; !rendered {
			merged[k] = v
		}
	}
	for k, v := range res.Values {
		merged[k] = v
	}
	res.Values = merged
	return res
}
