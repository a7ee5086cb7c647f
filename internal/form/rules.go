// internal/form/rules.go
package form

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
)

var validate = validator.New()

// RuleKind is the validation variant chosen for a field type.
type RuleKind int

const (
	RulePassthrough RuleKind = iota // accepted unchanged
	RuleText
	RuleNumber
	RuleFile
)

func (k RuleKind) String() string {
	switch k {
	case RuleText:
		return "text"
	case RuleNumber:
		return "number"
	case RuleFile:
		return "file"
	default:
		return "passthrough"
	}
}

// ruleKindFor is the exhaustive mapping from declared type to rule variant.
func ruleKindFor(t cmsconfig.FieldType) RuleKind {
	switch t {
	case cmsconfig.TypeText, cmsconfig.TypeString, cmsconfig.TypeTextarea:
		return RuleText
	case cmsconfig.TypeNumber:
		return RuleNumber
	case cmsconfig.TypeFile:
		return RuleFile
	case cmsconfig.TypeCheckbox, cmsconfig.TypeEnum, cmsconfig.TypeDate, cmsconfig.TypeDatetime,
		cmsconfig.TypeTime, cmsconfig.TypeJSON, cmsconfig.TypeArray, cmsconfig.TypeObject, cmsconfig.TypeRelation:
		return RulePassthrough
	default:
		return RulePassthrough
	}
}

// Rule validates and coerces one field's value.
type Rule struct {
	Field     string
	Kind      RuleKind
	Required  bool
	MaxLength int
	RichText  bool
}

func newRule(decl *cmsconfig.FieldDeclaration) Rule {
	r := Rule{
		Field:    decl.Name,
		Kind:     ruleKindFor(decl.Type),
		Required: decl.Required(),
		RichText: SelectWidget(decl) == WidgetRichText,
	}
	if decl.Validation != nil {
		r.MaxLength = decl.Validation.MaxLength
	}
	return r
}

// Apply checks a single value. present is false when the record has no entry
// for the field. It returns the coerced value, whether a value should be kept,
// and an error message ("" when valid).
func (r Rule) Apply(value any, present bool) (out any, keep bool, msg string) {
	if present && value == nil {
		present = false
	}

	switch r.Kind {
	case RuleText:
		return r.applyText(value, present)
	case RuleNumber:
		return r.applyNumber(value, present)
	case RuleFile:
		return r.applyFile(value, present)
	default:
		return value, present, ""
	}
}

func (r Rule) applyText(value any, present bool) (any, bool, string) {
	if !present {
		if r.Required {
			return nil, false, MsgRequired
		}
		return nil, false, ""
	}

	s, ok := value.(string)
	if !ok {
		return nil, false, MsgNotText
	}
	if r.Required && validate.Var(s, "required") != nil {
		return nil, false, MsgRequired
	}
	if r.MaxLength > 0 && validate.Var(s, fmt.Sprintf("max=%d", r.MaxLength)) != nil {
		return nil, false, MaxLengthMessage(r.MaxLength)
	}
	if r.RichText {
		s = SanitizeRichText(s)
	}
	return s, true, ""
}

// applyNumber treats input as form text first: "" means absent, and
// non-numeric text is an error whether or not the field is required.
func (r Rule) applyNumber(value any, present bool) (any, bool, string) {
	var (
		n   float64
		err error
	)
	if present {
		switch v := value.(type) {
		case string:
			if v == "" {
				present = false
				break
			}
			if validate.Var(v, "numeric") != nil {
				return nil, false, MsgNotANumber
			}
			n, err = strconv.ParseFloat(v, 64)
		case json.Number:
			n, err = v.Float64()
		case float64:
			n = v
		case float32:
			n = float64(v)
		case int:
			n = float64(v)
		case int64:
			n = float64(v)
		default:
			return nil, false, MsgNotANumber
		}
		if err != nil {
			return nil, false, MsgNotANumber
		}
	}

	if !present {
		if r.Required {
			return nil, false, MsgRequired
		}
		return nil, false, ""
	}
	return n, true, ""
}

func (r Rule) applyFile(value any, present bool) (any, bool, string) {
	if present {
		handle, ok := asFileHandle(value)
		if !ok {
			return nil, false, MsgNotAFile
		}
		if handle.ID != "" {
			return handle, true, ""
		}
	}
	if r.Required {
		return nil, false, MsgRequired
	}
	return nil, false, ""
}

// asFileHandle accepts a FileHandle, a bare handle id, or a decoded JSON object.
func asFileHandle(value any) (FileHandle, bool) {
	switch v := value.(type) {
	case FileHandle:
		return v, true
	case *FileHandle:
		if v == nil {
			return FileHandle{}, true
		}
		return *v, true
	case string:
		return FileHandle{ID: v}, true
	case map[string]any:
		id, ok := v["id"].(string)
		if !ok {
			return FileHandle{}, false
		}
		h := FileHandle{ID: id}
		h.Name, _ = v["name"].(string)
		h.MimeType, _ = v["mimeType"].(string)
		if size, ok := v["size"].(float64); ok {
			h.Size = int64(size)
		}
		return h, true
	default:
		return FileHandle{}, false
	}
}
