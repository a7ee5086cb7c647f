// internal/form/widget.go
package form

import (
	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
)

// WidgetKind is the input control a field renders as.
type WidgetKind string

const (
	WidgetDefault      WidgetKind = "default"
	WidgetRichText     WidgetKind = "rich-text"
	WidgetImageUpload  WidgetKind = "image-upload"
	WidgetVideoPreview WidgetKind = "video-preview"
)

// ui.template values recognised in the CMS document
const (
	TemplateDefault       = "default"
	TemplateRichText      = "rich-text"
	TemplateImageUploader = "image-uploader"
	TemplateVideoPreview  = "video-preview"
)

// SelectWidget maps a field's ui.template to a widget kind.
// Unknown or absent templates fall back to the default widget.
func SelectWidget(decl *cmsconfig.FieldDeclaration) WidgetKind {
	switch decl.Template() {
	case TemplateRichText:
		return WidgetRichText
	case TemplateImageUploader:
		return WidgetImageUpload
	case TemplateVideoPreview:
		return WidgetVideoPreview
	default:
		return WidgetDefault
	}
}

// InputType is the native input type used by the default widget.
// It branches on the declared field type, never on ui.template.
func InputType(decl *cmsconfig.FieldDeclaration) string {
	switch decl.Type {
	case cmsconfig.TypeNumber:
		return "number"
	case cmsconfig.TypeFile:
		return "file"
	case cmsconfig.TypeCheckbox:
		return "checkbox"
	case cmsconfig.TypeTextarea:
		return "textarea"
	case cmsconfig.TypeEnum:
		return "select"
	case cmsconfig.TypeDate:
		return "date"
	case cmsconfig.TypeDatetime:
		return "datetime-local"
	case cmsconfig.TypeTime:
		return "time"
	default:
		return "text"
	}
}
