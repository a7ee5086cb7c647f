// internal/form/upload.go
package form

import (
	"fmt"
	"mime"
	"strings"

	"github.com/google/uuid"

	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
)

// bytesPerMegabyte converts validation.maxSize to bytes.
const bytesPerMegabyte = 1024 * 1024

// FileHandle is the persisted value of a file field.
type FileHandle struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ExtensionFromMIME derives a lower-cased file extension from a MIME subtype,
// e.g. "image/PNG" -> "png", "image/svg+xml" -> "svg".
func ExtensionFromMIME(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	_, subtype, found := strings.Cut(strings.ToLower(mediaType), "/")
	if !found {
		return ""
	}
	if base, _, ok := strings.Cut(subtype, "+"); ok {
		subtype = base
	}
	return subtype
}

// MaxUploadBytes returns the byte limit of a field, or 0 when unlimited.
func MaxUploadBytes(decl *cmsconfig.FieldDeclaration) int64 {
	if decl.Validation == nil || decl.Validation.MaxSize <= 0 {
		return 0
	}
	return int64(decl.Validation.MaxSize * bytesPerMegabyte)
}

// CheckImageUpload validates a selected file against the field's fileTypes
// and maxSize. On success it returns the handle to store as the field value;
// on failure an *UploadError and no handle.
func CheckImageUpload(decl *cmsconfig.FieldDeclaration, filename, mimeType string, size int64) (*FileHandle, error) {
	ext := ExtensionFromMIME(mimeType)
	if ext == "" {
		return nil, &UploadError{Field: decl.Name, Reason: fmt.Sprintf("unrecognised content type '%s'", mimeType)}
	}

	if decl.Validation != nil && len(decl.Validation.FileTypes) > 0 && !extensionAllowed(ext, decl.Validation.FileTypes) {
		return nil, &UploadError{
			Field:  decl.Name,
			Reason: fmt.Sprintf("file type '%s' is not allowed (allowed: %s)", ext, strings.Join(decl.Validation.FileTypes, ", ")),
		}
	}

	if limit := MaxUploadBytes(decl); limit > 0 && size > limit {
		return nil, &UploadError{
			Field:  decl.Name,
			Reason: fmt.Sprintf("file is %d bytes, maximum is %g MB", size, decl.Validation.MaxSize),
		}
	}

	return &FileHandle{
		ID:       uuid.New().String(),
		Name:     filename,
		MimeType: mimeType,
		Size:     size,
	}, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), "."))
		if a == ext || (isJPEG(a) && isJPEG(ext)) {
			return true
		}
	}
	return false
}

func isJPEG(ext string) bool {
	return ext == "jpg" || ext == "jpeg"
}
