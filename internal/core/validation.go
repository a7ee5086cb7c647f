// internal/core/validation.go
package core

import (
	"regexp"
)

// Regular expression for valid table/field names and record keys (alphanumeric + underscore)
var nameValidationRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// MinRecordKeyLength is the shortest accepted record identifier.
const MinRecordKeyLength = 3

// MaxIdentifierLength bounds table ids, field names and record keys.
const MaxIdentifierLength = 64

// IsValidIdentifier checks if a string is a valid identifier (e.g., table_id, field name)
func IsValidIdentifier(name string) bool {
	return nameValidationRegex.MatchString(name) && len(name) > 0 && len(name) <= MaxIdentifierLength
}

// IsValidRecordKey checks a record primary key: identifier characters only, at least 3 long.
func IsValidRecordKey(key string) bool {
	return IsValidIdentifier(key) && len(key) >= MinRecordKeyLength
}
