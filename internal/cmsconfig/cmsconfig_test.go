// internal/cmsconfig/cmsconfig_test.go
package cmsconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONPreservesFieldOrder(t *testing.T) {
	cfg, err := Load("testdata/cms.json")
	require.NoError(t, err)

	assert.Equal(t, "Nebula CMS", cfg.Title)
	assert.Equal(t, []string{"agents", "articles"}, cfg.TableIDs())

	articles, err := cfg.Table("articles")
	require.NoError(t, err)
	assert.Equal(t, "articles", articles.ID)
	assert.Equal(t, []string{"title", "body", "views", "cover", "internal_note", "tags"}, articles.Fields.Names())

	title, ok := articles.Fields.Get("title")
	require.True(t, ok)
	assert.Equal(t, "title", title.Name)
	assert.Equal(t, TypeText, title.Type)
	assert.True(t, title.Required())
	assert.Equal(t, 80, title.Validation.MaxLength)

	cover, _ := articles.Fields.Get("cover")
	assert.Equal(t, "image-uploader", cover.Template())
	assert.Equal(t, []string{"png", "jpg"}, cover.Validation.FileTypes)
	assert.Equal(t, 2.0, cover.Validation.MaxSize)

	note, _ := articles.Fields.Get("internal_note")
	assert.True(t, note.Hidden)
	assert.Equal(t, "internal_note", note.DisplayLabel())

	require.NotNil(t, articles.DetailView)
	require.Len(t, articles.DetailView.Tabs, 2)
	assert.Equal(t, "Media", articles.DetailView.Tabs[1].Name)
	assert.Equal(t, []string{"cover", "views"}, articles.DetailView.Tabs[1].Fields)
}

func TestLoadYAMLPreservesFieldOrder(t *testing.T) {
	cfg, err := Load("testdata/cms.yaml")
	require.NoError(t, err)

	agents, err := cfg.Table(AgentsTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "description", "temperature", "avatar"}, agents.Fields.Names())

	avatar, ok := agents.Fields.Get("avatar")
	require.True(t, ok)
	assert.Equal(t, TypeFile, avatar.Type)
	assert.Equal(t, []string{"png"}, avatar.Validation.FileTypes)
	assert.Equal(t, []string{"name", "description", "temperature", "avatar"}, agents.DetailView.Fields)
}

func TestTableNotFound(t *testing.T) {
	cfg, err := Load("testdata/cms.json")
	require.NoError(t, err)

	_, err = cfg.Table("missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	testCases := []struct {
		name   string
		format string
		doc    string
		want   error
	}{
		{"no tables", "json", `{"tables": {}}`, ErrInvalidDocument},
		{"fields not an object", "json", `{"tables": {"t1": {"fields": []}}}`, ErrInvalidDocument},
		{"duplicate field", "json", `{"tables": {"t1": {"fields": {"a": {"type": "text"}, "a": {"type": "number"}}}}}`, ErrDuplicateField},
		{"bad table id", "json", `{"tables": {"bad-id": {"fields": {"a": {"type": "text"}}}}}`, ErrInvalidDocument},
		{"yaml fields list", "yaml", "tables:\n  t1:\n    fields: [a, b]\n", ErrInvalidDocument},
		{"unknown format", "toml", `x = 1`, ErrUnsupportedFormat},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), tc.format)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFieldMapMarshalKeepsOrder(t *testing.T) {
	fields, err := NewFieldMap(
		FieldDeclaration{Name: "zeta", Type: TypeText},
		FieldDeclaration{Name: "alpha", Type: TypeNumber},
	)
	require.NoError(t, err)

	data, err := json.Marshal(fields)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":{"type":"text"},"alpha":{"type":"number"}}`, string(data))

	var decoded FieldMap
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"zeta", "alpha"}, decoded.Names())
}

func TestFieldTypeKnown(t *testing.T) {
	assert.True(t, TypeRelation.Known())
	assert.True(t, TypeDatetime.Known())
	assert.False(t, FieldType("geo").Known())
}
