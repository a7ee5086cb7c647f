// internal/editor/editor_test.go
package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
	"github.com/Annany2002/nebula-cms/internal/draft"
	"github.com/Annany2002/nebula-cms/internal/form"
)

type memoryTransport struct {
	data  draft.Collection
	saved []draft.Collection
}

func (m *memoryTransport) FetchAgentConfig(ctx context.Context) (draft.Collection, error) {
	return m.data.Clone(), nil
}

func (m *memoryTransport) FetchAgent(ctx context.Context, key string) (draft.Record, error) {
	rec, ok := m.data[key]
	if !ok {
		return nil, errors.New("no such agent")
	}
	out := rec.Clone()
	out["id"] = key
	return out, nil
}

func (m *memoryTransport) SaveAgentConfig(ctx context.Context, all draft.Collection) error {
	m.saved = append(m.saved, all)
	m.data = all.Clone()
	return nil
}

func agentsPlan(t *testing.T) *form.Plan {
	t.Helper()
	fields, err := cmsconfig.NewFieldMap(
		cmsconfig.FieldDeclaration{Name: "name", Type: cmsconfig.TypeString, Validation: &cmsconfig.Validation{Required: true, MaxLength: 20}},
		cmsconfig.FieldDeclaration{Name: "description", Type: cmsconfig.TypeTextarea, Validation: &cmsconfig.Validation{Required: true}},
		cmsconfig.FieldDeclaration{Name: "temperature", Type: cmsconfig.TypeNumber},
		cmsconfig.FieldDeclaration{Name: "secret", Type: cmsconfig.TypeText, Hidden: true},
		cmsconfig.FieldDeclaration{Name: "owner", Type: cmsconfig.TypeString, Readonly: true},
	)
	require.NoError(t, err)
	plan, err := form.Compile(&cmsconfig.TableSchema{ID: "agents", Fields: fields})
	require.NoError(t, err)
	return plan
}

func newEditor(t *testing.T) (*Editor, *memoryTransport) {
	t.Helper()
	transport := &memoryTransport{data: draft.Collection{
		"a1": {"name": "Alpha", "description": "first", "secret": "s3cr3t", "owner": "ops"},
	}}
	ed := New(draft.NewStore(transport), agentsPlan(t))
	require.NoError(t, ed.Load(context.Background()))
	return ed, transport
}

func TestCreateRejectsBadKeys(t *testing.T) {
	ed, _ := newEditor(t)

	for _, key := range []string{"", "ab", "has space", "dash-key", "ümlaut"} {
		err := ed.Create(key, map[string]any{"name": "x", "description": "y"})
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
	assert.False(t, ed.Store().IsDirty())
}

func TestCreateRejectsDuplicateBeforeStore(t *testing.T) {
	ed, _ := newEditor(t)
	require.NoError(t, ed.Create("abc", map[string]any{"name": "Bravo", "description": "second"}))
	ed.Discard()
	require.NoError(t, ed.Create("abc", map[string]any{"name": "Bravo", "description": "second"}))

	err := ed.Create("abc", map[string]any{"name": "Imposter", "description": "dup"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NotErrorIs(t, err, draft.ErrRecordExists)

	rec, ok := ed.Store().Get("abc")
	require.True(t, ok)
	assert.Equal(t, "Bravo", rec["name"])
}

func TestCreateReportsAllFieldErrors(t *testing.T) {
	ed, _ := newEditor(t)

	err := ed.Create("abc", map[string]any{
		"name":        strings.Repeat("n", 21),
		"temperature": "hot",
	})

	var vErr *form.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, map[string]string{
		"name":        form.MaxLengthMessage(20),
		"description": form.MsgRequired,
		"temperature": form.MsgNotANumber,
	}, vErr.Errors)
	assert.False(t, ed.Store().Has("abc"))
	assert.False(t, ed.Store().IsDirty())
}

func TestCreateStoresCoercedValues(t *testing.T) {
	ed, _ := newEditor(t)

	require.NoError(t, ed.Create("abc", map[string]any{
		"name":        "Bravo",
		"description": "second",
		"temperature": "0.7",
		"extra":       []any{"kept"},
	}))

	rec, _ := ed.Store().Get("abc")
	assert.Equal(t, 0.7, rec["temperature"])
	assert.Equal(t, []any{"kept"}, rec["extra"])
	assert.True(t, ed.Store().IsDirty())
}

func TestUpdateKeepsUnrenderedKeys(t *testing.T) {
	ed, _ := newEditor(t)

	require.NoError(t, ed.Update("a1", map[string]any{"name": "Alpha 2", "description": "edited"}))

	rec, _ := ed.Store().Get("a1")
	assert.Equal(t, draft.Record{"name": "Alpha 2", "description": "edited", "secret": "s3cr3t", "owner": "ops"}, rec)
	assert.Equal(t, "Alpha", ed.Store().Committed()["a1"]["name"])

	ed.Discard()
	rec, _ = ed.Store().Get("a1")
	assert.Equal(t, "Alpha", rec["name"])
}

func TestUpdateIgnoresProtectedInput(t *testing.T) {
	ed, _ := newEditor(t)

	require.NoError(t, ed.Update("a1", map[string]any{
		"name":        "Alpha",
		"description": "first",
		"secret":      "forged",
		"owner":       "mallory",
	}))

	rec, _ := ed.Store().Get("a1")
	assert.Equal(t, "s3cr3t", rec["secret"])
	assert.Equal(t, "ops", rec["owner"])
}

func TestCreateSetsReadonlyButNotHidden(t *testing.T) {
	ed, _ := newEditor(t)

	require.NoError(t, ed.Create("abc", map[string]any{
		"name":        "Bravo",
		"description": "second",
		"secret":      "forged",
		"owner":       "ops",
	}))

	rec, _ := ed.Store().Get("abc")
	assert.Equal(t, draft.Record{"name": "Bravo", "description": "second", "owner": "ops"}, rec)
}

func TestUpdateClearsOptionalField(t *testing.T) {
	ed, _ := newEditor(t)
	require.NoError(t, ed.Update("a1", map[string]any{"name": "A", "description": "d", "temperature": "1"}))
	require.NoError(t, ed.Update("a1", map[string]any{"name": "A", "description": "d", "temperature": ""}))

	rec, _ := ed.Store().Get("a1")
	assert.NotContains(t, rec, "temperature")
}

func TestUpdateUnknownKey(t *testing.T) {
	ed, _ := newEditor(t)

	err := ed.Update("zzz", map[string]any{"name": "x", "description": "y"})
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.False(t, ed.Store().Has("zzz"))
}

func TestUpdateInvalidLeavesRecord(t *testing.T) {
	ed, _ := newEditor(t)

	err := ed.Update("a1", map[string]any{"name": ""})
	assert.ErrorIs(t, err, form.ErrValidation)
	rec, _ := ed.Store().Get("a1")
	assert.Equal(t, "Alpha", rec["name"])
	assert.False(t, ed.Store().IsDirty())
}

func TestSaveAndOpen(t *testing.T) {
	ed, transport := newEditor(t)
	require.NoError(t, ed.Create("b22", map[string]any{"name": "Bravo", "description": "second"}))
	ed.Delete("a1")

	require.NoError(t, ed.Save(context.Background()))
	require.Len(t, transport.saved, 1)
	assert.Equal(t, []string{"b22"}, transport.saved[0].Keys())
	assert.False(t, ed.Store().IsDirty())

	rec, err := ed.Open(context.Background(), "b22")
	require.NoError(t, err)
	assert.Equal(t, "b22", rec["id"])

	ed.Close()
	_, _, ok := ed.Store().Selected()
	assert.False(t, ok)
}

func TestNilPlanAcceptsInput(t *testing.T) {
	transport := &memoryTransport{data: draft.Collection{}}
	ed := New(draft.NewStore(transport), nil)
	require.NoError(t, ed.Load(context.Background()))

	require.NoError(t, ed.Create("raw", map[string]any{"anything": 1}))
	require.NoError(t, ed.Create("empty", nil))
	require.NoError(t, ed.Update("raw", map[string]any{"anything": 2}))

	rec, _ := ed.Store().Get("raw")
	assert.Equal(t, draft.Record{"anything": 2}, rec)
	empty, ok := ed.Store().Get("empty")
	require.True(t, ok)
	assert.Empty(t, empty)
}
