// internal/editor/editor.go
package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Annany2002/nebula-cms/internal/core"
	"github.com/Annany2002/nebula-cms/internal/draft"
	"github.com/Annany2002/nebula-cms/internal/form"
	"github.com/Annany2002/nebula-cms/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Precondition errors raised before the store is touched
var (
	ErrInvalidKey   = errors.New("record key must be at least 3 characters of letters, digits or underscore")
	ErrDuplicateKey = errors.New("record key already exists")
	ErrUnknownKey   = errors.New("record key does not exist")
)

// Editor applies submitted form input to a draft store. Input is validated
// against the table's compiled plan; a nil plan accepts input unchanged.
type Editor struct {
	store *draft.Store
	plan  *form.Plan
}

// New creates an Editor over store and plan.
func New(store *draft.Store, plan *form.Plan) *Editor {
	return &Editor{store: store, plan: plan}
}

// Store returns the underlying draft store.
func (e *Editor) Store() *draft.Store {
	return e.store
}

// Plan returns the compiled plan used for validation, possibly nil.
func (e *Editor) Plan() *form.Plan {
	return e.plan
}

// Load fetches the whole collection.
func (e *Editor) Load(ctx context.Context) error {
	return e.store.FetchAll(ctx)
}

// Open fetches one record for the detail view.
func (e *Editor) Open(ctx context.Context, key string) (draft.Record, error) {
	return e.store.FetchOne(ctx, key)
}

// Close leaves the detail view; pending Open responses are dropped.
func (e *Editor) Close() {
	e.store.ClearSelection()
}

// Create validates key and input and adds a new record to the working copy.
func (e *Editor) Create(key string, input map[string]any) error {
	if !core.IsValidRecordKey(key) {
		return fmt.Errorf("%w: '%s'", ErrInvalidKey, key)
	}
	if e.store.Has(key) {
		return fmt.Errorf("%w: '%s'", ErrDuplicateKey, key)
	}

	values, err := e.validate(input)
	if err != nil {
		return err
	}
	if err := e.store.Create(key, values); err != nil {
		return fmt.Errorf("create '%s': %w", key, err)
	}
	customLog.Debugf("Editor: Created '%s' in '%s'", key, e.store.Name())
	return nil
}

// Update validates input and replaces an existing record. Keys the plan does
// not render (hidden fields, server-set ids) are carried over from the
// current body, and readonly fields cannot be changed.
func (e *Editor) Update(key string, input map[string]any) error {
	current, ok := e.store.Get(key)
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownKey, key)
	}

	var merged draft.Record
	if e.plan == nil {
		values, err := e.validate(input)
		if err != nil {
			return err
		}
		merged = values
	} else {
		res := e.plan.ValidateUpdate(current, input)
		if err := res.Err(e.plan.Table); err != nil {
			customLog.Debugf("Editor: Rejected update of '%s' in '%s': %v", key, e.plan.Table, err)
			return err
		}
		merged = draft.Record(res.Values)
	}

	if err := e.store.Update(key, merged); err != nil {
		return fmt.Errorf("update '%s': %w", key, err)
	}
	return nil
}

// Delete removes a record from the working copy.
func (e *Editor) Delete(key string) {
	e.store.Delete(key)
}

// Save persists every working record.
func (e *Editor) Save(ctx context.Context) error {
	return e.store.SaveChanges(ctx)
}

// Discard drops unsaved edits.
func (e *Editor) Discard() {
	e.store.DiscardChanges()
}

func (e *Editor) validate(input map[string]any) (draft.Record, error) {
	if e.plan == nil {
		if input == nil {
			return draft.Record{}, nil
		}
		return draft.Record(input).Clone(), nil
	}
	res := e.plan.Validate(input)
	if err := res.Err(e.plan.Table); err != nil {
		customLog.Debugf("Editor: Rejected input for '%s': %v", e.plan.Table, err)
		return nil, err
	}
	return draft.Record(res.Values), nil
}
