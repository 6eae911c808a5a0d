package application

import (
	"sync"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// OptionsEditor serializes read-modify-write cycles against an OptionsStore so edits
// from the API and the sync orchestrator never overwrite each other.
type OptionsEditor struct {
	mu    sync.Mutex
	store driven.OptionsStore
}

// NewOptionsEditor wraps store.
func NewOptionsEditor(store driven.OptionsStore) *OptionsEditor {
	return &OptionsEditor{store: store}
}

// Get returns the current options snapshot.
func (e *OptionsEditor) Get() model.Options {
	return e.store.Get()
}

// Update applies fn to a fresh snapshot and saves the result. Nothing is saved when
// fn returns an error.
func (e *OptionsEditor) Update(fn func(opts *model.Options) error) (model.Options, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	opts := e.store.Get()
	if err := fn(&opts); err != nil {
		return model.Options{}, err
	}
	if err := e.store.Set(opts); err != nil {
		return model.Options{}, err
	}
	return opts, nil
}
