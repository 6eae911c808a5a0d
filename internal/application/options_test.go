package application_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/pluginsync/internal/application"
	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

func TestOptionsEditor_ErrorSkipsSave(t *testing.T) {
	store := &memOptionsStore{}
	editor := application.NewOptionsEditor(store)

	_, err := editor.Update(func(opts *model.Options) error {
		opts.GitHubToken = "changed"
		return errors.New("rejected")
	})

	require.Error(t, err)
	assert.Zero(t, store.saveCount())
	assert.Empty(t, editor.Get().GitHubToken)
}

func TestOptionsEditor_ConcurrentUpdatesAreSerialized(t *testing.T) {
	store := &memOptionsStore{}
	editor := application.NewOptionsEditor(store)

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for range writers {
		go func() {
			defer wg.Done()
			_, err := editor.Update(func(opts *model.Options) error {
				opts.Repos = append(opts.Repos, model.RepositorySpec{ID: "x"})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, editor.Get().Repos, writers)
}

func TestOptionsEditor_SaveErrorPropagates(t *testing.T) {
	store := &memOptionsStore{err: errors.New("disk full")}
	editor := application.NewOptionsEditor(store)

	_, err := editor.Update(func(*model.Options) error { return nil })
	assert.EqualError(t, err, "disk full")
}
