package driven

import (
	"context"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

// ActivityStore defines the driven port for the sync activity feed.
type ActivityStore interface {
	// Create persists entry and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, entry model.ActivityEntry) (model.ActivityEntry, error)
	// ListRecent returns up to limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.ActivityEntry, error)
	// ListByRepo returns up to limit entries for one repository, newest first.
	ListByRepo(ctx context.Context, repoID string, limit int) ([]model.ActivityEntry, error)
}
