package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

// ErrBackupNotFound indicates no backup exists for the requested plugin and version.
var ErrBackupNotFound = errors.New("backup not found")

// BackupStore defines the driven port for plugin artifact backups.
type BackupStore interface {
	// Create copies the artifact at path into the backup area, labelled with version.
	Create(ctx context.Context, path, version string) (model.Backup, error)
	// List returns the backups of pluginName, newest first.
	List(ctx context.Context, pluginName string) ([]model.Backup, error)
	// Restore copies the newest backup of pluginName at version into destDir and
	// returns the restored file path.
	Restore(ctx context.Context, pluginName, version, destDir string) (string, error)
	// Delete removes every backup of pluginName at version.
	Delete(ctx context.Context, pluginName, version string) error
	// Cleanup keeps the newest max backups of pluginName and returns how many were removed.
	Cleanup(ctx context.Context, pluginName string, max int) (int, error)
}
