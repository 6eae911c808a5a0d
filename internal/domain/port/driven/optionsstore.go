package driven

import (
	"errors"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

// ErrSaveCanceled is returned by Set when a saving hook canceled the write.
var ErrSaveCanceled = errors.New("options save canceled")

// OptionsStore defines the driven port for the persisted options document.
// Get never fails: an unreadable document yields the last known or default options.
type OptionsStore interface {
	Get() model.Options
	Set(opts model.Options) error
}
