package model

import "time"

// Backup is a saved copy of a previously installed plugin artifact.
type Backup struct {
	PluginName string    `json:"plugin_name"`
	Version    string    `json:"version"`
	Path       string    `json:"path"`
	CreatedAt  time.Time `json:"created_at"`
	Size       int64     `json:"size"`
}
