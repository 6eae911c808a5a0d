package github

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

// maxCatalogSize caps the size of a fetched registry document.
const maxCatalogSize = 1 << 20

//go:embed catalog/default.yaml
var defaultCatalog []byte

// ListRegistryPlugins loads the catalog of every enabled registry and merges the
// entries, dropping later duplicates of a URL (case-insensitive). A registry that
// fails to load is logged and skipped.
func (c *Client) ListRegistryPlugins(ctx context.Context, registries []model.RegistrySpec) []model.RegistryEntry {
	var merged []model.RegistryEntry
	seen := make(map[string]string)

	for _, reg := range registries {
		if !reg.Enabled {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		catalog, err := c.loadCatalog(ctx, reg)
		if err != nil {
			slog.Warn("loading registry failed", "registry", reg.Name, "url", reg.URL, "error", err)
			continue
		}

		for _, entry := range catalog.Plugins {
			key := strings.ToLower(strings.TrimSpace(entry.URL))
			if key == "" {
				continue
			}
			if source, dup := seen[key]; dup {
				slog.Debug("duplicate registry entry dropped",
					"url", entry.URL,
					"registry", reg.Name,
					"kept_from", source,
				)
				continue
			}
			seen[key] = reg.Name
			entry.RegistrySource = reg.Name
			merged = append(merged, entry)
		}
	}

	return merged
}

func (c *Client) loadCatalog(ctx context.Context, reg model.RegistrySpec) (model.RegistryCatalog, error) {
	if reg.IsBuiltIn() {
		return ParseCatalog(defaultCatalog)
	}

	resp, err := c.exec.Do(ctx, c.getOperation(reg.URL, "application/json, application/yaml, text/plain"))
	countRequest("registry", resp, err)
	if err != nil {
		return model.RegistryCatalog{}, fmt.Errorf("fetching %s: %w", reg.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize+1))
	if err != nil {
		return model.RegistryCatalog{}, fmt.Errorf("reading %s: %w", reg.URL, err)
	}
	if len(data) > maxCatalogSize {
		return model.RegistryCatalog{}, fmt.Errorf("registry document %s exceeds %d bytes", reg.URL, maxCatalogSize)
	}

	return ParseCatalog(data)
}

// ParseCatalog decodes a registry document. YAML and JSON are both accepted.
func ParseCatalog(data []byte) (model.RegistryCatalog, error) {
	var catalog model.RegistryCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return model.RegistryCatalog{}, fmt.Errorf("parsing registry document: %w", err)
	}
	if catalog.Plugins == nil && catalog.Name == "" {
		return model.RegistryCatalog{}, errors.New("parsing registry document: no plugins")
	}
	return catalog, nil
}
