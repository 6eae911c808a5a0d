package github_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/pluginsync/internal/adapter/driven/github"
	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

func TestParseCatalog_YAMLAndJSON(t *testing.T) {
	yamlDoc := []byte(`
name: Community
description: Community plugins
plugins:
  - name: One
    description: first
    url: https://github.com/a/one
`)
	jsonDoc := []byte(`{"name":"Community","plugins":[{"name":"One","url":"https://github.com/a/one"}]}`)

	for name, doc := range map[string][]byte{"yaml": yamlDoc, "json": jsonDoc} {
		t.Run(name, func(t *testing.T) {
			catalog, err := ghAdapter.ParseCatalog(doc)
			require.NoError(t, err)
			assert.Equal(t, "Community", catalog.Name)
			require.Len(t, catalog.Plugins, 1)
			assert.Equal(t, "https://github.com/a/one", catalog.Plugins[0].URL)
		})
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	_, err := ghAdapter.ParseCatalog([]byte("plugins: [unterminated"))
	assert.Error(t, err)

	_, err = ghAdapter.ParseCatalog([]byte("just a string"))
	assert.Error(t, err)
}

func TestListRegistryPlugins_BuiltIn(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux(), "")

	entries := client.ListRegistryPlugins(context.Background(), []model.RegistrySpec{model.BuiltInRegistry()})

	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, model.BuiltInRegistryName, e.RegistrySource)
		assert.NotEmpty(t, e.URL)
	}
}

func TestListRegistryPlugins_MergesAndDeduplicates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /first.yaml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`
name: First
plugins:
  - name: Alpha
    url: https://github.com/org/alpha
  - name: Beta
    url: https://github.com/org/beta
`))
	})
	mux.HandleFunc("GET /second.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Second","plugins":[
			{"name":"Beta duplicate","url":"HTTPS://GITHUB.COM/ORG/BETA"},
			{"name":"Gamma","url":"https://github.com/org/gamma"}
		]}`))
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /disabled", func(w http.ResponseWriter, _ *http.Request) {
		t.Error("disabled registry must not be fetched")
	})

	client, server := newTestClient(t, mux, "")

	regs := []model.RegistrySpec{
		{ID: "1", Name: "First", URL: server.URL + "/first.yaml", Enabled: true},
		{ID: "2", Name: "Broken", URL: server.URL + "/broken", Enabled: true},
		{ID: "3", Name: "Off", URL: server.URL + "/disabled", Enabled: false},
		{ID: "4", Name: "Second", URL: server.URL + "/second.json", Enabled: true},
	}

	entries := client.ListRegistryPlugins(context.Background(), regs)

	require.Len(t, entries, 3)
	assert.Equal(t, "Alpha", entries[0].Name)
	assert.Equal(t, "Beta", entries[1].Name, "first occurrence wins")
	assert.Equal(t, "First", entries[1].RegistrySource)
	assert.Equal(t, "Gamma", entries[2].Name)
	assert.Equal(t, "Second", entries[2].RegistrySource)
}

func TestListRegistryPlugins_RegistryFetchDoesNotSendToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /catalog.yaml", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("name: X\nplugins: []\n"))
	})

	client, server := newTestClient(t, mux, "secret")

	entries := client.ListRegistryPlugins(context.Background(), []model.RegistrySpec{
		{ID: "1", Name: "X", URL: server.URL + "/catalog.yaml", Enabled: true},
	})

	assert.Empty(t, entries)
}
