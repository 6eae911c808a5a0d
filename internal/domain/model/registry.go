package model

// RegistryEntry is a plugin advertised by a registry catalog.
type RegistryEntry struct {
	Name           string `json:"name" yaml:"name"`
	Description    string `json:"description" yaml:"description"`
	URL            string `json:"url" yaml:"url"`
	RegistrySource string `json:"registry_source" yaml:"registry_source,omitempty"`
}

// RegistryCatalog is the document served by a registry.
type RegistryCatalog struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Plugins     []RegistryEntry `json:"plugins" yaml:"plugins"`
}
