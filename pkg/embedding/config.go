package embedding

import (
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

const (
	ProviderOpenAI      = "openai"
	ProviderGemini      = "gemini"
	ProviderHuggingFace = "huggingface"
	ProviderOllama      = "ollama"
)

const (
	DefaultBatchSize      = 32
	DefaultMaxConcurrency = 4
	defaultAzureVersion   = "2023-07-01-preview"
)

// Providers lists the supported backend names.
var Providers = []string{ProviderHuggingFace, ProviderOpenAI, ProviderGemini, ProviderOllama}

// Config selects and parameterizes an embedding backend. It is persisted as
// {"provider": ..., "params": {...}}.
type Config struct {
	Provider string `json:"provider"`
	Params   Params `json:"params"`
}

// Params are the backend settings. Zero values select per-provider defaults.
type Params struct {
	Model          string `json:"model,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	APIBase        string `json:"api_base,omitempty"`
	APIType        string `json:"api_type,omitempty"`
	APIVersion     string `json:"api_version,omitempty"`
	DeploymentName string `json:"deployment_name,omitempty"`
	BatchSize      int    `json:"batch_size,omitempty"`
	Normalize      bool   `json:"normalize,omitempty"`
	Dimensions     int    `json:"dimensions,omitempty"`
	MaxConcurrency int    `json:"max_concurrency,omitempty"`
}

type providerDefaults struct {
	model   string
	apiBase string
}

var defaults = map[string]providerDefaults{
	ProviderHuggingFace: {model: "sentence-transformers/all-mpnet-base-v2", apiBase: "http://localhost:8080/v1"},
	ProviderOpenAI:      {model: "text-embedding-ada-002"},
	ProviderGemini:      {model: "gemini-embedding-4096", apiBase: "https://generativelanguage.googleapis.com/v1beta/openai/"},
	ProviderOllama:      {model: "nomic-embed-text", apiBase: "http://localhost:11434"},
}

// KnownDimensions maps model names to their output width.
var KnownDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"gemini-embedding-4096":  4096,
	"all-mpnet-base-v2":      768,
	"nomic-embed-text":       768,
}

// DefaultConfig is used when nothing has been selected yet.
func DefaultConfig() Config {
	return Config{Provider: ProviderHuggingFace}
}

// Normalized lowercases the provider and fills in per-provider defaults.
func (c Config) Normalized() (Config, error) {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	d, ok := defaults[c.Provider]
	if !ok {
		return c, common.NewConfigurationError("embedding", "unknown provider %q", c.Provider)
	}
	if c.Params.Model == "" {
		c.Params.Model = d.model
	}
	if c.Params.APIBase == "" {
		c.Params.APIBase = d.apiBase
	}
	if c.Params.BatchSize <= 0 {
		c.Params.BatchSize = DefaultBatchSize
	}
	if c.Params.MaxConcurrency <= 0 {
		c.Params.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Params.Dimensions < 0 {
		return c, common.NewConfigurationError("embedding", "dimensions must not be negative, got %d", c.Params.Dimensions)
	}
	if c.IsAzure() && c.Params.APIVersion == "" {
		c.Params.APIVersion = defaultAzureVersion
	}
	return c, nil
}

// IsAzure reports whether the openai provider is routed through Azure.
func (c Config) IsAzure() bool {
	return c.Provider == ProviderOpenAI && strings.EqualFold(c.Params.APIType, "azure")
}

// RequestModel is the model name sent to the backend; Azure expects the
// deployment name.
func (c Config) RequestModel() string {
	if c.IsAzure() && c.Params.DeploymentName != "" {
		return c.Params.DeploymentName
	}
	return c.Params.Model
}

// ResolveDimension returns the configured dimension or looks the model up in
// KnownDimensions.
func (c Config) ResolveDimension() (int, error) {
	if c.Params.Dimensions > 0 {
		return c.Params.Dimensions, nil
	}
	if d, ok := lookupDimension(c.Params.Model); ok {
		return d, nil
	}
	if c.IsAzure() {
		if d, ok := lookupDimension(c.Params.DeploymentName); ok {
			return d, nil
		}
	}
	return 0, common.NewConfigurationError("embedding", "unknown dimension for model %q, set params.dimensions", c.Params.Model)
}

func lookupDimension(model string) (int, bool) {
	if model == "" {
		return 0, false
	}
	if d, ok := KnownDimensions[model]; ok {
		return d, true
	}
	// sentence-transformers/all-mpnet-base-v2, nomic-embed-text:latest
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	if i := strings.Index(model, ":"); i >= 0 {
		model = model[:i]
	}
	d, ok := KnownDimensions[model]
	return d, ok
}
