package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistryEmbedded(t *testing.T) {
	reg, err := LoadRegistry("")
	require.NoError(t, err)
	require.NotEmpty(t, reg.Sources)

	factory := DefaultFactory()
	seen := make(map[string]bool)
	for _, src := range reg.Sources {
		assert.False(t, seen[src.ID], "duplicate source id %q", src.ID)
		seen[src.ID] = true

		_, err := factory.Get(src.Strategy)
		assert.NoError(t, err, "source %q uses unregistered strategy %q", src.ID, src.Strategy)
	}

	assert.NotEmpty(t, reg.Active())
}

func TestRegistryValidate(t *testing.T) {
	tests := []struct {
		name string
		reg  Registry
	}{
		{"empty id", Registry{Sources: []SourceConfig{{Name: "x", Strategy: "api_sam_gov", BaseURL: "https://x"}}}},
		{"duplicate id", Registry{Sources: []SourceConfig{
			{ID: "a", Strategy: "api_sam_gov", BaseURL: "https://x"},
			{ID: "a", Strategy: "api_sam_gov", BaseURL: "https://y"},
		}}},
		{"missing strategy", Registry{Sources: []SourceConfig{{ID: "a", BaseURL: "https://x"}}}},
		{"missing base url", Registry{Sources: []SourceConfig{{ID: "a", Strategy: "api_sam_gov"}}}},
		{"html without container", Registry{Sources: []SourceConfig{{ID: "a", Strategy: "html_listing", BaseURL: "https://x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.reg.Validate())
		})
	}
}

func TestStrategyFactoryUnknown(t *testing.T) {
	_, err := DefaultFactory().Get("api_nonexistent")
	assert.Error(t, err)
}
