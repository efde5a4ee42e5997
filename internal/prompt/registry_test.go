package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)

	for _, name := range []string{AgentMetricsEnrichment, AgentDetailedEnrichment, AgentFundingAdvisor} {
		a, err := r.Agent(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, a.SystemPrompt, name)
		assert.NotEmpty(t, a.Model, name)
		assert.Positive(t, a.MaxTokens, name)
	}
}

func TestLoad_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents:
  metrics_enrichment:
    model: test-model
    max_tokens: 10
    system_prompt: extract
  detailed_enrichment:
    model: test-model
    max_tokens: 10
    system_prompt: extract more
  funding_advisor:
    model: test-model
    max_tokens: 10
    system_prompt: advise
  custom_extra:
    model: test-model
    max_tokens: 10
    system_prompt: extra
`), 0o600))

	r, err := Load(path)
	require.NoError(t, err)

	a, err := r.Agent(AgentMetricsEnrichment)
	require.NoError(t, err)
	assert.Equal(t, "test-model", a.Model)

	extra, err := r.Agent("custom_extra")
	require.NoError(t, err)
	assert.Equal(t, "extra", extra.SystemPrompt)
}

func TestLoad_MissingRequiredAgent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents:
  metrics_enrichment:
    model: test-model
    system_prompt: extract
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigurationMissing))
}

func TestLoad_IncompleteAgent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents:
  metrics_enrichment:
    model: test-model
    system_prompt: extract
  detailed_enrichment:
    model: test-model
    system_prompt: extract more
  funding_advisor:
    model: ""
    system_prompt: advise
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigurationMissing))
}

func TestRegistry_UnknownAgent(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)

	_, err = r.Agent("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigurationMissing))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
