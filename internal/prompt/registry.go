// Package prompt loads the agent definitions (system prompt, model, token
// limit) that the enrichment and advisory providers run with. Defaults are
// embedded in the binary; a config path can override them wholesale.
package prompt

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrConfigurationMissing means a required agent definition is absent or
// incomplete. Startup fails fast on it.
var ErrConfigurationMissing = eris.New("agent configuration missing")

// Names of the agents the service cannot run without.
const (
	AgentMetricsEnrichment  = "metrics_enrichment"
	AgentDetailedEnrichment = "detailed_enrichment"
	AgentFundingAdvisor     = "funding_advisor"
)

var requiredAgents = []string{
	AgentMetricsEnrichment,
	AgentDetailedEnrichment,
	AgentFundingAdvisor,
}

//go:embed agents.yaml
var defaultAgentsYAML []byte

// Agent is one runnable prompt definition.
type Agent struct {
	SystemPrompt string  `yaml:"system_prompt"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
}

// Registry holds the loaded agent definitions.
type Registry struct {
	agents map[string]Agent
}

// Load builds a registry from the embedded defaults, or from the YAML file
// at path when it is non-empty. Every required agent must be present with a
// system prompt and a model.
func Load(path string) (*Registry, error) {
	data := defaultAgentsYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "prompt: read agents file %s", path)
		}
	}

	var wrapper struct {
		Agents map[string]Agent `yaml:"agents"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "prompt: parse agents file")
	}

	r := &Registry{agents: wrapper.Agents}
	for _, name := range requiredAgents {
		a, ok := r.agents[name]
		if !ok {
			return nil, eris.Wrapf(ErrConfigurationMissing, "agent %s not defined", name)
		}
		if a.SystemPrompt == "" || a.Model == "" {
			return nil, eris.Wrapf(ErrConfigurationMissing, "agent %s lacks system_prompt or model", name)
		}
	}
	return r, nil
}

// Agent returns a definition by name.
func (r *Registry) Agent(name string) (Agent, error) {
	a, ok := r.agents[name]
	if !ok {
		return Agent{}, eris.Wrapf(ErrConfigurationMissing, "agent %s not defined", name)
	}
	return a, nil
}
