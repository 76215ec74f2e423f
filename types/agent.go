package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// Agent Configuration Record
// =============================================================================
// AgentConfig is the base record extended by the agent_init hook. It is built
// by the agent configuration builder; plugins add fields (top_k, seed, ...)
// through schema extensions, stored in Extensions.
// =============================================================================

// AgentConfig describes an agent backed by a local model.
type AgentConfig struct {
	Name         string         `json:"name"`
	Role         string         `json:"role,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Model        string         `json:"model"`
	Temperature  float64        `json:"temperature"`
	TopP         float64        `json:"top_p,omitempty"`
	MaxTokens    int            `json:"max_tokens,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	Extensible
}

// NewAgentConfig creates an agent configuration with the default model and temperature.
func NewAgentConfig(name, role, systemPrompt string) *AgentConfig {
	return &AgentConfig{
		Name:         name,
		Role:         role,
		SystemPrompt: systemPrompt,
		Model:        "llama3.2",
		Temperature:  0.7,
	}
}

// Kind implements Record.
func (c *AgentConfig) Kind() RecordKind { return KindAgentConfig }

// Clone returns a deep copy.
func (c *AgentConfig) Clone() *AgentConfig {
	out := *c
	out.Metadata = cloneMap(c.Metadata)
	out.Extensions = c.Extensions.Clone()
	return &out
}

// MarshalJSON inlines extension fields next to the base fields.
func (c AgentConfig) MarshalJSON() ([]byte, error) {
	type alias AgentConfig
	return marshalRecord(KindAgentConfig, alias(c), c.Extensions)
}

// UnmarshalJSON keeps unknown fields as extensions.
func (c *AgentConfig) UnmarshalJSON(data []byte) error {
	type alias AgentConfig
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	ext, err := unmarshalExtensions(KindAgentConfig, data)
	if err != nil {
		return err
	}
	*c = AgentConfig(a)
	c.Extensions = ext
	return nil
}

// Modelfile renders the configuration as an Ollama Modelfile.
// Numeric and boolean extension fields become PARAMETER lines, sorted by name.
func (c *AgentConfig) Modelfile() string {
	var b strings.Builder

	model := c.Model
	if model == "" {
		model = "llama3.2"
	}
	fmt.Fprintf(&b, "FROM %s\n", model)

	if c.SystemPrompt != "" {
		fmt.Fprintf(&b, "\nSYSTEM \"\"\"%s\"\"\"\n", c.SystemPrompt)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "PARAMETER temperature %s\n", formatFloat(c.Temperature))
	if c.TopP > 0 {
		fmt.Fprintf(&b, "PARAMETER top_p %s\n", formatFloat(c.TopP))
	}
	if c.MaxTokens > 0 {
		fmt.Fprintf(&b, "PARAMETER num_predict %d\n", c.MaxTokens)
	}

	names := make([]string, 0, len(c.Extensions))
	for name := range c.Extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch v := c.Extensions[name].(type) {
		case bool:
			fmt.Fprintf(&b, "PARAMETER %s %t\n", name, v)
		case float32, float64:
			f, _ := toFloat(v)
			fmt.Fprintf(&b, "PARAMETER %s %s\n", name, formatFloat(f))
		default:
			if i, ok := toInt(v); ok {
				fmt.Fprintf(&b, "PARAMETER %s %d\n", name, i)
			}
		}
	}

	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
