package openrouter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/tasktree/pkg/ports"
)

// ModelPrice holds the USD rates for one model, per million tokens.
type ModelPrice struct {
	PromptPerM     float64 `yaml:"prompt_per_million"`
	CompletionPerM float64 `yaml:"completion_per_million"`
}

// Pricing is a model price catalog, used to derive call costs when the
// backend does not report them.
type Pricing struct {
	models map[string]ModelPrice
}

type pricingFile struct {
	Models map[string]ModelPrice `yaml:"models"`
}

// LoadPricing reads a YAML price catalog:
//
//	models:
//	  openai/gpt-4.1-mini:
//	    prompt_per_million: 0.40
//	    completion_per_million: 1.60
func LoadPricing(path string) (*Pricing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing catalog: %w", err)
	}
	return ParsePricing(data)
}

// ParsePricing parses a YAML price catalog.
func ParsePricing(data []byte) (*Pricing, error) {
	var f pricingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pricing catalog: %w", err)
	}
	for model, price := range f.Models {
		if price.PromptPerM < 0 || price.CompletionPerM < 0 {
			return nil, fmt.Errorf("negative rate for model %q", model)
		}
	}
	return &Pricing{models: f.Models}, nil
}

// Cost computes the USD cost of a call, reporting false for models missing
// from the catalog.
func (p *Pricing) Cost(model string, u ports.TokenUsage) (float64, bool) {
	price, ok := p.models[modelID(model)]
	if !ok {
		return 0, false
	}
	const million = 1_000_000
	cost := float64(u.Prompt)*price.PromptPerM/million +
		float64(u.Completion)*price.CompletionPerM/million
	return cost, true
}
