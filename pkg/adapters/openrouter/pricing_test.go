package openrouter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/tasktree/pkg/ports"
)

const catalogYAML = `
models:
  openai/gpt-4.1-mini:
    prompt_per_million: 0.40
    completion_per_million: 1.60
  anthropic/claude-sonnet:
    prompt_per_million: 3.00
    completion_per_million: 15.00
`

func TestParsePricing(t *testing.T) {
	pricing, err := ParsePricing([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cost, ok := pricing.Cost("openai/gpt-4.1-mini", ports.TokenUsage{Prompt: 1_000_000, Completion: 1_000_000})
	if !ok {
		t.Fatal("expected model in catalog")
	}
	if want := 2.0; cost != want {
		t.Errorf("expected cost %g, got %g", want, cost)
	}
}

func TestPricing_CostScalesWithTokens(t *testing.T) {
	pricing, err := ParsePricing([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cost, ok := pricing.Cost("anthropic/claude-sonnet", ports.TokenUsage{Prompt: 1000, Completion: 200})
	if !ok {
		t.Fatal("expected model in catalog")
	}
	want := 0.003 + 0.003
	if diff := cost - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("expected cost %g, got %g", want, cost)
	}
}

func TestPricing_StripsRoutingPrefix(t *testing.T) {
	pricing, err := ParsePricing([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if _, ok := pricing.Cost("openrouter/openai/gpt-4.1-mini", ports.TokenUsage{Prompt: 1}); !ok {
		t.Error("expected prefixed model id to resolve through the catalog")
	}
}

func TestPricing_UnknownModel(t *testing.T) {
	pricing, err := ParsePricing([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if _, ok := pricing.Cost("unknown/model", ports.TokenUsage{Prompt: 100}); ok {
		t.Error("expected unknown model to report no cost")
	}
}

func TestParsePricing_RejectsNegativeRates(t *testing.T) {
	_, err := ParsePricing([]byte(`
models:
  bad/model:
    prompt_per_million: -1
`))
	if err == nil {
		t.Fatal("expected an error for negative rates")
	}
}

func TestParsePricing_RejectsMalformedYAML(t *testing.T) {
	_, err := ParsePricing([]byte("models: ["))
	if err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

func TestLoadPricing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(path, []byte(catalogYAML), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	pricing, err := LoadPricing(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, ok := pricing.Cost("openai/gpt-4.1-mini", ports.TokenUsage{Prompt: 1}); !ok {
		t.Error("expected loaded catalog to resolve models")
	}
}

func TestLoadPricing_MissingFile(t *testing.T) {
	if _, err := LoadPricing(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing catalog")
	}
}
