// Package keytermgen generates transcription keyterms for a show or movie by
// asking an LLM for the character names, places and jargon most likely to be
// misheard. Providers form a closed set; there is no plugin mechanism.
package keytermgen

import (
	"context"
	"fmt"
	"strings"
)

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Request describes one generation call.
type Request struct {
	ShowName string
	Existing []string // current keyterms, shown to the model
	Preserve bool     // instruct the model to keep existing terms
}

// Response is the parsed generation result with token accounting.
type Response struct {
	Keyterms      []string `json:"keyterms"`
	TokenCount    int      `json:"token_count"`
	EstimatedCost float64  `json:"estimated_cost"`
	Provider      string   `json:"provider"`
	Model         string   `json:"model"`
}

type completer interface {
	complete(ctx context.Context, prompt string) (text string, tokens int, err error)
	model() string
}

// Generator dispatches over the fixed provider set.
type Generator struct {
	provider Provider
	impl     completer
}

// New returns a generator for the given provider, or an error for an unknown
// provider or missing key.
func New(provider Provider, model, apiKey string) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("keytermgen: no API key for provider %s", provider)
	}
	switch provider {
	case ProviderOpenAI:
		return &Generator{provider: provider, impl: newOpenAIClient(apiKey, model)}, nil
	case ProviderAnthropic:
		return &Generator{provider: provider, impl: newAnthropicClient(apiKey, model)}, nil
	default:
		return nil, fmt.Errorf("keytermgen: unknown provider %q", provider)
	}
}

// Generate calls the LLM and parses its comma-separated keyterm list.
func (g *Generator) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.ShowName == "" {
		return nil, fmt.Errorf("keytermgen: empty show name")
	}
	prompt := buildPrompt(req)

	text, tokens, err := g.impl.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("keytermgen: %w", err)
	}

	terms := parseKeyterms(text)
	if req.Preserve {
		terms = appendMissing(terms, req.Existing)
	}

	return &Response{
		Keyterms:      terms,
		TokenCount:    tokens,
		EstimatedCost: tokenCost(g.impl.model(), tokens),
		Provider:      string(g.provider),
		Model:         g.impl.model(),
	}, nil
}

// parseKeyterms splits a comma-separated model response, trimming whitespace
// and dropping case-insensitive duplicates while preserving order.
func parseKeyterms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, raw := range strings.Split(strings.TrimSpace(text), ",") {
		term := strings.TrimSpace(raw)
		if term == "" || seen[strings.ToLower(term)] {
			continue
		}
		seen[strings.ToLower(term)] = true
		terms = append(terms, term)
	}
	return terms
}

// appendMissing adds any existing terms the model dropped despite the preserve
// instruction.
func appendMissing(terms, existing []string) []string {
	have := make(map[string]bool, len(terms))
	for _, t := range terms {
		have[strings.ToLower(t)] = true
	}
	for _, t := range existing {
		if !have[strings.ToLower(t)] {
			terms = append(terms, t)
			have[strings.ToLower(t)] = true
		}
	}
	return terms
}
