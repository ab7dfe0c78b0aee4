package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TEIConfig configures a text-embeddings-inference client.
type TEIConfig struct {
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// Validate checks the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// TEIProvider calls the /embed endpoint of a TEI server.
type TEIProvider struct {
	config TEIConfig
	client *http.Client
}

// NewTEIProvider creates a TEI client.
func NewTEIProvider(cfg TEIConfig) (*TEIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &TEIProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type teiRequest struct {
	Inputs   any  `json:"inputs"`
	Truncate bool `json:"truncate"`
}

// EmbedDocuments implements Provider.
func (p *TEIProvider) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	call := track("tei", p.config.Model, opDocuments, texts...)
	defer func() { call.done(ctx, err) }()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors, err = p.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery implements Provider.
func (p *TEIProvider) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	call := track("tei", p.config.Model, opQuery, text)
	defer func() { call.done(ctx, err) }()

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

func (p *TEIProvider) embed(ctx context.Context, inputs any) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return vectors, nil
}

// Dimension implements Provider.
func (p *TEIProvider) Dimension() int { return p.config.Dimension }

// Close implements Provider.
func (p *TEIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
