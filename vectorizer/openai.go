package vectorizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// maxAPIBatchSize caps how many inputs go into one embeddings request.
const maxAPIBatchSize = 256

// OpenAI is an embedding provider using the OpenAI-compatible API. Any
// endpoint speaking the same protocol works via BaseURL.
type OpenAI struct {
	client   *openai.Client
	model    openai.EmbeddingModel
	dims     int
	user     string
	provider string
	logger   *zap.Logger
}

// OpenAIConfig holds the embedding provider settings.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint for compatible providers.
	BaseURL string
	Model   string
	// Dims requests a specific embedding width when the model supports it.
	Dims int
	User string
	// Provider labels metrics; defaults to "openai".
	Provider string
	Logger   *zap.Logger
}

// NewOpenAI creates an OpenAI-compatible embedding provider.
func NewOpenAI(cfg *OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAI{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    openai.EmbeddingModel(cfg.Model),
		dims:     cfg.Dims,
		user:     cfg.User,
		provider: provider,
		logger:   logger,
	}
}

// Dims reports the configured embedding width. Zero means the model default.
func (v *OpenAI) Dims() int { return v.dims }

// Embed implements Vectorizer.
func (v *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := v.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany implements Vectorizer. Inputs are split into API-sized batches;
// the returned slice preserves input order.
func (v *OpenAI) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxAPIBatchSize {
		end := min(start+maxAPIBatchSize, len(texts))
		batch, err := v.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (v *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          v.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           v.user,
	}
	if v.dims > 0 {
		req.Dimensions = v.dims
	}

	start := time.Now()

	resp, err := v.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		requestsTotal.WithLabelValues(v.provider, string(v.model), "error").Inc()
		errorsTotal.WithLabelValues(v.provider, string(v.model), "api_error").Inc()
		v.logger.Error("embedding request failed",
			zap.String("provider", v.provider),
			zap.String("model", string(v.model)),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, parseAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		requestsTotal.WithLabelValues(v.provider, string(v.model), "error").Inc()
		errorsTotal.WithLabelValues(v.provider, string(v.model), "incomplete_response").Inc()
		return nil, fmt.Errorf("got %d embeddings for %d inputs: %w",
			len(resp.Data), len(texts), ErrProviderError)
	}

	requestsTotal.WithLabelValues(v.provider, string(v.model), "success").Inc()
	requestDuration.WithLabelValues(v.provider, string(v.model)).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		tokensTotal.WithLabelValues(v.provider, string(v.model), "prompt").
			Add(float64(resp.Usage.PromptTokens))
		tokensTotal.WithLabelValues(v.provider, string(v.model), "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	// The API may reorder data entries; Index restores input order.
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range: %w",
				item.Index, ErrProviderError)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// parseAPIError extracts a human-readable error from the API response. All
// errors wrap ErrProviderError so callers can classify them.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, detail, ErrProviderError)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, ErrProviderError)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, ErrProviderError)
}

// extractDetail pulls the "detail" field out of a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
