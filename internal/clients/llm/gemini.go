// Package llm provides the Gemini-backed chat client used by the
// analysis funnel.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
)

const (
	DefaultModel       = "gemini-3-flash-preview"
	DefaultTemperature = 0.3
	DefaultContextSize = 32768
)

// GeminiClient implements interfaces.LLMClient against the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
	timeout     time.Duration
	maxRetries  int
	backoff     time.Duration
	logger      *common.Logger
}

var _ interfaces.LLMClient = (*GeminiClient)(nil)

// Option configures the client.
type Option func(*GeminiClient)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *GeminiClient) {
		c.model = model
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *GeminiClient) {
		c.temperature = t
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *GeminiClient) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) Option {
	return func(c *GeminiClient) {
		c.logger = logger
	}
}

// NewGeminiClient creates a new Gemini chat client.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...Option) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required: %w", common.ErrValidation)
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &GeminiClient{
		client:      genaiClient,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		timeout:     60 * time.Second,
		maxRetries:  3,
		backoff:     5 * time.Second,
		logger:      common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Chat sends one system+user exchange and returns the reply. Rate-limit
// errors are retried with backoff; a context-window overflow is retried
// once after halving the user message.
func (c *GeminiClient) Chat(ctx context.Context, system, user string, opts interfaces.ChatOptions) (*interfaces.ChatReply, error) {
	reply, err := c.chatWithRetry(ctx, system, user, opts)
	if err == nil {
		return reply, nil
	}

	if isOverflowError(err) {
		c.logger.Warn().Int("user_len", len(user)).Msg("Context overflow, retrying with halved user message")
		reply, err = c.chatWithRetry(ctx, system, user[:len(user)/2], opts)
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return reply, nil
}

func (c *GeminiClient) chatWithRetry(ctx context.Context, system, user string, opts interfaces.ChatOptions) (*interfaces.ChatReply, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying Gemini call after rate limit")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		reply, err := c.generate(ctx, system, user, opts)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !isRateLimitError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *GeminiClient) generate(ctx context.Context, system, user string, opts interfaces.ChatOptions) (*interfaces.ChatReply, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if opts.ExpectJSON {
		config.ResponseMIMEType = "application/json"
	}

	contents := genai.Text(user)
	result, err := c.client.Models.GenerateContent(callCtx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}

	text, err := extractText(result)
	if err != nil {
		return nil, err
	}
	if opts.ExpectJSON {
		text = StripJSONFences(text)
	}

	reply := &interfaces.ChatReply{Content: text}
	if result.UsageMetadata != nil {
		reply.TokensIn = int(result.UsageMetadata.PromptTokenCount)
		reply.TokensOut = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return reply, nil
}

// Close releases the client. The genai client has no close of its own.
func (c *GeminiClient) Close() error {
	return nil
}

func extractText(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no content generated")
	}
	return sb.String(), nil
}

// StripJSONFences removes leading/trailing markdown code fences so fenced
// model output still parses as JSON.
func StripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// isRateLimitError matches Gemini 429 / quota exhaustion errors.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "quota")
}

// isOverflowError matches context-window overflow errors.
func isOverflowError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "token count exceeds") ||
		strings.Contains(msg, "context length") ||
		strings.Contains(msg, "input too long") ||
		strings.Contains(msg, "exceeds the maximum")
}

// classifyError maps a provider error onto the transient/fatal taxonomy.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if isRateLimitError(err) || strings.Contains(err.Error(), "503") ||
		strings.Contains(err.Error(), "UNAVAILABLE") ||
		strings.Contains(err.Error(), "deadline exceeded") {
		return fmt.Errorf("%w: %v", common.ErrLLMTransient, err)
	}
	return fmt.Errorf("%w: %v", common.ErrLLMFatal, err)
}
