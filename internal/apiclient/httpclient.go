package apiclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"claudestation/internal/apperrors"
	"claudestation/internal/logging"
	"claudestation/internal/pricing"
)

const (
	defaultBaseURL    = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
	defaultMaxRetries = 3
)

var retryBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// defaultRequestsPerSecond and defaultBurst bound outbound calls
// client-side, independent of whatever the provider's own 429 signals
// say — a cost-protection cap, not a cache-correctness or priority
// concern, so it applies uniformly ahead of both Chat and Compress.
const (
	defaultRequestsPerSecond = 5
	defaultBurst             = 5
)

// HTTPClient is the production ApiClient, talking to the provider over
// outbound HTTPS. No third-party HTTP client library in the retrieval
// pack wraps outbound SSE consumption (see DESIGN.md), so this is built
// directly on net/http, with the retry/backoff loop and priority
// semaphore hand-written per §4.5/§5.
type HTTPClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	sem        *PrioritySemaphore
	limiter    *rate.Limiter
}

// HTTPClientOptions configures HTTPClient. BaseURL defaults to the
// production Messages API endpoint; override it in tests.
type HTTPClientOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Semaphore  *PrioritySemaphore
	// RequestsPerSecond and Burst configure the client-side outbound rate
	// cap. Zero values fall back to defaultRequestsPerSecond/defaultBurst.
	RequestsPerSecond float64
	Burst             int
}

func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	sem := opts.Semaphore
	if sem == nil {
		sem = NewPrioritySemaphore()
	}
	rps := opts.RequestsPerSecond
	if rps == 0 {
		rps = defaultRequestsPerSecond
	}
	burst := opts.Burst
	if burst == 0 {
		burst = defaultBurst
	}
	return &HTTPClient{
		httpClient: hc,
		apiKey:     opts.APIKey,
		baseURL:    base,
		sem:        sem,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// wireRequest is the JSON body shape matching §6: a `system` array of
// text blocks, a `messages` array, and the compaction request extension.
type wireRequest struct {
	Model          string           `json:"model"`
	System         []SystemBlock    `json:"system,omitempty"`
	Messages       []wireMessage    `json:"messages"`
	MaxTokens      int              `json:"max_tokens"`
	Stream         bool             `json:"stream"`
	Thinking       *wireThinking    `json:"thinking,omitempty"`
	ContextMgmt    *wireContextMgmt `json:"context_management,omitempty"`
	AnthropicBeta  []string         `json:"-"` // sent as a header, not a body field
}

type wireMessage struct {
	Role    string             `json:"role"`
	Content []wireContentBlock `json:"content"`
}

type wireContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

type wireThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type wireContextMgmt struct {
	Edits []wireContextEdit `json:"edits"`
}

type wireContextEdit struct {
	Type    string              `json:"type"`
	Trigger wireContextMgmtTrig `json:"trigger"`
}

type wireContextMgmtTrig struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

func toWireRequest(req ChatRequest) wireRequest {
	wr := wireRequest{
		Model:     req.Model,
		System:    req.System,
		MaxTokens: req.MaxTokens,
		Stream:    true,
	}
	if wr.MaxTokens == 0 {
		wr.MaxTokens = 4096
	}
	for _, m := range req.Messages {
		wm := wireMessage{Role: string(m.Role)}
		for _, b := range m.Content {
			switch b.Type {
			case ContentThinking:
				wm.Content = append(wm.Content, wireContentBlock{Type: "thinking", Thinking: b.Thinking})
			default:
				wm.Content = append(wm.Content, wireContentBlock{Type: "text", Text: b.Text})
			}
		}
		wr.Messages = append(wr.Messages, wm)
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		wr.Thinking = &wireThinking{Type: "enabled", BudgetTokens: req.Thinking.Budget}
	}
	if req.Compaction.TriggerInputTokens > 0 {
		wr.AnthropicBeta = []string{req.Compaction.Beta}
		wr.ContextMgmt = &wireContextMgmt{Edits: []wireContextEdit{{
			Type: req.Compaction.EditType,
			Trigger: wireContextMgmtTrig{
				Type:  "input_tokens",
				Value: req.Compaction.TriggerInputTokens,
			},
		}}}
	}
	return wr
}

// Chat implements ApiClient.Chat. See §4.5 and §7 for the retry and
// cancellation contract.
func (c *HTTPClient) Chat(ctx context.Context, req ChatRequest, sink Sink) error {
	log := logging.Component("apiclient")
	wr := toWireRequest(req)
	body, err := json.Marshal(wr)
	if err != nil {
		return errors.Wrap(err, "marshal chat request")
	}

	var lastErr error
	for attempt := 0; attempt <= defaultMaxRetries; attempt++ {
		emittedAny, err := c.doChatAttempt(ctx, body, wr.AnthropicBeta, sink)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// User cancellation: the partial message is already
			// finalised by the caller via sink.OnDone(); do not retry.
			return err
		}
		if emittedAny {
			// Non-idempotent-after-partial-emission (§4.5): never retry
			// once any text has reached the sink.
			log.Debug().Err(err).Msg("chat stream failed after partial emission, not retrying")
			return err
		}
		if errors.Is(err, apperrors.ErrAuthFailed) {
			return err
		}
		if errors.Is(err, apperrors.ErrRateLimited) {
			// Chat retries are allowed to proceed immediately (§4.5); the
			// retry-after wait, if any, was already honoured inside
			// doChatAttempt.
			if attempt == defaultMaxRetries {
				return err
			}
			continue
		}
		if !errors.Is(err, apperrors.ErrTransientTransport) {
			return err
		}
		if attempt == defaultMaxRetries {
			break
		}
		log.Debug().Err(err).Int("attempt", attempt).Msg("retrying chat after transient error")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff[attempt]):
		}
	}
	return errors.Wrap(lastErr, "chat exhausted retries")
}

// doChatAttempt performs one HTTP round trip and streams its SSE body
// into sink. It returns whether any text delta was emitted, which
// governs retry eligibility in Chat.
func (c *HTTPClient) doChatAttempt(ctx context.Context, body []byte, betas []string, sink Sink) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return false, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if len(betas) > 0 {
		httpReq.Header.Set("anthropic-beta", strings.Join(betas, ","))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, errors.Wrap(apperrors.ErrTransientTransport, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, apperrors.ErrAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.sem.Pause(retryAfter)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryAfter):
		}
		return false, apperrors.ErrRateLimited
	case resp.StatusCode >= 500:
		return false, errors.Wrapf(apperrors.ErrTransientTransport, "status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(resp.Body)
		return false, errors.Errorf("provider error %d: %s", resp.StatusCode, string(msg))
	}

	return streamSSE(ctx, resp.Body, sink)
}

// sseEvent mirrors the subset of Anthropic Messages API stream events
// this client understands: content_block_delta carries text/thinking
// deltas, message_delta/message_stop carry the final usage block.
type sseEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type         string `json:"type"`
		Text         string `json:"text"`
		Thinking     string `json:"thinking"`
	} `json:"delta"`
	Usage struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	} `json:"usage"`
	Message struct {
		Model string `json:"model"`
	} `json:"message"`
}

func streamSSE(ctx context.Context, r io.Reader, sink Sink) (bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	emittedAny := false
	modelUsed := ""
	usage := usageFromCounters(0, 0, 0, 0)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			sink.OnDone()
			return emittedAny, ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var ev sseEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "content_block_delta":
			switch ev.Delta.Type {
			case "text_delta":
				sink.OnTextDelta(ev.Delta.Text)
				emittedAny = true
			case "thinking_delta":
				sink.OnThinkingDelta(ev.Delta.Thinking)
			}
		case "message_start":
			if ev.Message.Model != "" {
				modelUsed = ev.Message.Model
			}
		case "message_delta", "message_stop":
			if ev.Usage.InputTokens > 0 || ev.Usage.OutputTokens > 0 {
				usage = usageFromCounters(ev.Usage.InputTokens, ev.Usage.OutputTokens,
					ev.Usage.CacheReadInputTokens, ev.Usage.CacheCreationInputTokens)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			// The body read failed because ctx was cancelled mid-stream.
			sink.OnDone()
			return emittedAny, ctx.Err()
		}
		return emittedAny, errors.Wrap(apperrors.ErrTransientTransport, err.Error())
	}
	sink.OnUsage(modelUsed, usage)
	sink.OnDone()
	return emittedAny, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 5 * time.Second
}

// Compress implements ApiClient.Compress. It forces the Haiku tier and
// never retries (§4.4/§4.5).
func (c *HTTPClient) Compress(ctx context.Context, req CompressRequest) (string, error) {
	if err := c.sem.Acquire(ctx); err != nil {
		return "", errors.Wrap(err, "acquire compress semaphore")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	wr := struct {
		Model     string        `json:"model"`
		System    string        `json:"system"`
		MaxTokens int           `json:"max_tokens"`
		Stream    bool          `json:"stream"`
		Messages  []wireMessage `json:"messages"`
	}{
		Model:     pricing.HaikuTierID,
		System:    req.SystemText,
		MaxTokens: 700,
		Stream:    false,
		Messages: []wireMessage{{
			Role:    "user",
			Content: []wireContentBlock{{Type: "text", Text: req.UserText}},
		}},
	}
	body, err := json.Marshal(wr)
	if err != nil {
		return "", errors.Wrap(err, "marshal compress request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build compress request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrap(apperrors.ErrCompressionFailed, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", apperrors.ErrAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		c.sem.Pause(parseRetryAfter(resp.Header.Get("Retry-After")))
		return "", errors.Wrap(apperrors.ErrRateLimited, "compress yielded to rate limit")
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(resp.Body)
		return "", errors.Wrap(apperrors.ErrCompressionFailed, fmt.Sprintf("status %d: %s", resp.StatusCode, string(msg)))
	}

	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(apperrors.ErrCompressionFailed, err.Error())
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
