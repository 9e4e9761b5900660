package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const genericProviderMessage = "generation provider request failed"

// ErrVideoTimeout is returned when a video job is still pending after the poll budget.
var ErrVideoTimeout = errors.New("video generation did not finish in time")

// ProviderError carries the generation provider's own failure message.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return "provider error: " + e.Message
}

// GenerationRequest is the input of one generation call. Images maps a role
// ("person", "garment", "source") to a base64 payload or URL.
type GenerationRequest struct {
	Prompt      string            `json:"prompt"`
	Images      map[string]string `json:"images,omitempty"`
	AspectRatio string            `json:"aspect_ratio,omitempty"`
}

// GenerationResult is what a successful generation produced.
type GenerationResult struct {
	ImageBase64 string `json:"image_base64,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	URL         string `json:"url,omitempty"`
	Text        string `json:"text,omitempty"`
}

// VideoStatus is the provider-side state of a video job.
type VideoStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"` // pending | running | succeeded | failed
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

// GenerationGateway is the remote AI generation backend.
type GenerationGateway interface {
	GenerateImage(ctx context.Context, op model.Operation, req GenerationRequest) (*GenerationResult, error)
	StartVideo(ctx context.Context, req GenerationRequest) (string, error)
	GetVideoStatus(ctx context.Context, providerJobID string) (*VideoStatus, error)
	// WaitForVideo polls until the job finishes, fails or the poll budget runs out.
	WaitForVideo(ctx context.Context, providerJobID string) (*GenerationResult, error)
	CompleteText(ctx context.Context, prompt string) (string, error)
}

// GatewayConfig configures the HTTP gateway client.
type GatewayConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	MaxPolls       int
}

type gatewayClient struct {
	cfg    GatewayConfig
	client *http.Client
	logger zerolog.Logger
}

func NewGatewayClient(cfg GatewayConfig, logger zerolog.Logger) GenerationGateway {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 60
	}
	return &gatewayClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger.With().Str("service", "GatewayClient").Logger(),
	}
}

func (c *gatewayClient) GenerateImage(ctx context.Context, op model.Operation, req GenerationRequest) (*GenerationResult, error) {
	var res GenerationResult
	if err := c.do(ctx, http.MethodPost, "/v1/images/"+string(op), req, &res); err != nil {
		return nil, err
	}
	if res.ImageBase64 == "" && res.URL == "" {
		return nil, &ProviderError{Message: "provider returned no image"}
	}
	return &res, nil
}

func (c *gatewayClient) StartVideo(ctx context.Context, req GenerationRequest) (string, error) {
	var st VideoStatus
	if err := c.do(ctx, http.MethodPost, "/v1/videos", req, &st); err != nil {
		return "", err
	}
	if st.ID == "" {
		return "", &ProviderError{Message: "provider returned no video job id"}
	}
	return st.ID, nil
}

func (c *gatewayClient) GetVideoStatus(ctx context.Context, providerJobID string) (*VideoStatus, error) {
	var st VideoStatus
	if err := c.do(ctx, http.MethodGet, "/v1/videos/"+providerJobID, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

var errVideoPending = errors.New("video pending")

func (c *gatewayClient) WaitForVideo(ctx context.Context, providerJobID string) (*GenerationResult, error) {
	b := retry.WithMaxRetries(uint64(c.cfg.MaxPolls), retry.NewConstant(c.cfg.PollInterval))

	var result *GenerationResult
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		st, err := c.GetVideoStatus(ctx, providerJobID)
		if err != nil {
			var perr *ProviderError
			if errors.As(err, &perr) && perr.StatusCode < http.StatusInternalServerError {
				return err
			}
			// transport errors and 5xx are retried within the same budget
			return retry.RetryableError(err)
		}
		switch st.Status {
		case "succeeded":
			if st.URL == "" {
				return &ProviderError{Message: "provider returned no video url"}
			}
			result = &GenerationResult{URL: st.URL, MimeType: "video/mp4"}
			return nil
		case "failed":
			msg := st.Error
			if msg == "" {
				msg = genericProviderMessage
			}
			return &ProviderError{Message: msg}
		default:
			return retry.RetryableError(errVideoPending)
		}
	})
	if errors.Is(err, errVideoPending) {
		c.logger.Warn().Str("provider_job_id", providerJobID).Int("max_polls", c.cfg.MaxPolls).Msg("Video job exhausted poll budget")
		return nil, ErrVideoTimeout
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *gatewayClient) CompleteText(ctx context.Context, prompt string) (string, error) {
	var res GenerationResult
	if err := c.do(ctx, http.MethodPost, "/v1/text", GenerationRequest{Prompt: prompt}, &res); err != nil {
		return "", err
	}
	return res.Text, nil
}

func (c *gatewayClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("making request to generation provider: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := providerMessage(bodyBytes)
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("path", path).
			Str("error", msg).
			Msg("Generation provider returned error")
		return &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding provider response: %w", err)
	}
	return nil
}

// providerMessage extracts a human-readable message from an error body,
// accepting {"error":{"message":..}}, {"error":".."} and {"message":".."}.
func providerMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			var flat string
			if json.Unmarshal(envelope.Error, &flat) == nil && flat != "" {
				return flat
			}
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return genericProviderMessage
}
