// Package advice asks an OpenAI-compatible chat completion endpoint for the growing conditions of a
// crop. Failures never propagate as crashes: the caller always gets a text to show.
package advice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/trace"
)

// Fallback texts shown to the user.
const (
	FallbackEmpty = "GPT 응답을 가져올 수 없습니다."
	FallbackError = "응답을 처리하는 중 오류가 발생했습니다."
)

const promptTemplate = "%s의 최적 재배 환경에 대한 정보를 알려줘. 최고기온, 최저기온, 최고습도, 최저습도, " +
	"최고토양습도, 최저토양습도 값을 포함해서. Bold 형식 없이 응답"

type (
	// Cfg is used to initialize an instance of Client.
	Cfg struct {
		Endpoint   string
		APIKey     string
		Model      string
		Timeout    time.Duration
		RetryMax   int
		MaxTokens  int
		Log        log.Logger
		HTTPClient *http.Client
	}

	// Client is the advice endpoint client.
	Client struct {
		endpoint  string
		apiKey    string
		model     string
		maxTokens int
		http      *retryablehttp.Client
		log       log.Logger
	}

	// UpstreamError tells why the advice endpoint gave no usable answer.
	UpstreamError struct {
		Status int
		Err    error
	}

	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	chatRequest struct {
		Model            string        `json:"model"`
		Messages         []chatMessage `json:"messages"`
		MaxTokens        int           `json:"max_tokens"`
		TopP             float64       `json:"top_p"`
		Temperature      float64       `json:"temperature"`
		FrequencyPenalty float64       `json:"frequency_penalty"`
		PresencePenalty  float64       `json:"presence_penalty"`
	}

	chatResponse struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
)

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("advice: upstream status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("advice: %v", e.Err)
}

// Cause lets errors.Cause unwrap the upstream failure.
func (e *UpstreamError) Cause() error { return e.Err }

// New creates and initializes a new instance of Client.
func New(c *Cfg) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = c.RetryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	if c.HTTPClient != nil {
		rc.HTTPClient = c.HTTPClient
	}
	if c.Timeout > 0 {
		rc.HTTPClient.Timeout = c.Timeout
	}
	rc.HTTPClient.Transport = trace.Transport(rc.HTTPClient.Transport)

	model := c.Model
	if model == "" {
		model = "gpt-4o"
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	l := c.Log
	if l == nil {
		l = log.NewNop()
	}

	return &Client{
		endpoint:  c.Endpoint,
		apiKey:    c.APIKey,
		model:     model,
		maxTokens: maxTokens,
		http:      rc,
		log:       l.With("component", "advice"),
	}
}

// Prompt builds the question sent for crop.
func Prompt(crop string) string {
	return fmt.Sprintf(promptTemplate, crop)
}

// Ask returns the advice for crop. On failure it returns the fallback text together with an
// *UpstreamError.
func (c *Client) Ask(ctx context.Context, crop string) (string, error) {
	crop = strings.TrimSpace(crop)
	if crop == "" {
		return "", fmt.Errorf("crop is empty")
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: Prompt(crop)}},
		MaxTokens:   c.maxTokens,
		TopP:        1,
		Temperature: 0.5,
	})
	if err != nil {
		return FallbackError, &UpstreamError{Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return FallbackError, &UpstreamError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.With("event", log.EventUpstreamFailed).Errorf("func Ask: %s", err)
		return FallbackError, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.log.With("event", log.EventUpstreamFailed).Errorf("func Ask: status %d", resp.StatusCode)
		return FallbackError, &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		c.log.With("event", log.EventUpstreamFailed).Errorf("func Ask: %s", err)
		return FallbackError, &UpstreamError{Status: resp.StatusCode, Err: err}
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		c.log.With("event", log.EventUpstreamFailed).Warnf("func Ask: empty answer")
		return FallbackEmpty, &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("empty answer")}
	}
	return cr.Choices[0].Message.Content, nil
}
