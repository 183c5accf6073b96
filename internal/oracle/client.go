package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"cryptoden/internal/logger"
	"cryptoden/internal/pkg/jsonutil"
)

// Client talks to an OpenAI-compatible /v1/chat/completions endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int

	httpc *http.Client
}

var _ Confirmer = (*Client)(nil)

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		Timeout:    timeout,
		MaxRetries: 2,
		httpc:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) Confirm(ctx context.Context, p Prompt) (Confirmation, error) {
	raw, err := c.complete(ctx, p)
	if err != nil {
		return Confirmation{}, err
	}
	conf, err := parseConfirmation(raw)
	if err != nil {
		logger.Warnf("oracle: unparseable reply: %v", err)
		return Confirmation{}, &FailureError{Kind: KindParse, Err: err}
	}
	return conf, nil
}

func (c *Client) complete(ctx context.Context, p Prompt) (string, error) {
	url := completionsURL(c.BaseURL)

	messages := []map[string]string{}
	if p.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": p.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": p.User})
	body, _ := json.Marshal(map[string]any{
		"model":       c.Model,
		"messages":    messages,
		"temperature": 0.2,
	})

	retries := c.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", &FailureError{Kind: KindTransport, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return "", &FailureError{Kind: KindTransport, Err: err}
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if decodeErr != nil {
				return "", &FailureError{Kind: KindParse, Err: decodeErr}
			}
			if len(r.Choices) == 0 {
				return "", &FailureError{Kind: KindParse, Err: fmt.Errorf("empty choices")}
			}
			return r.Choices[0].Message.Content, nil
		}

		status := resp.StatusCode
		resp.Body.Close()
		lastErr = fmt.Errorf("status %d", status)
		if !retryableStatus(status) || attempt == retries {
			break
		}
		wait := time.Duration(attempt+1) * 2 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, perr := strconv.Atoi(ra); perr == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		select {
		case <-ctx.Done():
			return "", &FailureError{Kind: KindTransport, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
	return "", &FailureError{Kind: KindStatus, Err: lastErr}
}

func completionsURL(base string) string {
	url := strings.TrimSpace(base)
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// parseConfirmation digs the verdict object out of the model's reply,
// tolerating code fences and surrounding prose.
func parseConfirmation(raw string) (Confirmation, error) {
	body, ok := jsonutil.ExtractObject(raw)
	if !ok || !gjson.Valid(body) {
		return Confirmation{}, fmt.Errorf("no JSON object in reply")
	}
	parsed := gjson.Parse(body)
	action := strings.ToLower(strings.TrimSpace(parsed.Get("action").String()))
	if action == "" {
		return Confirmation{}, fmt.Errorf("reply object has no action")
	}
	conf := Confirmation{
		Action:     action,
		Confidence: parsed.Get("confidence").Float(),
		Reasoning:  strings.TrimSpace(parsed.Get("reasoning").String()),
	}
	if conf.Confidence < 0 {
		conf.Confidence = 0
	}
	if conf.Confidence > 1 {
		// Some models answer in percent.
		conf.Confidence = conf.Confidence / 100
		if conf.Confidence > 1 {
			conf.Confidence = 1
		}
	}
	return conf, nil
}
