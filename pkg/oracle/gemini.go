// Package oracle talks to the Gemini generateContent endpoint, the
// semantic-extraction service that turns asadm free text into structured
// data. The caller treats it as an opaque text-to-JSON oracle; everything
// here is transport.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/constants"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ErrNotConfigured is returned when no API key is set. Callers are expected
// to fall back to deterministic extraction, never to surface this upstream.
var ErrNotConfigured = errors.New("oracle API key not configured")

// Config contains the Gemini client settings.
type Config struct {
	APIKey         string        `json:"-"`
	Model          string        `json:"model"`
	BaseURL        string        `json:"baseUrl"`
	Temperature    float64       `json:"temperature"`
	Timeout        time.Duration `json:"timeout"`
	ConnectTimeout time.Duration `json:"connectTimeout"`
}

// DefaultConfig returns settings tuned for deterministic extraction rather
// than creative generation.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:         apiKey,
		Model:          "gemini-2.0-flash",
		BaseURL:        defaultBaseURL,
		Temperature:    0.1,
		Timeout:        constants.DEFAULT_ORACLE_TIMEOUT,
		ConnectTimeout: 10 * time.Second,
	}
}

// Client is a thin HTTP client for the Gemini REST API.
type Client struct {
	config *Config
	client *http.Client
}

func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   config.ConnectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Configured reports whether the client has an API key to work with.
func (c *Client) Configured() bool {
	return c != nil && c.config.APIKey != "" && c.config.APIKey != "your_gemini_api_key_here"
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate submits the prompt and returns the model's raw text response.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{Temperature: c.config.Temperature},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal oracle request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.config.BaseURL, c.config.Model, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to build oracle request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "oracle request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read oracle response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("oracle returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errors.Wrap(err, "failed to decode oracle response")
	}
	if parsed.Error != nil {
		return "", errors.Errorf("oracle error %s: %s", parsed.Error.Status, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("oracle returned no candidates")
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	klog.V(1).Infof("oracle responded in %s (%d chars)", time.Since(start).Round(time.Millisecond), len(text))

	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
