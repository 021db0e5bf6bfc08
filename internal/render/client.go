package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/formlab/modelbridge/internal/backoff"
)

var (
	ErrNoToken      = errors.New("render: no api token configured")
	ErrNoOutput     = errors.New("render: prediction finished without output")
	ErrRenderFailed = errors.New("render: prediction failed")
)

const (
	DefaultBaseURL      = "https://api.replicate.com/v1"
	DefaultModelVersion = "435061a1b5a4c1e26740464bf786efdfa9cb3a3ac488595a2de23e143fdb0117"
	DefaultPollTimeout  = 2 * time.Minute
)

// Config carries everything the client needs. Token is required; the
// rest defaults sensibly via Defaults.
type Config struct {
	Token        string
	BaseURL      string
	ModelVersion string
	PollTimeout  time.Duration
	HTTPClient   *http.Client
	Backoff      backoff.Config
}

func (c *Config) Defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ModelVersion == "" {
		c.ModelVersion = DefaultModelVersion
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = backoff.Config{
			InitialDelay: time.Second,
			Multiplier:   1.5,
			MaxDelay:     10 * time.Second,
			Jitter:       true,
		}
	}
}

type Client struct {
	cfg Config
	rng *rand.Rand
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrNoToken
	}
	cfg.Defaults()
	return &Client{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Request describes one rendering. Image is a data URI or URL for the
// captured viewport.
type Request struct {
	Prompt string
	Image  string
}

// Result is the terminal prediction state.
type Result struct {
	ID     string
	Status string
	Output []string
}

// URL returns the first output artifact.
func (r Result) URL() string {
	if len(r.Output) == 0 {
		return ""
	}
	return r.Output[0]
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  *string         `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// Render creates a prediction and polls until it reaches a terminal
// status or the poll timeout elapses.
func (c *Client) Render(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Result{}, errors.New("render: prompt is required")
	}
	if strings.TrimSpace(req.Image) == "" {
		return Result{}, errors.New("render: image is required")
	}

	pred, err := c.create(ctx, req)
	if err != nil {
		return Result{}, err
	}
	log.Info().Str("prediction", pred.ID).Msg("render: prediction created")

	deadline := time.Now().Add(c.cfg.PollTimeout)
	attempt := 0
	for !terminal(pred.Status) {
		if time.Now().After(deadline) {
			return Result{}, fmt.Errorf("render: prediction %s still %s after %s", pred.ID, pred.Status, c.cfg.PollTimeout)
		}
		delay := backoff.Next(c.cfg.Backoff, attempt, c.rng)
		attempt++
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(delay):
		}
		pred, err = c.get(ctx, pred.URLs.Get)
		if err != nil {
			return Result{}, err
		}
	}

	if pred.Status != "succeeded" {
		msg := pred.Status
		if pred.Error != nil && *pred.Error != "" {
			msg = *pred.Error
		}
		return Result{}, fmt.Errorf("%w: %s", ErrRenderFailed, msg)
	}
	out, err := decodeOutput(pred.Output)
	if err != nil {
		return Result{}, err
	}
	if len(out) == 0 {
		return Result{}, ErrNoOutput
	}
	return Result{ID: pred.ID, Status: pred.Status, Output: out}, nil
}

func terminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

func (c *Client) create(ctx context.Context, req Request) (prediction, error) {
	body := map[string]any{
		"version": c.cfg.ModelVersion,
		"input": map[string]any{
			"prompt": req.Prompt,
			"image":  req.Image,
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return prediction{}, fmt.Errorf("render: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/predictions", bytes.NewReader(raw))
	if err != nil {
		return prediction{}, err
	}
	return c.do(httpReq)
}

func (c *Client) get(ctx context.Context, url string) (prediction, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return prediction{}, err
	}
	return c.do(httpReq)
}

func (c *Client) do(req *http.Request) (prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return prediction{}, fmt.Errorf("render: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return prediction{}, fmt.Errorf("render: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return prediction{}, fmt.Errorf("render: api returned %d: %s", resp.StatusCode, summarize(raw))
	}
	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return prediction{}, fmt.Errorf("render: decode response: %w", err)
	}
	return pred, nil
}

// decodeOutput tolerates both a single URL string and a list of URLs;
// the API returns either depending on the model.
func decodeOutput(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	return nil, errors.New("render: unexpected output shape")
}

func summarize(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
