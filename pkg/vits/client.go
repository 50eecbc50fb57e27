package vits

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vitstts/pkg/tools"
)

const (
	speakersPath = "voice/speakers"
	vitsPath     = "voice/vits"
)

// Config holds request defaults that are not exposed as runtime settings.
type Config struct {
	Format      string `yaml:"format"`
	Lang        string `yaml:"lang"`
	SegmentSize int    `yaml:"segment_size"`
}

var _ HTTPClient = http.DefaultClient

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to a vits-simple-api compatible server. The base url is passed per call
// because it can be changed at runtime from the settings panel.
type Client struct {
	cfg        *Config
	httpClient HTTPClient
}

func New(httpClient HTTPClient, cfg *Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if cfg == nil {
		cfg = &Config{}
	}

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
	}
}

type Speaker struct {
	ID   int      `json:"id"`
	Name string   `json:"name"`
	Lang []string `json:"lang"`
}

// Label renders the speaker the way it is shown in the voice selector.
func (s Speaker) Label() string {
	return fmt.Sprintf("%d | %s | %s", s.ID, s.Name, strings.Join(s.Lang, "/"))
}

type speakersResp struct {
	VITS []Speaker `json:"VITS"`
}

func (c *Client) Speakers(ctx context.Context, baseURL string) ([]Speaker, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, tools.JoinURL(baseURL, speakersPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respData, err := c.do(request, "speakers")
	if err != nil {
		return nil, err
	}

	resp := &speakersResp{}
	if err := json.Unmarshal(respData, resp); err != nil {
		metrics.Errors.WithLabelValues("speakers", "parse").Inc()
		return nil, fmt.Errorf("failed to unmarshal speakers: %w", err)
	}

	return resp.VITS, nil
}

// SynthesisRequest mirrors the query parameters of GET /voice/vits. Numeric parameters stay
// strings because they come straight from text fields.
type SynthesisRequest struct {
	BaseURL string

	Text    string
	VoiceID string

	Length string
	Noise  string
	NoiseW string

	Streaming bool
}

func (c *Client) query(req *SynthesisRequest) url.Values {
	format := c.cfg.Format
	if format == "" {
		format = "mp3"
	}

	lang := c.cfg.Lang
	if lang == "" {
		lang = "auto"
	}

	q := url.Values{}
	q.Set("text", req.Text)
	q.Set("id", req.VoiceID)
	q.Set("format", format)
	q.Set("lang", lang)
	q.Set("length", req.Length)
	q.Set("noise", req.Noise)
	q.Set("noisew", req.NoiseW)
	q.Set("segment_size", strconv.Itoa(c.cfg.SegmentSize))
	q.Set("streaming", strconv.FormatBool(req.Streaming))

	return q
}

// Format is the audio container requested from the server, also used as file extension.
func (c *Client) Format() string {
	if c.cfg.Format == "" {
		return "mp3"
	}

	return c.cfg.Format
}

// Synthesize returns the raw response body. The body is not inspected beyond the status code.
func (c *Client) Synthesize(ctx context.Context, req *SynthesisRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request provided")
	}

	start := time.Now()

	u, err := url.Parse(tools.JoinURL(req.BaseURL, vitsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	u.RawQuery = c.query(req).Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	audio, err := c.do(request, "vits")
	if err != nil {
		return nil, err
	}

	metrics.QueryTime.Observe(time.Since(start).Seconds())

	return audio, nil
}

func (c *Client) do(request *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.httpClient.Do(request)
	if err != nil {
		metrics.Errors.WithLabelValues(endpoint, "transport").Inc()
		return nil, fmt.Errorf("failed to call vits server: %w", err)
	}
	defer tools.DrainAndClose(resp.Body)

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.Errors.WithLabelValues(endpoint, "transport").Inc()
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode > 299 {
		metrics.Errors.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		return nil, fmt.Errorf("status code %d, err - %s", resp.StatusCode, strings.TrimSpace(string(respData)))
	}

	return respData, nil
}
