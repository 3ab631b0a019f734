package flux

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"fluxgen/internal/domain"
	"fluxgen/internal/infra"
)

const (
	DefaultBaseURL      = "https://api.bfl.ml"
	DefaultPollInterval = 500 * time.Millisecond

	apiVersion  = "v1"
	statusReady = "Ready"

	dimensionStep = 32
)

// Bounds of a normalized width or height.
const (
	MinDimension = 256
	MaxDimension = 1440
)

// Provider statuses that will never become Ready.
var terminalStatuses = map[string]struct{}{
	"Error":             {},
	"Content Moderated": {},
	"Request Moderated": {},
	"Task not found":    {},
}

// Options configures the FLUX API client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	// PollInterval is the fixed delay between result queries.
	PollInterval time.Duration
	// PollTimeout bounds AwaitResult. Zero waits until the provider reports Ready.
	PollTimeout time.Duration
}

// Client talks to the BFL FLUX text-to-image API: submit, poll, fetch.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// Request is one text-to-image generation.
type Request struct {
	Model  string
	Prompt string
	Width  int
	Height int
}

// Asset is a downloaded generation result.
type Asset struct {
	URL         string
	Data        []byte
	ContentType string
}

type submitRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type resultResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result *struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// NewClient constructs a client with defaults for every unset option.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("flux: api key is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.Nop())
		logger = &l
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: pollInterval,
		pollTimeout:  opts.PollTimeout,
	}, nil
}

// NormalizeDimension rounds v to the nearest multiple of 32 and clamps it into
// [256, 1440]. Out-of-range input is clamped before rounding.
func NormalizeDimension(v int) int {
	if v >= MaxDimension {
		return MaxDimension
	}
	if v <= MinDimension {
		return MinDimension
	}
	rounded := int(math.Round(float64(v)/dimensionStep)) * dimensionStep
	return max(MinDimension, min(MaxDimension, rounded))
}

// Generate runs the full submit, poll and fetch sequence for req.
func (c *Client) Generate(ctx context.Context, req Request) (*Asset, error) {
	handle, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	assetURL, err := c.AwaitResult(ctx, handle)
	if err != nil {
		return nil, err
	}
	data, contentType, err := c.FetchAsset(ctx, assetURL)
	if err != nil {
		return nil, err
	}
	return &Asset{URL: assetURL, Data: data, ContentType: contentType}, nil
}

// Submit creates a generation on the provider and returns its job handle.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return "", domain.InvalidModelError(model)
	}
	payload := submitRequest{
		Prompt: req.Prompt,
		Width:  NormalizeDimension(req.Width),
		Height: NormalizeDimension(req.Height),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", domain.ProtocolError(err, "flux: encode request")
	}
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, apiVersion, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.RemoteRequestError(err, "flux: build request")
	}
	c.authorize(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	raw, err := c.do(httpReq)
	if err != nil {
		return "", err
	}
	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", domain.ProtocolError(err, "flux: decode submit response")
	}
	handle := strings.TrimSpace(decoded.ID)
	if handle == "" {
		return "", domain.ProtocolError(nil, "flux: no request id received")
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", handle).
		Int("width", payload.Width).
		Int("height", payload.Height).
		Msg("flux: submitted generation")
	return handle, nil
}

// AwaitResult polls the provider at the configured interval until the
// generation is Ready and returns the sample URL. A single failed poll ends the
// wait. Without a PollTimeout the loop only stops on Ready, a provider failure
// status, an error, or ctx cancellation.
func (c *Client) AwaitResult(ctx context.Context, handle string) (string, error) {
	if c.pollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pollTimeout)
		defer cancel()
	}
	endpoint := fmt.Sprintf("%s/%s/get_result?%s", c.baseURL, apiVersion, url.Values{"id": {handle}}.Encode())
	limiter := rate.NewLimiter(rate.Every(c.pollInterval), 1)
	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", domain.RemoteRequestError(contextErr(ctx, err), "flux: polling %s stopped", handle)
		}
		result, err := c.poll(ctx, endpoint)
		if err != nil {
			return "", err
		}
		if result.Status == statusReady {
			if result.Result == nil || strings.TrimSpace(result.Result.Sample) == "" {
				return "", domain.ProtocolError(nil, "flux: result for %s is ready but has no sample", handle)
			}
			return strings.TrimSpace(result.Result.Sample), nil
		}
		if _, failed := terminalStatuses[result.Status]; failed {
			return "", domain.ProtocolError(nil, "flux: generation %s ended with status %q", handle, result.Status)
		}
		c.logger.Debug().
			Str("request_id", handle).
			Str("status", result.Status).
			Int("attempt", attempt).
			Msg("flux: generation pending")
	}
}

// FetchAsset downloads the generated image and returns its bytes and content type.
func (c *Client) FetchAsset(ctx context.Context, assetURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(assetURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", domain.ProtocolError(err, "flux: invalid asset url %q", assetURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", domain.RemoteRequestError(err, "flux: build download request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", domain.RemoteRequestError(err, "flux: download image")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", domain.RemoteRequestError(nil, "flux: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", domain.RemoteRequestError(err, "flux: read image")
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (c *Client) poll(ctx context.Context, endpoint string) (*resultResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.RemoteRequestError(err, "flux: build poll request")
	}
	c.authorize(req)
	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var decoded resultResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, domain.ProtocolError(err, "flux: decode result")
	}
	return &decoded, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-key", c.apiKey)
}

// do executes req and returns the body of a successful response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.RemoteRequestError(err, "flux: http request")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.RemoteRequestError(err, "flux: read response")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, domain.RemoteRequestError(nil, "flux: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// contextErr reports a limiter refusal that would overrun the deadline as
// context.DeadlineExceeded.
func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
