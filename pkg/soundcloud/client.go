package soundcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultAPIBaseURL is the public SoundCloud API endpoint.
	DefaultAPIBaseURL = "https://api.soundcloud.com"
	// credentialParam is the query parameter carrying the client id.
	credentialParam = "client_id"
	// userAgent identifies outbound requests.
	userAgent = "trackmeta/1.0 (+https://github.com/trackmeta)"
	// acceptJSON is the accept header sent with every request.
	acceptJSON = "application/json"
	// maxTrackBodySize caps track and resolve responses.
	maxTrackBodySize = 1 << 20
	// maxWaveformBodySize caps waveform documents.
	maxWaveformBodySize = 4 << 20
	// maxHTTPRedirects is the maximum number of transport-level redirects to follow.
	maxHTTPRedirects = 3
)

var (
	// ErrTrackNotFound is returned when the API has no track for a reference.
	ErrTrackNotFound = errors.New("track not found")
	// ErrNoStreamURL is returned when a track resolves without a stream URL.
	ErrNoStreamURL = errors.New("track has no stream url")
	// ErrProcessing is returned when the API reports the track as pending or processing.
	ErrProcessing = errors.New("track is still processing")
	// ErrTooManyRedirects is returned when too many redirects are encountered.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrMalformedResponse is returned when a body cannot be interpreted.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrUnexpectedStatus is returned for non-success statuses other than 404 and 202.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrEmptyReference is returned for blank reference input.
	ErrEmptyReference = errors.New("empty track reference")
)

// RequestObserver is notified after every API round trip.
// status is 0 when the request failed before a response arrived.
type RequestObserver func(endpoint string, status int, elapsed time.Duration)

// Client talks to the SoundCloud API.
type Client struct {
	client   *http.Client
	baseURL  *url.URL
	logger   *zap.Logger
	observer RequestObserver
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestObserver registers a hook called after every API request.
func WithRequestObserver(observer RequestObserver) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient creates a client for the API rooted at baseURL.
// An empty baseURL selects DefaultAPIBaseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q: missing scheme or host", baseURL)
	}

	c := &Client{
		client:  newHTTPClient(),
		baseURL: u,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClient creates an HTTP client with redirect validation. Deadlines come
// from the request context.
func newHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxHTTPRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// endpointURL joins path onto the API root.
func (c *Client) endpointURL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// withCredential attaches the credential as a query parameter.
// Relative URLs are resolved against the API root.
func (c *Client) withCredential(rawURL, credential string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid url %q: %w", ErrMalformedResponse, rawURL, err)
	}
	if !u.IsAbs() {
		u = c.baseURL.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported url scheme %q", ErrMalformedResponse, u.Scheme)
	}
	if credential != "" {
		q := u.Query()
		q.Set(credentialParam, credential)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// getJSON performs one GET and decodes the body into dest.
// 404 maps to ErrTrackNotFound and 202 to ErrProcessing.
func (c *Client) getJSON(ctx context.Context, endpoint, reqURL string, maxSize int64, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return err
	}

	requestID := uuid.NewString()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptJSON)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(endpoint, 0, time.Since(start))
		c.logger.Debug("API request failed",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Error(err))
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.observe(endpoint, resp.StatusCode, time.Since(start))
	c.logger.Debug("API request completed",
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrTrackNotFound
	case resp.StatusCode == http.StatusAccepted:
		return ErrProcessing
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s returned status %d", ErrUnexpectedStatus, endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return fmt.Errorf("failed to read %s response body: %w", endpoint, err)
	}
	if int64(len(body)) > maxSize {
		return fmt.Errorf("%w: %s response exceeds %d bytes", ErrMalformedResponse, endpoint, maxSize)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %w", ErrMalformedResponse, endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, elapsed)
	}
}
