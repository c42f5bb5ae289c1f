// Package b2 is a client for the Backblaze B2 native API (v3). It maps Go
// method calls onto the documented endpoints, re-authorizes transparently
// when the account token expires, and leaves streaming transfers to the
// transfer package.
package b2

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/imroc/req/v3"

	"github.com/b2kit/b2go/internal/version"
)

// Status is the lifecycle state of a Client.
type Status int

const (
	// StatusAuthed is the default state: the client holds a usable token.
	StatusAuthed Status = iota
	// StatusKeyExpired means the application key itself has expired.
	// Calls fail fast with ErrKeyExpired; the client must be recreated.
	StatusKeyExpired
)

var userAgent = fmt.Sprintf("%s/%s (%s; %s)", version.AppName, version.Version, runtime.GOOS, runtime.GOARCH)

// Tokens last at most 24h. Refresh a shade early so in-flight calls
// rarely see expired_auth_token at all.
const tokenRefreshInterval = 23*time.Hour + 50*time.Minute

const bucketCacheSize = 128

// Client talks to the B2 native API on behalf of one application key.
// All methods are safe for concurrent use.
type Client struct {
	keyID   string
	appKey  string
	authURL string

	http *req.Client  // JSON control plane
	data *http.Client // upload/download data plane, exact Content-Length semantics

	mu     sync.RWMutex
	auth   AuthData
	status Status

	bucketIDs *lru.Cache[string, string]

	closeOnce sync.Once
	closed    chan struct{}
}

// Option customizes a Client.
type Option func(*Client)

// WithAuthURL overrides the account authorization entry point.
func WithAuthURL(url string) Option {
	return func(c *Client) { c.authURL = url }
}

// WithDataClient overrides the http.Client used for uploads and downloads.
func WithDataClient(hc *http.Client) Option {
	return func(c *Client) { c.data = hc }
}

// WithUserAgent overrides the User-Agent sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.http.SetUserAgent(ua) }
}

// New authorizes the key pair and returns a ready client. A background
// refresher keeps the account token fresh until Close is called; if the
// application key expires first the client settles in StatusKeyExpired.
func New(ctx context.Context, keyID, applicationKey string, opts ...Option) (*Client, error) {
	if keyID == "" || applicationKey == "" {
		return nil, ErrEmptyCredsPair
	}

	httpClient := req.C().
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1 * time.Second).
		SetUserAgent(userAgent).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	c := &Client{
		keyID:   keyID,
		appKey:  applicationKey,
		authURL: DefaultAuthURL,
		http:    httpClient,
		data:    http.DefaultClient,
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.bucketIDs, _ = lru.New[string, string](bucketCacheSize)

	if _, err := c.AuthorizeAccount(ctx); err != nil {
		return nil, err
	}

	go c.refreshLoop()

	return c, nil
}

// Status reports whether the client is still usable.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Close stops the background refresher. It does not interrupt in-flight
// requests.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// api issues one JSON control-plane call with capability gating and a
// single re-authorize retry on an expired account token.
func (c *Client) api(ctx context.Context, op string, body, out any, caps ...Capability) error {
	if c.Status() == StatusKeyExpired {
		return ErrKeyExpired
	}
	if err := c.require(caps...); err != nil {
		return err
	}

	err := c.call(ctx, op, body, out)
	if IsAuthExpired(err) {
		if _, authErr := c.AuthorizeAccount(ctx); authErr != nil {
			return authErr
		}
		err = c.call(ctx, op, body, out)
	}
	return err
}

// apiGet is the GET variant of api for the few endpoints that take query
// parameters instead of a JSON body.
func (c *Client) apiGet(ctx context.Context, op string, query map[string]string, out any, caps ...Capability) error {
	if c.Status() == StatusKeyExpired {
		return ErrKeyExpired
	}
	if err := c.require(caps...); err != nil {
		return err
	}

	err := c.get(ctx, op, query, out)
	if IsAuthExpired(err) {
		if _, authErr := c.AuthorizeAccount(ctx); authErr != nil {
			return authErr
		}
		err = c.get(ctx, op, query, out)
	}
	return err
}

func (c *Client) get(ctx context.Context, op string, query map[string]string, out any) error {
	auth := c.Auth()
	var apiErr APIError

	r := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", auth.AuthorizationToken).
		SetQueryParams(query).
		SetErrorResult(&apiErr)
	if out != nil {
		r.SetSuccessResult(out)
	}

	resp, err := r.Get(auth.StorageAPI().APIURL + apiPrefix + op)
	return wrapResponse(resp, err, op, &apiErr)
}

func (c *Client) call(ctx context.Context, op string, body, out any) error {
	auth := c.Auth()
	var apiErr APIError

	r := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", auth.AuthorizationToken).
		SetErrorResult(&apiErr)
	if body != nil {
		r.SetBody(body)
	}
	if out != nil {
		r.SetSuccessResult(out)
	}

	resp, err := r.Post(auth.StorageAPI().APIURL + apiPrefix + op)
	return wrapResponse(resp, err, op, &apiErr)
}

// wrapResponse folds the transport error and the decoded API error body
// into a single error value. A non-2xx response always yields *APIError.
func wrapResponse(resp *req.Response, err error, op string, apiErr *APIError) error {
	if err != nil {
		return fmt.Errorf("b2: %s: %w", op, err)
	}
	if resp.IsErrorState() {
		apiErr.Op = op
		if apiErr.Status == 0 {
			apiErr.Status = resp.GetStatusCode()
		}
		if apiErr.Code == "" {
			apiErr.Code = CodeUnknown
			apiErr.Message = resp.String()
		}
		return apiErr
	}
	return nil
}

// refreshLoop re-authorizes before the 24h token lifetime lapses. If the
// application key itself will expire first there is nothing to refresh
// with, so the client flips to StatusKeyExpired instead.
func (c *Client) refreshLoop() {
	for {
		wait := tokenRefreshInterval
		expiring := false

		if at := c.Auth().KeyExpiresAt(); !at.IsZero() {
			if until := time.Until(at); until < wait {
				wait = max(until, 0)
				expiring = true
			}
		}

		select {
		case <-c.closed:
			return
		case <-time.After(wait):
		}

		if expiring {
			c.mu.Lock()
			c.status = StatusKeyExpired
			c.mu.Unlock()
			slog.Warn("b2: application key expired, client needs to be recreated", "keyID", c.keyID)
			return
		}

		if _, err := c.AuthorizeAccount(context.Background()); err != nil {
			slog.Error("b2: background re-authorization failed", "error", err)
		}
	}
}
