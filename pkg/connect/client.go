package connect

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/eculver/connect-flows/pkg/browser"
)

// Option customizes New and NewClientFromSession.
type Option func(*options)

type options struct {
	httpClient *http.Client
	endpoint   EndpointFunc
	launcher   browser.Launcher
	issuer     FederationTokenIssuer
}

// WithHTTPClient sets the client used for the probe and the flow API.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithEndpoint overrides how instance aliases map to base URLs.
func WithEndpoint(fn EndpointFunc) Option {
	return func(o *options) { o.endpoint = fn }
}

// WithLauncher sets the browser used for form-based logins.
func WithLauncher(l browser.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithFederationTokenIssuer sets the issuer used for federated logins.
func WithFederationTokenIssuer(i FederationTokenIssuer) Option {
	return func(o *options) { o.issuer = i }
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = newHTTPClient()
	}
	if o.endpoint == nil {
		o.endpoint = DefaultEndpoint
	}
	return o
}

// Client runs contact flow operations for one session. It holds no mutable
// state and is safe for concurrent use.
type Client struct {
	session Session
	http    *http.Client
	urls    endpoints
}

// New classifies instance, logs in with the matching strategy and returns a
// client bound to the resulting session.
func New(ctx context.Context, instance string, cfg Config, opts ...Option) (*Client, error) {
	o := newOptions(opts)

	strategy, err := NewProber(o.httpClient, o.endpoint).Classify(ctx, instance)
	if err != nil {
		return nil, err
	}

	auth, err := newAuthenticator(strategy, instance, cfg, o)
	if err != nil {
		return nil, err
	}

	credential, err := auth.AcquireCredential(ctx)
	if err != nil {
		return nil, err
	}
	if credential == "" {
		return nil, opError("login", instance, ErrUnauthenticated)
	}

	log.FromContext(ctx).Debug("Session established", "instance", instance, "strategy", strategy)

	return NewClientFromSession(Session{
		Instance:   instance,
		Credential: credential,
		Strategy:   strategy,
	}, opts...), nil
}

func newAuthenticator(strategy AuthStrategy, instance string, cfg Config, o options) (Authenticator, error) {
	switch strategy {
	case FormBased:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, opError("login", instance, fmt.Errorf("%w: username and password are required for %s instances", ErrMissingConfig, strategy))
		}
		return NewInteractiveLogin(instance, cfg.Username, cfg.Password, cfg.Browser, o.launcher, o.endpoint), nil
	case Federated:
		if cfg.InstanceID == "" {
			return nil, opError("login", instance, fmt.Errorf("%w: instance id is required for %s instances", ErrMissingConfig, strategy))
		}
		return NewFederatedLogin(cfg.InstanceID, cfg.AWS, o.issuer), nil
	default:
		return nil, opError("login", instance, fmt.Errorf("%w: unknown strategy %d", ErrProbe, int(strategy)))
	}
}

// NewClientFromSession wraps an existing session without logging in. Operations
// on a session without a credential fail with ErrUnauthenticated.
func NewClientFromSession(session Session, opts ...Option) *Client {
	o := newOptions(opts)
	return &Client{
		session: session,
		http:    o.httpClient,
		urls:    newEndpoints(o.endpoint, session.Instance),
	}
}

// Session returns the session the client was built with.
func (c *Client) Session() Session {
	return c.session
}

// EditURL returns the URL of the flow editor for flowARN.
func (c *Client) EditURL(flowARN string) (string, error) {
	if _, err := parseFlowARN(flowARN); err != nil {
		return "", opError("edit-url", c.session.Instance, err)
	}
	return c.urls.edit(flowARN), nil
}

func (c *Client) authenticated(op string) error {
	if c.session.Credential == "" {
		return opError(op, c.session.Instance, ErrUnauthenticated)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, op, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, opError(op, c.session.Instance, err)
	}

	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.session.Credential})
	if c.session.Strategy == Federated {
		req.Header.Set("Authorization", "Bearer "+c.session.Credential)
	}
	return req, nil
}

// do sends req and turns 4xx/5xx answers into *StatusError without reading
// the body. On success the caller owns resp.Body.
func (c *Client) do(op string, req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, opError(op, c.session.Instance, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, &StatusError{Op: op, Instance: c.session.Instance, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) expectJSON(op string, resp *http.Response) error {
	contentType := resp.Header.Get("Content-Type")
	if !isJSON(contentType) {
		return &FormatError{Op: op, Instance: c.session.Instance, ContentType: contentType, Detail: "expected JSON, the session may have expired"}
	}
	return nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
