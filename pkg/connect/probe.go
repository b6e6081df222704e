package connect

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
)

// Prober finds out which AuthStrategy an instance uses.
//
// The login endpoint redirects to the instance's own login form when the
// instance has local users, and answers directly when it is configured for
// federation. That is the only signal available without attempting a login.
type Prober struct {
	client   *http.Client
	endpoint EndpointFunc
}

// NewProber returns a Prober that sends requests through client, which is
// copied so its redirect policy can be replaced. A nil client or endpoint uses
// the defaults.
func NewProber(client *http.Client, endpoint EndpointFunc) *Prober {
	if client == nil {
		client = newHTTPClient()
	}
	if endpoint == nil {
		endpoint = DefaultEndpoint
	}

	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Prober{client: &noRedirect, endpoint: endpoint}
}

// Classify returns the strategy for instance. Every failure is reported as
// ErrProbe; the underlying cause is only logged.
//
// A redirect always means FormBased. Without a redirect, a 4xx or 5xx answer
// is reported as ErrProbe rather than Federated, since an unknown alias or an
// outage would otherwise look like a federated instance.
func (p *Prober) Classify(ctx context.Context, instance string) (AuthStrategy, error) {
	if instance == "" {
		return 0, opError("probe", instance, ErrProbe)
	}

	logger := log.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, newEndpoints(p.endpoint, instance).probe(), nil)
	if err != nil {
		logger.Debug("Probe request could not be built", "instance", instance, "error", err)
		return 0, opError("probe", instance, ErrProbe)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Debug("Probe request failed", "instance", instance, "error", err)
		return 0, opError("probe", instance, ErrProbe)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Location") != "" {
		logger.Debug("Instance classified", "instance", instance, "strategy", FormBased)
		return FormBased, nil
	}

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Debug("Probe returned error status", "instance", instance, "status", resp.StatusCode)
		return 0, opError("probe", instance, ErrProbe)
	}

	logger.Debug("Instance classified", "instance", instance, "strategy", Federated)
	return Federated, nil
}
