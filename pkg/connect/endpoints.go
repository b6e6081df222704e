package connect

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

const (
	// SessionCookie carries the session credential on every request.
	SessionCookie = "lily-auth-prod-lhr"

	usernameSelector    = "#wdc_username"
	passwordSelector    = "#wdc_password"
	loginButtonSelector = "#wdc_login_button"
	failureMarker       = "Authentication Failed"

	// listPageSize is the only page ListFlows ever requests.
	listPageSize = 100

	defaultStatus  = "published"
	defaultTimeout = 30 * time.Second
)

// EndpointFunc maps an instance alias to the base URL of its Connect web API.
type EndpointFunc func(instance string) string

// DefaultEndpoint is the public base URL for an instance alias.
func DefaultEndpoint(instance string) string {
	return fmt.Sprintf("https://%s.awsapps.com/connect", instance)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

type endpoints struct {
	base string
}

func newEndpoints(fn EndpointFunc, instance string) endpoints {
	return endpoints{base: strings.TrimRight(fn(instance), "/")}
}

func (e endpoints) probe() string { return e.base + "/login" }
func (e endpoints) home() string  { return e.base + "/home" }

func (e endpoints) search(filter string) string {
	q := url.Values{}
	q.Set("pageSize", fmt.Sprint(listPageSize))
	q.Set("startIndex", "0")
	if filter != "" {
		q.Set("name", filter)
	}
	return e.base + "/entity-search/contact-flows?" + q.Encode()
}

func (e endpoints) export(flowARN, status string) string {
	q := url.Values{}
	q.Set("id", flowARN)
	q.Set("status", status)
	return e.base + "/contact-flows/export?" + q.Encode()
}

func (e endpoints) edit(flowARN string) string {
	q := url.Values{}
	q.Set("id", flowARN)
	return e.base + "/contact-flows/edit?" + q.Encode()
}

// parseFlowARN checks that s is a Connect contact flow ARN, i.e.
// arn:aws:connect:<region>:<account>:instance/<instance-id>/contact-flow/<flow-id>,
// and returns the flow id.
func parseFlowARN(s string) (string, error) {
	parsed, err := arn.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidARN, s, err)
	}
	if parsed.Service != "connect" {
		return "", fmt.Errorf("%w %q: service is %q", ErrInvalidARN, s, parsed.Service)
	}

	parts := strings.Split(parsed.Resource, "/")
	if len(parts) != 4 || parts[0] != "instance" || parts[2] != "contact-flow" || parts[1] == "" || parts[3] == "" {
		return "", fmt.Errorf("%w %q: resource %q is not a contact flow", ErrInvalidARN, s, parsed.Resource)
	}
	return parts[3], nil
}
