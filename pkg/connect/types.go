// Package connect logs in to an Amazon Connect instance and manages its
// contact flows through the instance's web API.
//
// The login strategy is chosen by probing the instance login page: a redirect
// means the instance has local users and the login form is driven in a
// browser, anything else means it is federated and a token is issued through
// the AWS API.
package connect

import (
	"context"

	awslib "github.com/eculver/connect-flows/pkg/aws"
	"github.com/eculver/connect-flows/pkg/browser"
)

// AuthStrategy is how an instance expects users to log in.
type AuthStrategy int

const (
	// FormBased instances use the username/password form of the instance.
	FormBased AuthStrategy = iota + 1
	// Federated instances use SAML or IAM federation, so a token is issued by the
	// cloud provider instead.
	Federated
)

func (s AuthStrategy) String() string {
	switch s {
	case FormBased:
		return "form-based"
	case Federated:
		return "federated"
	default:
		return "unknown"
	}
}

// Session is an instance alias paired with the credential obtained for it.
// It is never refreshed.
type Session struct {
	Instance   string
	Credential string
	Strategy   AuthStrategy
}

// Config is everything New needs to log in. Which fields are required depends on
// the strategy the instance reports.
type Config struct {
	// Username and Password are required for FormBased instances.
	Username string
	Password string

	// InstanceID is the Amazon Connect instance id, required for Federated instances.
	InstanceID string
	// AWS selects the profile and region used for the federation call.
	AWS awslib.Target

	Browser browser.Config
}

// Authenticator obtains a session credential for one strategy.
type Authenticator interface {
	Strategy() AuthStrategy
	AcquireCredential(ctx context.Context) (string, error)
}

// FlowSummary is one row of the contact flow search.
type FlowSummary struct {
	ARN         string `json:"arn"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"contactFlowType"`
	Status      string `json:"contactFlowStatus"`
	Description string `json:"description"`
}

// Flow is an exported contact flow. Content is the decoded flow document with
// its metadata merged into a single object.
type Flow struct {
	ARN     string         `json:"arn"`
	Name    string         `json:"name"`
	Status  string         `json:"status"`
	Content map[string]any `json:"content"`
}

// UploadOptions tune UploadFlow. The zero value saves without publishing and
// scrapes a fresh edit token.
type UploadOptions struct {
	EditToken string
	Publish   bool
}
