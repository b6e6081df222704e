package aws

import "context"

// Identity captures the principal that authenticated with STS.
type Identity struct {
	Arn     string
	Account string
	UserID  string
}

// Target selects the shared config profile and region used for a call.
// Empty fields fall back to the SDK's default resolution chain.
type Target struct {
	Profile string
	Region  string
}

// Service handles identity and Amazon Connect federation calls against AWS APIs.
type Service interface {
	GetCallerIdentity(ctx context.Context, target Target) (Identity, error)
	GetFederationToken(ctx context.Context, target Target, instanceID string) (string, error)
}
