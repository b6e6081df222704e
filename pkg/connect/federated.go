package connect

import (
	"context"

	"github.com/charmbracelet/log"

	awslib "github.com/eculver/connect-flows/pkg/aws"
)

// FederationTokenIssuer issues Amazon Connect federation tokens.
// *aws.SDKService implements it.
type FederationTokenIssuer interface {
	GetFederationToken(ctx context.Context, target awslib.Target, instanceID string) (string, error)
}

// FederatedLogin exchanges AWS credentials for a Connect access token.
type FederatedLogin struct {
	instanceID string
	target     awslib.Target
	issuer     FederationTokenIssuer
}

// NewFederatedLogin returns a FederatedLogin. A nil issuer uses the AWS SDK.
func NewFederatedLogin(instanceID string, target awslib.Target, issuer FederationTokenIssuer) *FederatedLogin {
	if issuer == nil {
		issuer = awslib.NewService()
	}
	return &FederatedLogin{instanceID: instanceID, target: target, issuer: issuer}
}

func (f *FederatedLogin) Strategy() AuthStrategy {
	return Federated
}

// AcquireCredential requests a new token on every call. Errors from the issuer
// are returned unchanged.
func (f *FederatedLogin) AcquireCredential(ctx context.Context) (string, error) {
	log.FromContext(ctx).Debug("Requesting federated credential", "instance_id", f.instanceID, "profile", f.target.Profile)
	return f.issuer.GetFederationToken(ctx, f.target, f.instanceID)
}
