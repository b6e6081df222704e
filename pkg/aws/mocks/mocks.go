package mocks

import (
	"context"
	"fmt"

	awslib "github.com/eculver/connect-flows/pkg/aws"
)

type Service struct {
	GetCallerIdentityFunc  func(ctx context.Context, target awslib.Target) (awslib.Identity, error)
	GetFederationTokenFunc func(ctx context.Context, target awslib.Target, instanceID string) (string, error)

	GetCallerIdentityCalls  int
	GetFederationTokenCalls int
	LastTarget              awslib.Target
	LastInstanceID          string
}

func (m *Service) GetCallerIdentity(ctx context.Context, target awslib.Target) (awslib.Identity, error) {
	m.GetCallerIdentityCalls++
	m.LastTarget = target
	if m.GetCallerIdentityFunc == nil {
		return awslib.Identity{}, fmt.Errorf("GetCallerIdentityFunc is not set")
	}
	return m.GetCallerIdentityFunc(ctx, target)
}

func (m *Service) GetFederationToken(ctx context.Context, target awslib.Target, instanceID string) (string, error) {
	m.GetFederationTokenCalls++
	m.LastTarget = target
	m.LastInstanceID = instanceID
	if m.GetFederationTokenFunc == nil {
		return "", fmt.Errorf("GetFederationTokenFunc is not set")
	}
	return m.GetFederationTokenFunc(ctx, target, instanceID)
}
