package aws

import (
	"context"
	"errors"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/connect"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/charmbracelet/log"
)

// ErrEmptyFederationToken is returned when Amazon Connect answers GetFederationToken
// without an access token.
var ErrEmptyFederationToken = errors.New("connect GetFederationToken returned empty credentials")

type configLoader interface {
	LoadDefaultConfig(ctx context.Context, optFns ...func(*config.LoadOptions) error) (awsv2.Config, error)
}

type defaultConfigLoader struct{}

func (defaultConfigLoader) LoadDefaultConfig(ctx context.Context, optFns ...func(*config.LoadOptions) error) (awsv2.Config, error) {
	return config.LoadDefaultConfig(ctx, optFns...)
}

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type connectAPI interface {
	GetFederationToken(ctx context.Context, params *connect.GetFederationTokenInput, optFns ...func(*connect.Options)) (*connect.GetFederationTokenOutput, error)
}

type clientFactory interface {
	NewSTS(cfg awsv2.Config) stsAPI
	NewConnect(cfg awsv2.Config) connectAPI
}

type defaultClientFactory struct{}

func (defaultClientFactory) NewSTS(cfg awsv2.Config) stsAPI {
	return sts.NewFromConfig(cfg)
}

func (defaultClientFactory) NewConnect(cfg awsv2.Config) connectAPI {
	return connect.NewFromConfig(cfg)
}

// SDKService is the concrete implementation backed by AWS SDK v2.
type SDKService struct {
	loader  configLoader
	factory clientFactory
}

// NewService creates an AWS service implementation that uses AWS SDK v2.
func NewService() *SDKService {
	return newSDKService(defaultConfigLoader{}, defaultClientFactory{})
}

func newSDKService(loader configLoader, factory clientFactory) *SDKService {
	return &SDKService{
		loader:  loader,
		factory: factory,
	}
}

func (s *SDKService) loadConfig(ctx context.Context, target Target) (awsv2.Config, error) {
	var opts []func(*config.LoadOptions) error
	if target.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(target.Profile))
	}
	if target.Region != "" {
		opts = append(opts, config.WithRegion(target.Region))
	}

	cfg, err := s.loader.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awsv2.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func (s *SDKService) GetCallerIdentity(ctx context.Context, target Target) (Identity, error) {
	cfg, err := s.loadConfig(ctx, target)
	if err != nil {
		return Identity{}, err
	}

	out, err := s.factory.NewSTS(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		Arn:     awsv2.ToString(out.Arn),
		Account: awsv2.ToString(out.Account),
		UserID:  awsv2.ToString(out.UserId),
	}, nil
}

// GetFederationToken requests a fresh Amazon Connect federation token for the
// instance and returns its access token. Errors from the SDK are returned as-is.
func (s *SDKService) GetFederationToken(ctx context.Context, target Target, instanceID string) (string, error) {
	cfg, err := s.loadConfig(ctx, target)
	if err != nil {
		return "", err
	}

	log.FromContext(ctx).Debug("Requesting federation token", "instance_id", instanceID, "region", cfg.Region)

	out, err := s.factory.NewConnect(cfg).GetFederationToken(ctx, &connect.GetFederationTokenInput{
		InstanceId: awsv2.String(instanceID),
	})
	if err != nil {
		return "", err
	}

	if out.Credentials == nil || awsv2.ToString(out.Credentials.AccessToken) == "" {
		return "", ErrEmptyFederationToken
	}

	return awsv2.ToString(out.Credentials.AccessToken), nil
}
