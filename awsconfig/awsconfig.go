// Package awsconfig loads AWS SDK configuration for wulfpack lambdas.
//
// Deployed lambdas use the SDK default chain. In development every client
// talks to a local emulator with static "local" credentials: LocalStack for
// DynamoDB, cognito-local for Cognito.
package awsconfig

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdkconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/wulf-data-engineering/wulfpack/config"
)

// LocalCredentials are accepted by LocalStack and cognito-local.
const LocalCredentials = "local"

// Load returns the configuration for every service but Cognito.
func Load(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return LoadForEndpoint(ctx, cfg, cfg.EndpointURL)
}

// LoadCognito returns the configuration for the Cognito identity provider.
func LoadCognito(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return LoadForEndpoint(ctx, cfg, cfg.CognitoEndpointURL)
}

// LoadForEndpoint returns a configuration whose clients send requests to
// endpoint. An empty endpoint keeps the regional AWS endpoints. Tests point
// it at a mock server.
func LoadForEndpoint(ctx context.Context, cfg *config.Config, endpoint string, optFns ...func(*sdkconfig.LoadOptions) error) (aws.Config, error) {
	var opts []func(*sdkconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, sdkconfig.WithRegion(cfg.Region))
	}
	if endpoint != "" {
		opts = append(opts, sdkconfig.WithBaseEndpoint(endpoint))
	}
	if cfg.IsDevelopment() {
		opts = append(opts, sdkconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(LocalCredentials, LocalCredentials, ""),
		))
	}
	opts = append(opts, optFns...)

	awsCfg, err := sdkconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("awsconfig: load: %w", err)
	}
	return awsCfg, nil
}
