// password-policy is the lambda serving the user pool's password policy
// behind API Gateway. It answers in JSON or protobuf, whichever the caller
// negotiates.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"

	"github.com/wulf-data-engineering/wulfpack"
	"github.com/wulf-data-engineering/wulfpack/apigw"
	"github.com/wulf-data-engineering/wulfpack/awsconfig"
	"github.com/wulf-data-engineering/wulfpack/config"
	"github.com/wulf-data-engineering/wulfpack/policy"
	"github.com/wulf-data-engineering/wulfpack/protocols"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	handler, cleanup, err := setup(context.Background(), logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()
	lambda.Start(handler.HandleProxy)
}

func setup(ctx context.Context, logger *slog.Logger) (*apigw.Handler, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireUserPool(); err != nil {
		return nil, nil, err
	}
	wire, err := cfg.Wire()
	if err != nil {
		return nil, nil, err
	}

	awsCfg, err := awsconfig.LoadCognito(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	service := policy.NewService(cognitoidentityprovider.NewFromConfig(awsCfg), cfg.UserPoolID)

	endpoint := service.Endpoint(
		[]wulfpack.Option[*protocols.Empty, protocols.PasswordPolicy]{
			wulfpack.WithTimeout[*protocols.Empty, protocols.PasswordPolicy](10 * time.Second),
		},
		wulfpack.WithEndpointWire[*protocols.Empty, protocols.PasswordPolicy](wire),
	)

	reporter := wulfpack.NewReporter(logger)
	reporter.Start()

	logger.Info("password policy lambda ready",
		"environment", string(cfg.Environment),
		"user_pool", cfg.UserPoolID,
		"compression", wire.Compressor().Encoding(),
	)

	cleanup := func() {
		if err := endpoint.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close endpoint: %v\n", err)
		}
		_ = reporter.Close()
	}
	return apigw.NewHandler(endpoint), cleanup, nil
}
