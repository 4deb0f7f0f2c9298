// cognito-handler is the user pool trigger lambda. It stores confirmed users
// in DynamoDB and, in development, auto-confirms new sign ups. Every other
// trigger is acknowledged unchanged.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/wulf-data-engineering/wulfpack"
	"github.com/wulf-data-engineering/wulfpack/awsconfig"
	"github.com/wulf-data-engineering/wulfpack/cognito"
	"github.com/wulf-data-engineering/wulfpack/config"
	"github.com/wulf-data-engineering/wulfpack/users"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err == nil {
		err = cfg.RequireUsersTable()
	}
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.Load(context.Background(), cfg)
	if err != nil {
		logger.Error("aws configuration failed", "error", err)
		os.Exit(1)
	}
	repo := users.NewRepo(dynamodb.NewFromConfig(awsCfg), cfg.UsersTable)
	handler := cognito.NewHandler(repo, cognito.WithAutoConfirm(cfg.IsDevelopment()))

	reporter := wulfpack.NewReporter(logger)
	reporter.Start()
	defer reporter.Close()

	logger.Info("cognito handler ready",
		"environment", string(cfg.Environment),
		"table", repo.Table(),
		"auto_confirm", cfg.IsDevelopment(),
	)
	lambda.Start(handler.Handle)
}
