package main

import (
	"context"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/atlasdata/econpipe/internal/config"
	"github.com/atlasdata/econpipe/internal/fetcher"
	"github.com/atlasdata/econpipe/internal/ledger"
	"github.com/atlasdata/econpipe/internal/resilience"
	"github.com/atlasdata/econpipe/internal/storage"
)

// initStorage builds the lake backend for the configured target.
func initStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Target {
	case config.TargetLocal:
		return storage.NewLocal(cfg.Data.Root), nil
	case config.TargetCloud:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load aws config")
		}
		return storage.NewS3(s3.NewFromConfig(awsCfg), cfg.Data.Bucket, cfg.Data.Prefix), nil
	default:
		return nil, eris.Errorf("unknown target %q", cfg.Target)
	}
}

// initLedger builds the configured run/checkpoint backend.
func initLedger(ctx context.Context, cfg *config.Config) (ledger.Ledger, error) {
	switch cfg.Ledger.Driver {
	case config.LedgerDriverJSON:
		return ledger.NewJSON(cfg.Ledger.Path), nil
	case config.LedgerDriverSQLite:
		return ledger.NewSQLite(cfg.Ledger.Path)
	case config.LedgerDriverDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load aws config")
		}
		return ledger.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.Ledger.Table), nil
	default:
		return nil, eris.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}
}

// initHTTPClient builds the shared fetch client.
func initHTTPClient(cfg *config.Config) *fetcher.Client {
	retry := resilience.DefaultRetryConfig()
	if cfg.HTTP.MaxRetries > 0 {
		retry.MaxAttempts = cfg.HTTP.MaxRetries
	}

	return fetcher.New(fetcher.Options{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		Retry:     retry,
		RateLimits: map[string]rate.Limit{
			"api.worldbank.org": 10,
			"en.wikipedia.org":  2,
		},
	})
}
