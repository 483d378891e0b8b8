package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/sentinel/blobstore"
	"github.com/hupe1980/sentinel/blobstore/minio"
	"github.com/hupe1980/sentinel/blobstore/s3"
	"github.com/hupe1980/sentinel/config"
	"github.com/hupe1980/sentinel/oracle"
	"github.com/hupe1980/sentinel/oracle/d1"
	"github.com/hupe1980/sentinel/oracle/dynamodb"
	"github.com/hupe1980/sentinel/oracle/postgres"
	"github.com/hupe1980/sentinel/oracle/sqlite"
	"github.com/hupe1980/sentinel/oracle/wrangler"
)

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, configErrorf("load AWS config: %w", err)
	}
	return cfg, nil
}

func buildStore(ctx context.Context, cfg config.StorageConfig) (blobstore.BlobStore, error) {
	switch cfg.Kind {
	case "", "local":
		return blobstore.NewLocalStore(cfg.Root), nil

	case "minio":
		client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, configErrorf("minio client: %w", err)
		}
		return minio.NewStore(client, cfg.Bucket, cfg.Prefix), nil

	case "s3":
		awsCfg, err := loadAWSConfig(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		return s3.NewStore(client, cfg.Bucket, cfg.Prefix), nil

	default:
		return nil, configErrorf("unknown storage kind %q", cfg.Kind)
	}
}

// buildOracle returns the configured oracle, or nil for kind "none". The
// returned close function may be nil.
func buildOracle(ctx context.Context, cfg config.OracleConfig) (oracle.CountOracle, func(), error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil, nil

	case "wrangler":
		w := cfg.Wrangler
		return wrangler.New(func(o *wrangler.Options) {
			if len(w.Command) > 0 {
				o.Command = w.Command
			}
			if w.Database != "" {
				o.Database = w.Database
			}
			if w.Query != "" {
				o.Query = w.Query
			}
			if w.Column != "" {
				o.Column = w.Column
			}
			o.Remote = w.Remote
		}), nil, nil

	case "d1":
		c := cfg.D1
		return d1.New(c.AccountID, c.DatabaseID, c.APIToken, func(o *d1.Options) {
			if c.BaseURL != "" {
				o.BaseURL = c.BaseURL
			}
			if c.Query != "" {
				o.Query = c.Query
			}
		}), nil, nil

	case "sqlite":
		o, err := sqlite.Open(cfg.SQLite.DSN, cfg.SQLite.Query)
		if err != nil {
			return nil, nil, configErrorf("%w", err)
		}
		return o, func() { _ = o.Close() }, nil

	case "postgres":
		// The connection is established lazily so an unreachable server
		// degrades the count stage instead of aborting the run.
		lazy := &lazyPostgres{dsn: cfg.Postgres.DSN, query: cfg.Postgres.Query}
		return lazy, nil, nil

	case "dynamodb":
		awsCfg, err := loadAWSConfig(ctx, cfg.DynamoDB.Region)
		if err != nil {
			return nil, nil, err
		}
		client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
			if cfg.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
			}
		})
		return dynamodb.New(client, cfg.DynamoDB.Table, func(o *dynamodb.Options) {
			o.FilterExpression = cfg.DynamoDB.Filter
		}), nil, nil

	default:
		return nil, nil, configErrorf("unknown oracle kind %q", cfg.Kind)
	}
}

type lazyPostgres struct {
	dsn   string
	query string
}

func (l *lazyPostgres) Count(ctx context.Context) (int64, error) {
	o, conn, err := postgres.Connect(ctx, l.dsn, l.query)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", oracle.ErrUnavailable, err)
	}
	defer conn.Close(context.WithoutCancel(ctx))
	return o.Count(ctx)
}
