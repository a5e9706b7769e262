package storage

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/internal/errors"
)

// Open builds the backend named by cfg.Backend.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return NewMemory(), nil

	case config.BackendFile:
		f, err := NewFile(cfg.Path)
		if err != nil {
			return nil, errors.New("E310").Wrap(err)
		}
		return f, nil

	case config.BackendSQLite:
		db, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, errors.New("E310").Wrap(err)
		}
		return db, nil

	case config.BackendS3:
		return NewS3(newS3Client(cfg), cfg.Bucket, cfg.Prefix), nil

	default:
		return nil, errors.New("E310").WithDetail("unknown storage backend " + cfg.Backend)
	}
}

// newS3Client reads static credentials from the standard AWS environment
// variables.
func newS3Client(cfg config.StorageConfig) *s3.Client {
	creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(creds),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}
