// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

package files

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// S3Config configures the S3 object store. Endpoint is optional and exists
// for S3-compatible storage like MinIO.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Store implements ObjectStore on top of S3-compatible storage.
type S3Store struct {
	client *s3.Client
	bucket string
	base   string // public URL prefix for stored objects
}

// NewS3Store creates an S3Store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, oops.Code("S3_CONFIG_INVALID").Errorf("bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, oops.Code("S3_CONFIG_INVALID").Wrap(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		base = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return &S3Store{client: client, bucket: cfg.Bucket, base: base}, nil
}

// StorageKey returns a fresh date-partitioned object key.
func StorageKey() string {
	d := time.Now()
	return fmt.Sprintf("uploads/%d/%02d/%02d/%s", d.Year(), d.Month(), d.Day(), ulid.Make())
}

// Put stores body under key and returns the public location.
func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", oops.Code("S3_PUT_FAILED").
			With("bucket", s.bucket).
			With("key", key).
			Wrap(err)
	}
	return s.base + "/" + key, nil
}

// Delete removes the object under key.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return oops.Code("S3_DELETE_FAILED").
			With("bucket", s.bucket).
			With("key", key).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ ObjectStore = (*S3Store)(nil)
