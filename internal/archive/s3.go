package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/audience-pilot/internal/config"
)

// s3Archiver writes payloads to an S3 bucket using the same key layout as
// the local archiver.
type s3Archiver struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

func newS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*s3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("archive: s3 bucket not configured")
	}
	return &s3Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		now:    time.Now,
	}, nil
}

func (a *s3Archiver) Save(ctx context.Context, kind, accountID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("archive: marshal %s: %w", kind, err)
	}
	key := strings.ReplaceAll(objectKey(kind, accountID, a.now()), "\\", "/")
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: put s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}
