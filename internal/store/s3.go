package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
)

// ObjectAPI is the part of the S3 client the gateway uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores the snapshot as one object. The version check is read-then-write,
// so it only protects a single writer process.
type S3 struct {
	client ObjectAPI
	bucket string
	key    string
}

func NewS3(ctx context.Context, bucket, key string) (*S3, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for the s3 backend")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, key), nil
}

func NewS3WithClient(client ObjectAPI, bucket, key string) *S3 {
	if strings.TrimSpace(key) == "" {
		key = DefaultS3Key
	}
	return &S3{client: client, bucket: bucket, key: key}
}

func (s *S3) Load(ctx context.Context) (*ladder.Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return emptySnapshot(), nil
		}
		return nil, fmt.Errorf("s3 get %s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s/%s: %w", s.bucket, s.key, err)
	}
	return decode(raw)
}

func (s *S3) Save(ctx context.Context, snap *ladder.Snapshot) error {
	cur, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if cur.Version != snap.Version {
		return ErrVersionConflict
	}
	raw, next, err := encodeNext(snap)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", s.bucket, s.key, err)
	}
	snap.Version = next
	return nil
}

func (s *S3) Close() error { return nil }
