package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"dsr-backend/internal/shared/storage/object"
	"dsr-backend/internal/shared/telemetry"
)

// S3Client is the subset of the S3 API used by Store.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config selects the bucket and connection settings.
type Config struct {
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
	KMSKeyID        string
	// SSE is the server-side encryption mode used without a KMS key.
	// Empty disables it, for S3-compatible servers without SSE support.
	SSE string
}

// Store implements ObjectStore using Amazon S3 or an S3-compatible service.
type Store struct {
	client   S3Client
	bucket   string
	prefix   string
	kmsKeyID string
	sse      string
}

// New creates an S3-backed object store from the default AWS credential
// chain, or static keys when both are configured.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return NewWithClient(client, cfg), nil
}

// NewWithClient builds a Store around an existing client.
func NewWithClient(client S3Client, cfg Config) *Store {
	return &Store{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   normalizePrefix(cfg.Prefix),
		kmsKeyID: strings.TrimSpace(cfg.KMSKeyID),
		sse:      strings.TrimSpace(cfg.SSE),
	}
}

func (s *Store) Provider() string { return "s3" }

// Put uploads r under key. Uploads are small and bounded, so the body is
// buffered to give the SDK a seekable payload with a known length.
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}

	objectKey := applyPrefix(s.prefix, clean)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	switch {
	case s.kmsKeyID != "":
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.kmsKeyID)
	case s.sse != "":
		input.ServerSideEncryption = s3types.ServerSideEncryption(s.sse)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return 0, classify(err, "put", objectKey)
	}
	return int64(len(data)), nil
}

// Open downloads a stored object for reading.
func (s *Store) Open(ctx context.Context, key string) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}
	if isPrefixKey(key) {
		return object.Object{}, object.ErrNotObject
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return object.Object{}, err
	}

	objectKey := applyPrefix(s.prefix, clean)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return object.Object{}, classify(err, "get", objectKey)
	}
	return object.Object{
		Body:        out.Body,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

// Delete removes key. S3 deletes are idempotent, so existence is checked
// first to report ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if isPrefixKey(key) {
		return object.ErrNotObject
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return err
	}

	objectKey := applyPrefix(s.prefix, clean)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return classify(err, "head", objectKey)
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return classify(err, "delete", objectKey)
	}
	return nil
}

func classify(err error, op, objectKey string) error {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return object.ErrNotFound
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return object.ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return object.ErrNotFound
		case "AccessDenied", "Forbidden":
			// Without s3:ListBucket a missing key is reported as 403.
			if op == "get" || op == "head" {
				telemetry.Warn("s3.access_denied_as_missing", map[string]any{"op": op, "key": objectKey})
				return object.ErrNotFound
			}
		}
		return fmt.Errorf("s3 %s key=%s (code: %s): %w", op, objectKey, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("s3 %s key=%s: %w", op, objectKey, err)
}

// isPrefixKey reports a key naming a "directory" prefix rather than an object.
func isPrefixKey(key string) bool {
	return strings.HasSuffix(strings.ReplaceAll(key, "\\", "/"), "/")
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var _ object.ObjectStore = (*Store)(nil)
