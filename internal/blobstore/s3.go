package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sift/internal/config"
)

// s3API is the subset of the S3 client the store uses; narrowed for tests.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (string, error)
}

// S3Store keeps payloads in an object store bucket so workers on different
// machines resolve the same references.
type S3Store struct {
	client    s3API
	presigner s3Presigner
	bucket    string
	prefix    string
}

type sdkPresigner struct {
	inner *s3.PresignClient
}

func (p sdkPresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (string, error) {
	req, err := p.inner.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// NewS3Store builds a store from the storage configuration section.
func NewS3Store(ctx context.Context, storage config.Storage) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if storage.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(storage.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 blobstore: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if storage.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(storage.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:    client,
		presigner: sdkPresigner{inner: s3.NewPresignClient(client)},
		bucket:    storage.S3Bucket,
		prefix:    storage.S3Prefix,
	}, nil
}

// newS3StoreWithClient injects stubs in tests.
func newS3StoreWithClient(client s3API, presigner s3Presigner, bucket, prefix string) *S3Store {
	return &S3Store{client: client, presigner: presigner, bucket: bucket, prefix: prefix}
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Store) Put(ctx context.Context, key string, payload []byte) (Reference, error) {
	objectKey := s.objectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return Reference{}, fmt.Errorf("s3 blobstore: put %q: %w", objectKey, err)
	}
	return NewS3(s.bucket, objectKey), nil
}

func (s *S3Store) Get(ctx context.Context, ref Reference) ([]byte, error) {
	if ref.Backend != BackendS3 {
		return nil, fmt.Errorf("s3 blobstore: cannot resolve %s reference", ref.Backend)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 blobstore: get %q: %w", ref.Key, err)
	}
	defer out.Body.Close()
	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 blobstore: read %q: %w", ref.Key, err)
	}
	return payload, nil
}

func (s *S3Store) Presign(ctx context.Context, ref Reference, ttl time.Duration) (string, error) {
	if ref.Backend != BackendS3 {
		return "", fmt.Errorf("s3 blobstore: cannot presign %s reference", ref.Backend)
	}
	url, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}, func(o *s3.PresignOptions) {
		o.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("s3 blobstore: presign %q: %w", ref.Key, err)
	}
	return url, nil
}
