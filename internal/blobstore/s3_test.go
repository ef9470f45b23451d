package blobstore

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	payload, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = payload
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	payload, ok := f.objects[*params.Key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(payload))}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (string, error) {
	return "https://signed.example/" + *params.Key, nil
}

func TestS3StorePutGetPresign(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := newS3StoreWithClient(fake, fakePresigner{}, "frames", "sift")
	ctx := context.Background()

	ref, err := store.Put(ctx, "jobs/1/frame.jpg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref.Bucket != "frames" || ref.Key != "sift/jobs/1/frame.jpg" {
		t.Fatalf("unexpected reference %+v", ref)
	}

	payload, err := store.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(payload) != "jpeg" {
		t.Fatalf("payload mismatch: %q", payload)
	}

	url, err := store.Presign(ctx, ref, time.Hour)
	if err != nil {
		t.Fatalf("Presign: %v", err)
	}
	if url != "https://signed.example/sift/jobs/1/frame.jpg" {
		t.Fatalf("unexpected presigned url %q", url)
	}
}

func TestS3StoreRejectsLocalReference(t *testing.T) {
	store := newS3StoreWithClient(&fakeS3{objects: map[string][]byte{}}, fakePresigner{}, "frames", "")
	if _, err := store.Get(context.Background(), NewLocal("/tmp/x")); err == nil {
		t.Fatal("expected error resolving local reference against s3 store")
	}
}
