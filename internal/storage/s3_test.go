package storage

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// mockS3Client implements S3API for unit testing.
type mockS3Client struct {
	// objects stores all objects keyed by their S3 key.
	objects map[string][]byte
	// headObjectCalls tracks the number of HeadObject calls.
	headObjectCalls int
	// putObjectCalls tracks the number of PutObject calls.
	putObjectCalls int
	// headErr, when set, is returned from every HeadObject call.
	headErr error
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.headObjectCalls++
	if m.headErr != nil {
		return nil, m.headErr
	}
	data, ok := m.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &mockAPIError{code: "NotFound", message: "Not Found", httpStatus: 404}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.putObjectCalls++
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	prefix := aws.ToString(params.Prefix)
	for key, data := range m.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out.Contents = append(out.Contents, types.Object{
				Key:  aws.String(key),
				Size: aws.Int64(int64(len(data))),
			})
		}
	}
	return out, nil
}

func (m *mockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

// mockAPIError satisfies smithy.APIError for simulating AWS failures.
type mockAPIError struct {
	code       string
	message    string
	httpStatus int
}

func (e *mockAPIError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *mockAPIError) ErrorCode() string    { return e.code }
func (e *mockAPIError) ErrorMessage() string { return e.message }

func (e *mockAPIError) ErrorFault() smithy.ErrorFault {
	if e.httpStatus >= 500 {
		return smithy.FaultServer
	}
	return smithy.FaultClient
}

var _ smithy.APIError = (*mockAPIError)(nil)

func newTestS3Store() (*S3Store, *mockS3Client) {
	client := newMockS3Client()
	return NewS3StoreWithClient("test-bucket", "us-east-1", "", "", client), client
}

func TestS3ExistsNotFound(t *testing.T) {
	store, client := newTestS3Store()

	exists, err := store.Exists(context.Background(), "acme/missing.webp")
	if err != nil {
		t.Fatalf("a 404 must not surface as an error: %v", err)
	}
	if exists {
		t.Error("missing object reported as existing")
	}
	if client.headObjectCalls != 1 {
		t.Errorf("headObjectCalls = %d, want 1", client.headObjectCalls)
	}
}

func TestS3ExistsFound(t *testing.T) {
	store, client := newTestS3Store()
	client.objects["acme/k.webp"] = []byte("payload")

	exists, err := store.Exists(context.Background(), "acme/k.webp")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("stored object reported as missing")
	}
}

// A transient backend failure must propagate, never read as a miss.
func TestS3ExistsTransientError(t *testing.T) {
	store, client := newTestS3Store()
	client.headErr = &mockAPIError{code: "AccessDenied", message: "Access Denied", httpStatus: 403}

	_, err := store.Exists(context.Background(), "acme/k.webp")
	if err == nil {
		t.Fatal("expected transient failure to propagate")
	}
}

func TestS3Put(t *testing.T) {
	store, client := newTestS3Store()

	if err := store.Put(context.Background(), "acme/k.webp", []byte("payload"), "image/webp"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if string(client.objects["acme/k.webp"]) != "payload" {
		t.Error("object not stored")
	}
	if client.putObjectCalls != 1 {
		t.Errorf("putObjectCalls = %d, want 1", client.putObjectCalls)
	}
}

func TestS3URLFor(t *testing.T) {
	tests := []struct {
		name      string
		endpoint  string
		publicURL string
		want      string
	}{
		{
			"public url override wins",
			"https://minio.internal:9000",
			"https://cdn.example.com",
			"https://cdn.example.com/acme/k.webp",
		},
		{
			"endpoint path-style",
			"https://minio.internal:9000",
			"",
			"https://minio.internal:9000/test-bucket/acme/k.webp",
		},
		{
			"aws virtual-hosted default",
			"",
			"",
			"https://test-bucket.s3.us-east-1.amazonaws.com/acme/k.webp",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewS3StoreWithClient("test-bucket", "us-east-1", tt.endpoint, tt.publicURL, newMockS3Client())
			if got := store.URLFor("acme/k.webp"); got != tt.want {
				t.Errorf("URLFor = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestS3List(t *testing.T) {
	store, client := newTestS3Store()
	client.objects["acme/a.webp"] = []byte("aa")
	client.objects["acme/b.webp"] = []byte("bbb")
	client.objects["globex/c.webp"] = []byte("c")

	infos, err := store.List(context.Background(), "acme/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("List returned %d objects, want 2", len(infos))
	}
}

func TestIsS3NotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NoSuchKey", &mockAPIError{code: "NoSuchKey", httpStatus: 404}, true},
		{"NotFound", &mockAPIError{code: "NotFound", httpStatus: 404}, true},
		{"AccessDenied", &mockAPIError{code: "AccessDenied", httpStatus: 403}, false},
		{"InternalError", &mockAPIError{code: "InternalError", httpStatus: 500}, false},
		{"plain error", fmt.Errorf("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isS3NotFound(tt.err); got != tt.want {
				t.Errorf("isS3NotFound = %v, want %v", got, tt.want)
			}
		})
	}
}
