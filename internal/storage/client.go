package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNoSuchUpload is wrapped by client errors for an unknown upload id.
	ErrNoSuchUpload = errors.New("no such upload")
	// ErrObjectNotFound is wrapped by HeadObject when the object does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

// Client defines the multipart operations of an S3-compatible store
type Client interface {
	// Multipart operations
	NewMultipartUpload(ctx context.Context, bucket, key string, opts PutOptions) (string, error)
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, reader io.Reader, size int64, md5Base64 string) (string, error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) error
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error

	// Object operations
	HeadObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
}

// ObjectInfo contains object metadata
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
}

// PutOptions contains options for creating the upload
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// CompletedPart represents a completed multipart upload part
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// Config contains client configuration
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Secure    bool
	PathStyle bool
}
