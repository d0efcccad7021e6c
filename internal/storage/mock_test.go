package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) NewMultipartUpload(ctx context.Context, bucket, key string, opts PutOptions) (string, error) {
	args := m.Called(ctx, bucket, key, opts)
	return args.String(0), args.Error(1)
}

func (m *mockClient) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, reader io.Reader, size int64, md5Base64 string) (string, error) {
	args := m.Called(ctx, bucket, key, uploadID, partNumber, reader, size, md5Base64)
	return args.String(0), args.Error(1)
}

func (m *mockClient) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) error {
	args := m.Called(ctx, bucket, key, uploadID, parts)
	return args.Error(0)
}

func (m *mockClient) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	args := m.Called(ctx, bucket, key, uploadID)
	return args.Error(0)
}

func (m *mockClient) HeadObject(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	args := m.Called(ctx, bucket, key)
	return args.Get(0).(ObjectInfo), args.Error(1)
}
