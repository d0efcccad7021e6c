package storage

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// ErrCompletedRemotely reports that finalizing failed because the upload id is
// gone, but the target object already exists with the expected part count.
// It happens when a previous run completed the upload and stopped before it
// could record that.
var ErrCompletedRemotely = errors.New("upload already completed remotely")

// UploadedPart is the result of transferring one part file.
type UploadedPart struct {
	ETag string
	Size int64
}

// Transfer moves local part files to a Client. Part paths are resolved
// against fs.
type Transfer struct {
	client Client
	fs     billy.Filesystem
	opts   PutOptions
}

// NewTransfer creates a transfer over client reading parts from fs.
func NewTransfer(client Client, fs billy.Filesystem, opts PutOptions) *Transfer {
	return &Transfer{
		client: client,
		fs:     fs,
		opts:   opts,
	}
}

// StartUpload creates the remote session and returns its upload id.
func (t *Transfer) StartUpload(ctx context.Context, bucket, key string) (string, error) {
	uploadID, err := t.client.NewMultipartUpload(ctx, bucket, key, t.opts)
	if err != nil {
		return "", fmt.Errorf("error creating multipart upload: %w", err)
	}
	return uploadID, nil
}

// UploadPart sends the file at path as part partNumber with its Content-MD5.
func (t *Transfer) UploadPart(ctx context.Context, path, bucket, key, uploadID string, partNumber int) (UploadedPart, error) {
	file, err := t.fs.Open(path)
	if err != nil {
		return UploadedPart{}, fmt.Errorf("error opening part file for upload: %w", err)
	}
	defer file.Close()

	size, hash, err := digest(file)
	if err != nil {
		return UploadedPart{}, fmt.Errorf("error hashing part file %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return UploadedPart{}, fmt.Errorf("error rewinding part file %s: %w", path, err)
	}

	etag, err := t.client.UploadPart(ctx, bucket, key, uploadID, partNumber, file, size, hash)
	if err != nil {
		return UploadedPart{}, fmt.Errorf("error uploading part %d: %w", partNumber, err)
	}

	return UploadedPart{ETag: etag, Size: size}, nil
}

// CompleteUpload asks the store to assemble parts. When the store no longer
// knows uploadID it checks whether the object was already assembled from the
// same number of parts and returns ErrCompletedRemotely if so. A matching
// part count is evidence, not proof, that this session produced the object.
func (t *Transfer) CompleteUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) error {
	err := t.client.CompleteMultipartUpload(ctx, bucket, key, uploadID, parts)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrNoSuchUpload) {
		info, headErr := t.client.HeadObject(ctx, bucket, key)
		if headErr == nil && multipartCount(info.ETag) == len(parts) {
			return fmt.Errorf("%w: %s/%s has etag %s", ErrCompletedRemotely, bucket, key, info.ETag)
		}
	}

	return fmt.Errorf("error completing multipart upload: %w", err)
}

// AbortUpload cancels the remote session.
func (t *Transfer) AbortUpload(ctx context.Context, bucket, key, uploadID string) error {
	if err := t.client.AbortMultipartUpload(ctx, bucket, key, uploadID); err != nil {
		return fmt.Errorf("error aborting upload: %w", err)
	}
	return nil
}

func digest(r io.Reader) (int64, string, error) {
	hasher := md5.New()
	size, err := io.Copy(hasher, r)
	if err != nil {
		return 0, "", err
	}
	return size, base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}

// multipartCount extracts N from a multipart ETag of the form "<hex>-N".
// It returns 0 for any other ETag.
func multipartCount(etag string) int {
	etag = strings.Trim(etag, "\"")
	i := strings.LastIndexByte(etag, '-')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(etag[i+1:])
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
