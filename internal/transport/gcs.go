package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zdeliver/internal/checksum"
	"github.com/zzenonn/zdeliver/internal/domain"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
)

// GCSTransport stores files as objects below a Google Cloud Storage bucket prefix.
type GCSTransport struct {
	host   string
	client *storage.Client
	bucket string
	prefix string
	quiet  bool
}

func NewGCSTransport(host string, client *storage.Client, bucket, prefix string, quiet bool) *GCSTransport {
	return &GCSTransport{
		host:   host,
		client: client,
		bucket: bucket,
		prefix: prefix,
		quiet:  quiet,
	}
}

func (t *GCSTransport) Host() string {
	return t.host
}

func (t *GCSTransport) MkdirAll(ctx context.Context, dir string) error {
	return nil
}

// Upload uploads a local file to GCS. The object only becomes visible when
// the writer is closed successfully.
func (t *GCSTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	key := objectKey(t.prefix, remotePath)
	log.Debugf("Uploading to GCS: gs://%s/%s", t.bucket, key)

	writer := t.client.Bucket(t.bucket).Object(key).NewWriter(ctx)
	reader := progressReader(f, fileSize(f), "uploading "+filepath.Base(localPath), t.quiet)
	if _, err := io.Copy(writer, reader); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload to GCS: %w", err)
	}
	return nil
}

func (t *GCSTransport) Download(ctx context.Context, remotePath, localPath string) error {
	reader, err := t.open(ctx, remotePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to download from GCS: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, localPath)
}

func (t *GCSTransport) Checksum(ctx context.Context, remotePath string) (domain.ChecksumRecord, error) {
	reader, err := t.open(ctx, remotePath)
	if err != nil {
		return domain.ChecksumRecord{}, err
	}
	defer reader.Close()

	return checksum.Reader(reader, path.Base(remotePath))
}

func (t *GCSTransport) open(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	key := objectKey(t.prefix, remotePath)
	reader, err := t.client.Bucket(t.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, &derrors.NotFoundError{Host: t.host, Path: remotePath, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download from GCS: %w", err)
	}
	return reader, nil
}

// Close is a no-op; the storage client is shared and owned by the factory.
func (t *GCSTransport) Close() error {
	return nil
}
