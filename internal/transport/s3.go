package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zdeliver/internal/checksum"
	"github.com/zzenonn/zdeliver/internal/domain"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
)

// S3API is the subset of the S3 client used by S3Transport
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Transport stores files as objects below a bucket prefix.
type S3Transport struct {
	host     string
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
	quiet    bool
}

// NewS3Transport initializes a new S3Transport.
func NewS3Transport(host string, client S3API, bucket, prefix string, quiet bool) *S3Transport {
	return &S3Transport{
		host:     host,
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		quiet:    quiet,
	}
}

func (t *S3Transport) Host() string {
	return t.host
}

// MkdirAll is a no-op. Prefixes exist as soon as an object is stored below them.
func (t *S3Transport) MkdirAll(ctx context.Context, dir string) error {
	return nil
}

// Upload uploads a local file to S3, in parts for large files.
func (t *S3Transport) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	key := objectKey(t.prefix, remotePath)
	log.Debugf("Uploading to S3: s3://%s/%s", t.bucket, key)

	_, err = t.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
		Body:   progressReader(f, fileSize(f), "uploading "+filepath.Base(localPath), t.quiet),
	})
	return err
}

// Download downloads an object from S3 to a local file
func (t *S3Transport) Download(ctx context.Context, remotePath, localPath string) error {
	body, err := t.open(ctx, remotePath)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, localPath)
}

// Checksum streams the stored object through the cksum algorithm.
func (t *S3Transport) Checksum(ctx context.Context, remotePath string) (domain.ChecksumRecord, error) {
	body, err := t.open(ctx, remotePath)
	if err != nil {
		return domain.ChecksumRecord{}, err
	}
	defer body.Close()

	return checksum.Reader(body, path.Base(remotePath))
}

func (t *S3Transport) open(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	key := objectKey(t.prefix, remotePath)
	result, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, &derrors.NotFoundError{Host: t.host, Path: remotePath, Err: err}
		}
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", t.bucket, key, err)
	}
	return result.Body, nil
}

func (t *S3Transport) Close() error {
	return nil
}
