package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/zzenonn/zdeliver/internal/checksum"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
)

// fakeS3 keeps objects in memory. Only single-part uploads are supported.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, nil
}

func TestS3Transport(t *testing.T) {
	fake := newFakeS3()
	tr := NewS3Transport("s3://espa-orders/online", fake, "espa-orders", "online", true)
	ctx := context.Background()

	dir := t.TempDir()
	src := filepath.Join(dir, "order.tar.gz")
	writeFile(t, src, "archived scene")

	if err := tr.MkdirAll(ctx, "/orders/abc"); err != nil {
		t.Fatal(err)
	}
	if err := tr.Upload(ctx, src, "/orders/abc/order.tar.gz"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if got := string(fake.objects["espa-orders/online/orders/abc/order.tar.gz"]); got != "archived scene" {
		t.Fatalf("stored object = %q", got)
	}

	record, err := tr.Checksum(ctx, "/orders/abc/order.tar.gz")
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}
	local, err := checksum.File(src)
	if err != nil {
		t.Fatal(err)
	}
	if !record.Matches(local) || record.Name != "order.tar.gz" {
		t.Errorf("Checksum() = %s, want %s", record, local)
	}

	back := filepath.Join(dir, "back.tar.gz")
	if err := tr.Download(ctx, "/orders/abc/order.tar.gz", back); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got := readFile(t, back); got != "archived scene" {
		t.Errorf("downloaded = %q", got)
	}

	_, err = tr.Checksum(ctx, "/orders/abc/missing.tar.gz")
	var notFound *derrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Checksum(missing) error = %v, want NotFoundError", err)
	}
}
