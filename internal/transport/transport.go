// Package transport moves files between this machine and destination hosts
// and computes checksums of files where they land.
//
// A Transport serves one host: the local filesystem, an SSH host, or an
// object store bucket (S3 or GCS). Client routes a transfer between any two
// hosts over the right pair of transports.
package transport

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/schollz/progressbar/v3"

	"github.com/zzenonn/zdeliver/internal/domain"
)

// Transport defines the file operations available on one host
type Transport interface {
	// Host returns the host string this transport serves.
	Host() string
	// MkdirAll creates dir and any parents. An existing directory is not an error.
	MkdirAll(ctx context.Context, dir string) error
	// Upload writes the local file to remotePath, replacing any existing file.
	Upload(ctx context.Context, localPath, remotePath string) error
	// Download writes remotePath to the local file, replacing any existing file.
	Download(ctx context.Context, remotePath, localPath string) error
	// Checksum computes the cksum record of the file as stored on the host.
	Checksum(ctx context.Context, path string) (domain.ChecksumRecord, error)
	// Close releases connections held by the transport.
	Close() error
}

// Copier is implemented by transports that can copy a file within their host.
type Copier interface {
	Copy(ctx context.Context, sourcePath, destinationPath string) error
}

// Extractor is implemented by transports that can unpack one member of a
// gzipped tarball in place.
type Extractor interface {
	Extract(ctx context.Context, archivePath, directory, member string) error
}

// objectKey maps a POSIX destination path onto a key below prefix.
func objectKey(prefix, p string) string {
	key := path.Clean("/" + p)[1:]
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// progressReader wraps r with a byte progress bar unless quiet is set.
func progressReader(r io.Reader, size int64, description string, quiet bool) io.Reader {
	if quiet {
		return r
	}
	bar := progressbar.DefaultBytes(size, description)
	pbReader := progressbar.NewReader(r, bar)
	return &pbReader
}

func fileSize(f *os.File) int64 {
	fi, err := f.Stat()
	if err != nil {
		return -1
	}
	return fi.Size()
}
