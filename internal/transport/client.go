package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zdeliver/internal/domain"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
)

// StatisticsMember is the archive member holding per-product statistics.
const StatisticsMember = "stats"

// Client moves files between any two hosts known to its registry.
// Every failure it returns is a *errors.TransferError or, from
// RemoteChecksum, a *errors.NotFoundError.
type Client struct {
	registry *Registry
}

func NewClient(registry *Registry) *Client {
	return &Client{registry: registry}
}

// Transfer copies sourcePath on sourceHost to destinationPath on
// destinationHost, creating the destination directory first. An existing
// destination file is overwritten.
func (c *Client) Transfer(ctx context.Context, sourceHost, sourcePath, destinationHost, destinationPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, srcCfg, err := c.registry.Get(ctx, sourceHost)
	if err != nil {
		return &derrors.TransferError{Op: "connect", Host: sourceHost, Path: sourcePath, Err: err}
	}
	dst, dstCfg, err := c.registry.Get(ctx, destinationHost)
	if err != nil {
		return &derrors.TransferError{Op: "connect", Host: destinationHost, Path: destinationPath, Err: err}
	}

	log.Infof("Transferring [%s:%s] to [%s:%s]", src.Host(), sourcePath, dst.Host(), destinationPath)

	switch {
	case srcCfg.Kind == LocalKind:
		return c.upload(ctx, dst, sourcePath, destinationPath)

	case dstCfg.Kind == LocalKind:
		dir := filepath.Dir(destinationPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &derrors.TransferError{Op: "mkdir", Host: dst.Host(), Path: dir, Err: err}
		}
		if err := src.Download(ctx, sourcePath, destinationPath); err != nil {
			return &derrors.TransferError{Op: "download", Host: src.Host(), Path: sourcePath, Err: err}
		}
		return nil

	case srcCfg.Key() == dstCfg.Key():
		copier, ok := dst.(Copier)
		if !ok {
			return c.relay(ctx, src, dst, sourcePath, destinationPath)
		}
		dir := path.Dir(destinationPath)
		if err := dst.MkdirAll(ctx, dir); err != nil {
			return &derrors.TransferError{Op: "mkdir", Host: dst.Host(), Path: dir, Err: err}
		}
		if err := copier.Copy(ctx, sourcePath, destinationPath); err != nil {
			return &derrors.TransferError{Op: "copy", Host: dst.Host(), Path: destinationPath, Err: err}
		}
		return nil

	default:
		return c.relay(ctx, src, dst, sourcePath, destinationPath)
	}
}

func (c *Client) upload(ctx context.Context, dst Transport, localPath, remotePath string) error {
	dir := path.Dir(remotePath)
	if err := dst.MkdirAll(ctx, dir); err != nil {
		return &derrors.TransferError{Op: "mkdir", Host: dst.Host(), Path: dir, Err: err}
	}
	if err := dst.Upload(ctx, localPath, remotePath); err != nil {
		return &derrors.TransferError{Op: "upload", Host: dst.Host(), Path: remotePath, Err: err}
	}
	return nil
}

// relay moves a file between two remote hosts through a local temporary file.
func (c *Client) relay(ctx context.Context, src, dst Transport, sourcePath, destinationPath string) error {
	tmpDir, err := os.MkdirTemp("", "zdeliver-relay-*")
	if err != nil {
		return &derrors.TransferError{Op: "relay", Host: src.Host(), Path: sourcePath, Err: err}
	}
	defer os.RemoveAll(tmpDir)

	local := filepath.Join(tmpDir, path.Base(sourcePath))
	log.Debugf("Relaying %s:%s through %s", src.Host(), sourcePath, local)

	if err := src.Download(ctx, sourcePath, local); err != nil {
		return &derrors.TransferError{Op: "download", Host: src.Host(), Path: sourcePath, Err: err}
	}
	return c.upload(ctx, dst, local, destinationPath)
}

// RemoteChecksum computes the cksum record of path as stored on host.
func (c *Client) RemoteChecksum(ctx context.Context, host, remotePath string) (domain.ChecksumRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChecksumRecord{}, err
	}

	t, _, err := c.registry.Get(ctx, host)
	if err != nil {
		return domain.ChecksumRecord{}, &derrors.TransferError{Op: "connect", Host: host, Path: remotePath, Err: err}
	}

	record, err := t.Checksum(ctx, remotePath)
	if err != nil {
		var notFound *derrors.NotFoundError
		if errors.As(err, &notFound) {
			if notFound.Host == "" {
				notFound.Host = t.Host()
			}
			return domain.ChecksumRecord{}, notFound
		}
		return domain.ChecksumRecord{}, &derrors.TransferError{Op: "checksum", Host: t.Host(), Path: remotePath, Err: err}
	}

	log.Debugf("Checksum of %s:%s is %s", t.Host(), remotePath, record)
	return record, nil
}

// ExtractStatistics unpacks the statistics member of a delivered archive
// into directory on host.
func (c *Client) ExtractStatistics(ctx context.Context, host, archivePath, directory string) error {
	t, _, err := c.registry.Get(ctx, host)
	if err != nil {
		return &derrors.TransferError{Op: "connect", Host: host, Path: archivePath, Err: err}
	}

	extractor, ok := t.(Extractor)
	if !ok {
		return &derrors.TransferError{
			Op:   "extract",
			Host: t.Host(),
			Path: archivePath,
			Err:  fmt.Errorf("%w: %s cannot extract archives", derrors.ErrUnsupportedTransfer, t.Host()),
		}
	}

	log.Infof("Extracting %s from %s:%s", StatisticsMember, t.Host(), archivePath)
	if err := extractor.Extract(ctx, archivePath, directory, StatisticsMember); err != nil {
		return &derrors.TransferError{Op: "extract", Host: t.Host(), Path: archivePath, Err: err}
	}
	return nil
}

// Close closes all transports held by the registry.
func (c *Client) Close() error {
	return c.registry.Close()
}
