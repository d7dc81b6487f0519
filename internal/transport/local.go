package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zdeliver/internal/checksum"
	"github.com/zzenonn/zdeliver/internal/domain"
	"github.com/zzenonn/zdeliver/internal/remote"
)

// LocalTransport serves files on this machine.
type LocalTransport struct {
	runner remote.Runner
	quiet  bool
}

func NewLocalTransport(quiet bool) *LocalTransport {
	return &LocalTransport{
		runner: remote.LocalRunner{},
		quiet:  quiet,
	}
}

func (t *LocalTransport) Host() string {
	return remote.LocalHost
}

func (t *LocalTransport) MkdirAll(ctx context.Context, dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Upload copies a local file to another local path.
func (t *LocalTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	return t.copyFile(ctx, localPath, remotePath)
}

// Download copies a local file to another local path.
func (t *LocalTransport) Download(ctx context.Context, remotePath, localPath string) error {
	return t.copyFile(ctx, remotePath, localPath)
}

func (t *LocalTransport) Copy(ctx context.Context, sourcePath, destinationPath string) error {
	return t.copyFile(ctx, sourcePath, destinationPath)
}

func (t *LocalTransport) Checksum(ctx context.Context, path string) (domain.ChecksumRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChecksumRecord{}, err
	}
	return checksum.File(path)
}

// Extract unpacks member of archivePath into directory with the system tar,
// the same command an SSH host runs.
func (t *LocalTransport) Extract(ctx context.Context, archivePath, directory, member string) error {
	_, err := t.runner.Run(ctx, remote.NewCommand("tar", "-xzf", archivePath, "-C", directory, member))
	return err
}

func (t *LocalTransport) Close() error {
	return nil
}

// copyFile writes src to a temporary file next to dst and renames it into
// place, so an interrupted copy never leaves a partial dst behind.
func (t *LocalTransport) copyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	if same, err := sameFile(fi, dst); err != nil {
		return err
	} else if same {
		log.Debugf("Source and destination are the same file: %s", dst)
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	reader := progressReader(in, fi.Size(), "copying "+filepath.Base(src), t.quiet)
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(fi.Mode().Perm()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	log.Debugf("Copied %d bytes from %s to %s", fi.Size(), src, dst)
	return os.Rename(tmpName, dst)
}

func sameFile(src os.FileInfo, dst string) (bool, error) {
	di, err := os.Stat(dst)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(src, di), nil
}
