package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zdeliver/internal/domain"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
	"github.com/zzenonn/zdeliver/internal/remote"
)

// SSHTransport serves files on a POSIX host through shell commands.
// Checksums are computed by the host's own cksum utility.
type SSHTransport struct {
	host   string
	runner remote.Runner
	quiet  bool
}

// NewSSHTransport wraps any runner. Production code passes a remote.SSHRunner.
func NewSSHTransport(host string, runner remote.Runner, quiet bool) *SSHTransport {
	return &SSHTransport{
		host:   host,
		runner: runner,
		quiet:  quiet,
	}
}

func (t *SSHTransport) Host() string {
	return t.host
}

func (t *SSHTransport) MkdirAll(ctx context.Context, dir string) error {
	_, err := t.runner.Run(ctx, remote.NewCommand("mkdir", "-p", dir))
	return err
}

// Upload streams the local file into a partial file on the host and moves it
// over remotePath once complete.
func (t *SSHTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := progressReader(f, fileSize(f), "uploading "+filepath.Base(localPath), t.quiet)
	cmd := remote.NewCommand("sh", "-c", `cat > "$1.partial" && mv -f "$1.partial" "$1"`, "sh", remotePath)

	log.Debugf("Uploading %s to %s:%s", localPath, t.host, remotePath)
	return t.runner.Stream(ctx, cmd, reader, io.Discard)
}

func (t *SSHTransport) Download(ctx context.Context, remotePath, localPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	log.Debugf("Downloading %s:%s to %s", t.host, remotePath, localPath)
	if err := t.runner.Stream(ctx, remote.NewCommand("cat", remotePath), nil, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, localPath)
}

func (t *SSHTransport) Copy(ctx context.Context, sourcePath, destinationPath string) error {
	_, err := t.runner.Run(ctx, remote.NewCommand("cp", "-f", sourcePath, destinationPath))
	return err
}

func (t *SSHTransport) Extract(ctx context.Context, archivePath, directory, member string) error {
	_, err := t.runner.Run(ctx, remote.NewCommand("tar", "-xzf", archivePath, "-C", directory, member))
	return err
}

// Checksum runs cksum on the host. A missing path is reported as a
// NotFoundError rather than a failed command.
func (t *SSHTransport) Checksum(ctx context.Context, path string) (domain.ChecksumRecord, error) {
	if _, err := t.runner.Run(ctx, remote.NewCommand("test", "-f", path)); err != nil {
		var exitErr *remote.ExitError
		if errors.As(err, &exitErr) {
			return domain.ChecksumRecord{}, &derrors.NotFoundError{Host: t.host, Path: path, Err: err}
		}
		return domain.ChecksumRecord{}, err
	}

	out, err := t.runner.Run(ctx, remote.NewCommand("cksum", path))
	if err != nil {
		return domain.ChecksumRecord{}, err
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return domain.ParseChecksumRecord(line)
}

func (t *SSHTransport) Close() error {
	if c, ok := t.runner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
