// Package packager turns a finished product directory into a gzipped tarball
// plus a cksum sidecar file, ready to be handed to a transport.
package packager

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zdeliver/internal/checksum"
	"github.com/zzenonn/zdeliver/internal/domain"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
)

const (
	// ArchiveExtension is appended to the product name to form the artifact file name.
	ArchiveExtension = ".tar.gz"
	// ChecksumExtension is appended to the product name to form the sidecar file name.
	ChecksumExtension = ".cksum"

	// ArtifactMode is applied to the compressed archive.
	ArtifactMode os.FileMode = 0o644
)

// Packager builds product archives.
type Packager struct {
	quiet bool
}

// Option configures a Packager.
type Option func(*Packager)

// WithQuiet suppresses the compression progress bar.
func WithQuiet(quiet bool) Option {
	return func(p *Packager) {
		p.quiet = quiet
	}
}

// New creates a Packager.
func New(opts ...Option) *Packager {
	p := &Packager{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ArtifactName returns the archive file name for a product.
func ArtifactName(productName string) string {
	return productName + ArchiveExtension
}

// ChecksumName returns the sidecar file name for a product.
func ChecksumName(productName string) string {
	return productName + ChecksumExtension
}

// Package archives the full contents of sourceDir into
// destinationDir/productName.tar.gz and writes destinationDir/productName.cksum.
//
// Any file in destinationDir whose name starts with productName is removed
// first. Every failure is returned as a *errors.PackagingError; files created
// by a failed call are removed before returning.
func (p *Packager) Package(ctx context.Context, sourceDir, destinationDir, productName string) (artifact domain.Artifact, err error) {
	fail := func(step string, cause error) (domain.Artifact, error) {
		return domain.Artifact{}, &derrors.PackagingError{Product: productName, Step: step, Err: cause}
	}

	if productName == "" {
		return fail("validate", derrors.ErrEmptyProductName)
	}
	if strings.ContainsRune(productName, filepath.Separator) || productName == "." || productName == ".." {
		return fail("validate", fmt.Errorf("product name %q must be a plain file name", productName))
	}
	if fi, statErr := os.Stat(sourceDir); statErr != nil {
		return fail("validate", statErr)
	} else if !fi.IsDir() {
		return fail("validate", fmt.Errorf("%w: %s", derrors.ErrNotDirectory, sourceDir))
	}
	if mkErr := os.MkdirAll(destinationDir, 0o755); mkErr != nil {
		return fail("validate", mkErr)
	}

	if cleanErr := RemoveStale(destinationDir, productName); cleanErr != nil {
		return fail("cleanup", cleanErr)
	}

	base := filepath.Join(destinationDir, productName)
	tarPath := base + ".tar"
	artifactPath := base + ArchiveExtension
	checksumPath := base + ChecksumExtension

	defer func() {
		if err != nil {
			for _, path := range []string{tarPath, artifactPath, checksumPath} {
				if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
					log.Warnf("Failed to remove partial package file %s: %v", path, rmErr)
				}
			}
		}
	}()

	log.Infof("Packaging completed product to %s", artifactPath)

	if err := writeTar(ctx, sourceDir, tarPath); err != nil {
		return fail("archive", err)
	}

	if err := p.compress(tarPath, artifactPath); err != nil {
		return fail("compress", err)
	}

	log.Debugf("Changing file permissions on %s to %#o", artifactPath, ArtifactMode)
	if err := os.Chmod(artifactPath, ArtifactMode); err != nil {
		return fail("compress", err)
	}

	if _, err := List(artifactPath); err != nil {
		return fail("verify", err)
	}

	record, err := checksum.File(artifactPath)
	if err != nil {
		return fail("checksum", err)
	}
	log.Infof("Generating cksum: %s", record)

	if err := os.WriteFile(checksumPath, []byte(record.String()), ArtifactMode); err != nil {
		return fail("checksum", err)
	}

	return domain.Artifact{
		Path:         artifactPath,
		ChecksumPath: checksumPath,
		Checksum:     record,
	}, nil
}

// RemoveStale deletes every entry of dir whose name begins with productName.
func RemoveStale(dir, productName string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), productName) {
			continue
		}
		stale := filepath.Join(dir, entry.Name())
		log.Debugf("Removing stale package file %s", stale)
		if err := os.Remove(stale); err != nil {
			return fmt.Errorf("failed to remove stale file %s: %w", stale, err)
		}
	}
	return nil
}

// writeTar writes every entry below root to an uncompressed tarball at
// target, with names relative to root.
func writeTar(ctx context.Context, root, target string) (err error) {
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	tw := tar.NewWriter(f)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root || p == target {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if fi.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(fi, link)
		if err != nil {
			return err
		}

		// FileInfoHeader only knows the base name.
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if fi.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		src, err := os.Open(p)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, src); err != nil {
			src.Close()
			return err
		}
		return src.Close()
	})
	if err != nil {
		tw.Close()
		return err
	}
	return tw.Close()
}

// compress gzips the tarball at src into dst and removes src.
func (p *Packager) compress(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	var reader io.Reader = in
	if !p.quiet {
		size := int64(-1)
		if fi, statErr := in.Stat(); statErr == nil {
			size = fi.Size()
		}
		bar := progressbar.DefaultBytes(size, "compressing")
		pbReader := progressbar.NewReader(in, bar)
		reader = &pbReader
	}

	gw := gzip.NewWriter(out)
	gw.Name = filepath.Base(src)
	if _, err := io.Copy(gw, reader); err != nil {
		gw.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}

	in.Close()
	return os.Remove(src)
}

// List returns the entry names of a gzipped tarball. The whole stream is
// read so that a truncated or corrupt archive is reported.
func List(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
	}
	defer gr.Close()

	var names []string
	tr := tar.NewReader(gr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", path, err)
		}
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", header.Name, path, err)
		}
		names = append(names, header.Name)
	}
	return names, nil
}
