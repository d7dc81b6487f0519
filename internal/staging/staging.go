// Package staging prepares the processing directory of a scene and stages
// its input archive into it.
package staging

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/fluxcd/pkg/tar"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zdeliver/internal/domain"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
	"github.com/zzenonn/zdeliver/internal/remote"
)

const (
	stageDirectory  = "stage"
	workDirectory   = "work"
	outputDirectory = "output"

	InputExtension = ".tar.gz"
)

type Transferrer interface {
	Transfer(ctx context.Context, sourceHost, sourcePath, destinationHost, destinationPath string) error
}

// InitializeProcessingDirectory recreates <base>/<orderID>/<scene> with empty
// stage, work and output sub-directories. Anything left in the order
// directory from an earlier run is removed. An empty or "." base means the
// current working directory.
func InitializeProcessingDirectory(base, orderID, scene string) (domain.ProcessingDirectory, error) {
	if orderID == "" || scene == "" {
		return domain.ProcessingDirectory{}, fmt.Errorf("%w: order id and scene are required", derrors.ErrMissingRequiredFields)
	}

	if base == "" || base == "." {
		wd, err := os.Getwd()
		if err != nil {
			return domain.ProcessingDirectory{}, err
		}
		base = wd
	}

	orderDir, err := securejoin.SecureJoin(base, orderID)
	if err != nil {
		return domain.ProcessingDirectory{}, err
	}
	if orderDir == filepath.Clean(base) {
		return domain.ProcessingDirectory{}, fmt.Errorf("order id %q resolves to the base directory", orderID)
	}

	if err := os.RemoveAll(orderDir); err != nil {
		log.Warnf("Failed to remove previous order directory %s: %v", orderDir, err)
	}

	sceneDir, err := securejoin.SecureJoin(orderDir, scene)
	if err != nil {
		return domain.ProcessingDirectory{}, err
	}

	dir := domain.ProcessingDirectory{
		Scene:  sceneDir,
		Stage:  filepath.Join(sceneDir, stageDirectory),
		Work:   filepath.Join(sceneDir, workDirectory),
		Output: filepath.Join(sceneDir, outputDirectory),
	}
	for _, d := range []string{dir.Stage, dir.Work, dir.Output} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return domain.ProcessingDirectory{}, fmt.Errorf("failed to create %s directory: %w", filepath.Base(d), err)
		}
	}

	log.Debugf("Initialized processing directory %s", sceneDir)
	return dir, nil
}

// StageInput transfers <sourceDirectory>/<scene>.tar.gz from sourceHost into
// the stage directory and unpacks it into the work directory. It returns the
// path of the staged archive.
func StageInput(ctx context.Context, t Transferrer, sourceHost, sourceDirectory, scene string, dir domain.ProcessingDirectory) (string, error) {
	filename := scene + InputExtension
	sourceFile := path.Join(sourceDirectory, filename)
	stagedFile := filepath.Join(dir.Stage, filename)

	if err := t.Transfer(ctx, sourceHost, sourceFile, remote.LocalHost, stagedFile); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", scene, err)
	}

	if err := Unpack(stagedFile, dir.Work); err != nil {
		return "", fmt.Errorf("failed to unpack %s: %w", stagedFile, err)
	}

	log.Infof("Staged %s:%s into %s", sourceHost, sourceFile, dir.Work)
	return stagedFile, nil
}

// Unpack extracts a gzipped tarball into directory. Entries that would
// escape directory are rejected.
func Unpack(archivePath, directory string) error {
	if !strings.HasSuffix(archivePath, InputExtension) {
		return fmt.Errorf("%s is not a %s archive", archivePath, InputExtension)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	return tar.Untar(f, directory, tar.WithMaxUntarSize(-1))
}
