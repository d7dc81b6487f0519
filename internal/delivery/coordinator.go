// Package delivery packages a product, distributes it to a destination host
// and verifies that the bytes that arrived are the bytes that were packaged.
//
// A delivery runs three phases in order. PACKAGE and DISTRIBUTE are retried
// independently with a fixed backoff, each retrying only the failures native
// to its own operation. VERIFY compares the local and remote checksum records
// once and is never retried.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/fluxcd/pkg/lockedfile"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zdeliver/internal/domain"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
	"github.com/zzenonn/zdeliver/internal/remote"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
)

type Packager interface {
	Package(ctx context.Context, sourceDir, destinationDir, productName string) (domain.Artifact, error)
}

type Distributor interface {
	Transfer(ctx context.Context, sourceHost, sourcePath, destinationHost, destinationPath string) error
	RemoteChecksum(ctx context.Context, host, path string) (domain.ChecksumRecord, error)
}

// StatisticsExtractor is implemented by distributors that can unpack the
// statistics of a delivered archive at the destination.
type StatisticsExtractor interface {
	ExtractStatistics(ctx context.Context, host, archivePath, directory string) error
}

type RecordRepository interface {
	CreateRecord(ctx context.Context, record domain.DeliveryRecord) (domain.DeliveryRecord, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Request describes one delivery. Zero MaxAttempts or Backoff use the
// coordinator's defaults.
type Request struct {
	SourceDirectory      string
	PackageDirectory     string
	ProductName          string
	DestinationHost      string
	DestinationDirectory string
	MaxAttempts          int
	Backoff              time.Duration
	ExtractStatistics    bool
}

func (r Request) validate() error {
	if r.ProductName == "" {
		return derrors.ErrEmptyProductName
	}
	if r.SourceDirectory == "" || r.PackageDirectory == "" || r.DestinationDirectory == "" {
		return fmt.Errorf("%w: source, package and destination directories are required", derrors.ErrMissingRequiredFields)
	}
	return nil
}

type Coordinator struct {
	packager    Packager
	distributor Distributor
	recorder    RecordRepository
	maxAttempts int
	backoff     time.Duration
	lockDir     string
	sleep       SleepFunc
}

type Option func(*Coordinator)

func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithRecorder stores a DeliveryRecord for every call to Deliver.
func WithRecorder(r RecordRepository) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// WithLockDir places the per-product lock files in dir instead of the
// request's package directory.
func WithLockDir(dir string) Option {
	return func(c *Coordinator) {
		c.lockDir = dir
	}
}

func WithSleep(sleep SleepFunc) Option {
	return func(c *Coordinator) {
		c.sleep = sleep
	}
}

// NewCoordinator creates a new Coordinator instance
func NewCoordinator(packager Packager, distributor Distributor, opts ...Option) *Coordinator {
	c := &Coordinator{
		packager:    packager,
		distributor: distributor,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver runs PACKAGE, DISTRIBUTE and VERIFY for one product. It returns
// nil only when the artifact and its sidecar are at the destination and the
// remote checksum record matches the local one. The returned record
// describes the outcome either way.
func (c *Coordinator) Deliver(ctx context.Context, req Request) (record domain.DeliveryRecord, err error) {
	record = domain.NewDeliveryRecord(req.ProductName, req.DestinationHost)
	defer func() {
		c.finish(ctx, &record, err)
	}()

	if err := req.validate(); err != nil {
		return record, err
	}

	attempts := req.MaxAttempts
	if attempts <= 0 {
		attempts = c.maxAttempts
	}
	backoff := req.Backoff
	if backoff <= 0 {
		backoff = c.backoff
	}

	logger := log.WithFields(log.Fields{
		"product": req.ProductName,
		"host":    req.DestinationHost,
	})

	unlock, err := c.lock(req)
	if err != nil {
		return record, err
	}
	defer unlock()

	// PACKAGE
	var artifact domain.Artifact
	record.PackageAttempts, err = c.retry(ctx, logger.WithField("phase", domain.PhasePackage), attempts, backoff, isPackagingError,
		func(ctx context.Context) error {
			a, err := c.packager.Package(ctx, req.SourceDirectory, req.PackageDirectory, req.ProductName)
			if err != nil {
				return err
			}
			artifact = a
			return nil
		})
	if err != nil {
		record.FailedPhase = domain.PhasePackage
		if isPackagingError(err) {
			return record, &derrors.PackagingFailedError{Product: req.ProductName, Attempts: record.PackageAttempts, Err: err}
		}
		return record, err
	}
	record.ArtifactPath = artifact.Path
	record.Checksum = artifact.Checksum
	logger.WithField("checksum", artifact.Checksum.String()).Info("Packaged product")

	// DISTRIBUTE
	destinationArtifact := path.Join(req.DestinationDirectory, filepath.Base(artifact.Path))
	destinationSidecar := path.Join(req.DestinationDirectory, filepath.Base(artifact.ChecksumPath))
	record.DestinationPath = destinationArtifact

	var remoteRecord domain.ChecksumRecord
	record.DistributionAttempts, err = c.retry(ctx, logger.WithField("phase", domain.PhaseDistribute), attempts, backoff, isDistributionError,
		func(ctx context.Context) error {
			if err := c.distributor.Transfer(ctx, remote.LocalHost, artifact.Path, req.DestinationHost, destinationArtifact); err != nil {
				return err
			}
			if err := c.distributor.Transfer(ctx, remote.LocalHost, artifact.ChecksumPath, req.DestinationHost, destinationSidecar); err != nil {
				return err
			}
			r, err := c.distributor.RemoteChecksum(ctx, req.DestinationHost, destinationArtifact)
			if err != nil {
				return err
			}
			remoteRecord = r
			return nil
		})
	if err != nil {
		record.FailedPhase = domain.PhaseDistribute
		if isDistributionError(err) {
			return record, &derrors.DistributionFailedError{
				Product:  req.ProductName,
				Host:     req.DestinationHost,
				Attempts: record.DistributionAttempts,
				Err:      err,
			}
		}
		return record, err
	}
	logger.WithField("destination", destinationArtifact).Info("Distributed product")

	// VERIFY
	if !artifact.Checksum.Matches(remoteRecord) {
		record.FailedPhase = domain.PhaseVerify
		return record, &derrors.ChecksumMismatchError{
			Local:           artifact.Checksum,
			Remote:          remoteRecord,
			ArtifactPath:    artifact.Path,
			Host:            req.DestinationHost,
			DestinationPath: destinationArtifact,
		}
	}
	logger.Info("Verified delivery checksum")

	if req.ExtractStatistics {
		if err := c.extractStatistics(ctx, req.DestinationHost, destinationArtifact, req.DestinationDirectory); err != nil {
			record.FailedPhase = domain.PhaseStatistics
			return record, err
		}
		logger.Info("Extracted statistics")
	}

	return record, nil
}

func (c *Coordinator) extractStatistics(ctx context.Context, host, archivePath, directory string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	extractor, ok := c.distributor.(StatisticsExtractor)
	if !ok {
		return fmt.Errorf("%w: statistics extraction", derrors.ErrUnsupportedTransfer)
	}
	return extractor.ExtractStatistics(ctx, host, archivePath, directory)
}

// lock serialises deliveries of one product across processes. The lock file
// name starts with a dot so that stale-package cleanup never matches it.
func (c *Coordinator) lock(req Request) (func(), error) {
	dir := c.lockDir
	if dir == "" {
		dir = req.PackageDirectory
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	unlock, err := lockedfile.MutexAt(filepath.Join(dir, "."+req.ProductName+".lock")).Lock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock product %s: %w", req.ProductName, err)
	}
	return unlock, nil
}

// finish completes the record and stores it. A failure to store the record
// never changes the outcome of the delivery.
func (c *Coordinator) finish(ctx context.Context, record *domain.DeliveryRecord, err error) {
	record.FinishedAt = time.Now().UTC()
	if err != nil {
		record.Status = domain.StatusFailed
		record.Error = err.Error()
	} else {
		record.Status = domain.StatusDelivered
	}

	if c.recorder == nil {
		return
	}
	if _, rerr := c.recorder.CreateRecord(context.WithoutCancel(ctx), *record); rerr != nil {
		log.WithField("product", record.ProductName).Errorf("Failed to store delivery record: %v", rerr)
	}
}

func isPackagingError(err error) bool {
	var packagingErr *derrors.PackagingError
	return errors.As(err, &packagingErr)
}

func isDistributionError(err error) bool {
	var transferErr *derrors.TransferError
	var notFoundErr *derrors.NotFoundError
	return errors.As(err, &transferErr) || errors.As(err, &notFoundErr)
}
