package errors

import (
	"errors"
	"fmt"

	"github.com/zzenonn/zdeliver/internal/domain"
)

var (
	ErrMissingRequiredFields = errors.New("missing required fields")
	ErrEmptyProductName      = errors.New("product name cannot be empty")
	ErrNotDirectory          = errors.New("path is not a directory")
	ErrInvalidHost           = errors.New("invalid host")
	ErrUnsupportedTransfer   = errors.New("unsupported transfer")
)

// PackagingError reports a failure to produce a valid, listable, checksummed archive.
type PackagingError struct {
	Product string
	Step    string
	Err     error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging %s failed at %s: %v", e.Product, e.Step, e.Err)
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}

// TransferError reports a failure to move bytes or to create a directory on a host.
type TransferError struct {
	Op   string
	Host string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s:%s failed: %v", e.Op, e.Host, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a file that is missing at the point of checksumming.
type NotFoundError struct {
	Host string
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("%s not found", e.Path)
	}
	return fmt.Sprintf("%s:%s not found", e.Host, e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// PackagingFailedError is returned once the package phase has used up its attempts.
type PackagingFailedError struct {
	Product  string
	Attempts int
	Err      error
}

func (e *PackagingFailedError) Error() string {
	return fmt.Sprintf("failed to package product %s after %d attempts: %v", e.Product, e.Attempts, e.Err)
}

func (e *PackagingFailedError) Unwrap() error {
	return e.Err
}

// DistributionFailedError is returned once the distribute phase has used up its attempts.
type DistributionFailedError struct {
	Product  string
	Host     string
	Attempts int
	Err      error
}

func (e *DistributionFailedError) Error() string {
	return fmt.Sprintf("failed to distribute product %s to %s after %d attempts: %v", e.Product, e.Host, e.Attempts, e.Err)
}

func (e *DistributionFailedError) Unwrap() error {
	return e.Err
}

// ChecksumMismatchError is returned when the delivered bytes do not match the packaged bytes.
// It is never retried.
type ChecksumMismatchError struct {
	Local           domain.ChecksumRecord
	Remote          domain.ChecksumRecord
	ArtifactPath    string
	Host            string
	DestinationPath string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("failed checksum validation between %s (%s) and %s:%s (%s)",
		e.ArtifactPath, e.Local, e.Host, e.DestinationPath, e.Remote)
}

// CommandError generates a formatted error for a failed external command.
func CommandError(command string, err error) error {
	return fmt.Errorf("command %q failed: %w", command, err)
}

func ConfigNotSetError(config string) error {
	return fmt.Errorf("the %s configuration value must be set", config)
}
