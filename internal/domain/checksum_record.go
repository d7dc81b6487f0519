package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrInvalidChecksumRecord is returned for lines that are not cksum output.
var ErrInvalidChecksumRecord = errors.New("invalid checksum record")

// ChecksumRecord - a cksum-compatible checksum line: "<checksum> <size> <name>"
type ChecksumRecord struct {
	Checksum uint32 `json:"checksum" dynamodbav:"checksum"`
	Size     int64  `json:"size" dynamodbav:"size"`
	Name     string `json:"name" dynamodbav:"name"`
}

// String renders the record exactly as it is written to a sidecar file.
func (r ChecksumRecord) String() string {
	return fmt.Sprintf("%d %d %s", r.Checksum, r.Size, r.Name)
}

// Matches compares checksum and size only. Names differ legitimately
// between a local artifact and its copy at a destination.
func (r ChecksumRecord) Matches(other ChecksumRecord) bool {
	return r.Checksum == other.Checksum && r.Size == other.Size
}

// ParseChecksumRecord parses one line of cksum output. A path in the
// third field is reduced to its basename.
func ParseChecksumRecord(line string) (ChecksumRecord, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ChecksumRecord{}, fmt.Errorf("%w: %q", ErrInvalidChecksumRecord, line)
	}

	sum, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return ChecksumRecord{}, fmt.Errorf("%w: checksum %q: %v", ErrInvalidChecksumRecord, fields[0], err)
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || size < 0 {
		return ChecksumRecord{}, fmt.Errorf("%w: size %q", ErrInvalidChecksumRecord, fields[1])
	}

	record := ChecksumRecord{Checksum: uint32(sum), Size: size}
	if len(fields) > 2 {
		record.Name = filepath.Base(strings.Join(fields[2:], " "))
	}
	return record, nil
}
