// Package checksum computes checksums compatible with the POSIX cksum utility,
// so a record computed here can be compared with `cksum` run on another host.
package checksum

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zzenonn/zdeliver/internal/domain"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
)

const polynomial = 0x04C11DB7

// Size of a cksum checksum in bytes.
const Size = 4

var table = makeTable()

func makeTable() *[256]uint32 {
	t := new([256]uint32)
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ polynomial
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

func update(crc uint32, p []byte) uint32 {
	for _, b := range p {
		crc = crc<<8 ^ table[byte(crc>>24)^b]
	}
	return crc
}

// Digest is a running cksum computation. It implements hash.Hash32.
type Digest struct {
	crc uint32
	n   int64
}

// New returns an empty Digest.
func New() *Digest {
	return &Digest{}
}

func (d *Digest) Write(p []byte) (int, error) {
	d.crc = update(d.crc, p)
	d.n += int64(len(p))
	return len(p), nil
}

// Sum32 folds the byte count into the CRC and complements it, as cksum does.
func (d *Digest) Sum32() uint32 {
	crc := d.crc
	for n := d.n; n != 0; n >>= 8 {
		crc = crc<<8 ^ table[byte(crc>>24)^byte(n)]
	}
	return ^crc
}

func (d *Digest) Sum(b []byte) []byte {
	s := d.Sum32()
	return append(b, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *Digest) Reset() {
	d.crc = 0
	d.n = 0
}

func (d *Digest) Size() int { return Size }

func (d *Digest) BlockSize() int { return 1 }

// Len returns the number of bytes written so far.
func (d *Digest) Len() int64 {
	return d.n
}

// Record returns the checksum record for the bytes written so far.
func (d *Digest) Record(name string) domain.ChecksumRecord {
	return domain.ChecksumRecord{Checksum: d.Sum32(), Size: d.n, Name: name}
}

// Reader consumes r to EOF and returns its checksum record.
func Reader(r io.Reader, name string) (domain.ChecksumRecord, error) {
	d := New()
	if _, err := io.Copy(d, r); err != nil {
		return domain.ChecksumRecord{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return d.Record(name), nil
}

// File checksums the file at path. The record carries the file's basename.
func File(path string) (domain.ChecksumRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ChecksumRecord{}, &derrors.NotFoundError{Path: path, Err: err}
		}
		return domain.ChecksumRecord{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.ChecksumRecord{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.ChecksumRecord{}, fmt.Errorf("cannot checksum directory %s", path)
	}

	record, err := Reader(f, filepath.Base(path))
	if err != nil {
		return domain.ChecksumRecord{}, err
	}
	if record.Size != info.Size() {
		return domain.ChecksumRecord{}, fmt.Errorf("short read on %s: read %d of %d bytes: %w", path, record.Size, info.Size(), io.ErrUnexpectedEOF)
	}
	return record, nil
}
