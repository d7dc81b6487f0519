package checksum

import (
	"bytes"
	"errors"
	"hash"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zzenonn/zdeliver/internal/domain"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
)

var _ hash.Hash32 = (*Digest)(nil)

func TestUpdate_CRC32POSIXCheckValue(t *testing.T) {
	// CRC-32/POSIX catalogue check value, without the cksum length suffix.
	if got := ^update(0, []byte("123456789")); got != 0x765E7680 {
		t.Errorf("check value = %#x, want %#x", got, 0x765E7680)
	}
}

func TestReader(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		wantSum  uint32
		wantSize int64
	}{
		{
			name:     "empty input",
			content:  nil,
			wantSum:  4294967295,
			wantSize: 0,
		},
		{
			name:     "single zero byte",
			content:  []byte{0},
			wantSum:  ^lengthOnly(1),
			wantSize: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := Reader(bytes.NewReader(tt.content), "f")
			if err != nil {
				t.Fatalf("Reader() error = %v", err)
			}
			if record.Checksum != tt.wantSum {
				t.Errorf("Checksum = %d, want %d", record.Checksum, tt.wantSum)
			}
			if record.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", record.Size, tt.wantSize)
			}
		})
	}
}

// lengthOnly returns the un-complemented CRC contribution of folding n
// into a zero register, which is what a single zero byte leaves behind.
func lengthOnly(n int64) uint32 {
	var crc uint32
	for ; n != 0; n >>= 8 {
		crc = crc<<8 ^ table[byte(crc>>24)^byte(n)]
	}
	return crc
}

func TestDigest_StreamingMatchesOneShot(t *testing.T) {
	data := bytes.Repeat([]byte("landsat scene bytes "), 1000)

	oneShot := New()
	oneShot.Write(data)

	streamed := New()
	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		streamed.Write(data[i:end])
	}

	if oneShot.Sum32() != streamed.Sum32() {
		t.Errorf("streamed checksum %d != one-shot checksum %d", streamed.Sum32(), oneShot.Sum32())
	}
	if streamed.Len() != int64(len(data)) {
		t.Errorf("Len() = %d, want %d", streamed.Len(), len(data))
	}

	streamed.Reset()
	if streamed.Sum32() != 4294967295 || streamed.Len() != 0 {
		t.Errorf("Reset() did not return digest to empty state")
	}
}

func TestFile_Deterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order123.tar.gz")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := File(path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	second, err := File(path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	if first != second {
		t.Errorf("checksum not deterministic: %v != %v", first, second)
	}
	if first.Size != 5 {
		t.Errorf("Size = %d, want 5", first.Size)
	}
	if first.Name != "order123.tar.gz" {
		t.Errorf("Name = %q, want basename", first.Name)
	}
	if !strings.HasSuffix(first.String(), " 5 order123.tar.gz") {
		t.Errorf("String() = %q", first.String())
	}
}

func TestFile_Sensitivity(t *testing.T) {
	dir := t.TempDir()
	variants := map[string][]byte{
		"base":      []byte("hello"),
		"flipped":   []byte("hellp"),
		"longer":    []byte("hello\x00"),
		"shorter":   []byte("hell"),
		"reordered": []byte("olleh"),
	}

	seen := make(map[domain.ChecksumRecord]string)
	for name, content := range variants {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}
		record, err := File(path)
		if err != nil {
			t.Fatalf("File(%s) error = %v", name, err)
		}
		record.Name = ""
		if other, ok := seen[record]; ok {
			t.Errorf("%s and %s produced the same checksum %v", name, other, record)
		}
		seen[record] = name
	}
}

func TestFile_NotFound(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing"))

	var notFound *derrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("File() error = %v, want NotFoundError", err)
	}
}

func TestFile_Directory(t *testing.T) {
	_, err := File(t.TempDir())
	if err == nil {
		t.Fatal("expected error checksumming a directory")
	}
	var notFound *derrors.NotFoundError
	if errors.As(err, &notFound) {
		t.Errorf("directory reported as not found: %v", err)
	}
}
