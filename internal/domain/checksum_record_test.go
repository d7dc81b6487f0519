package domain

import (
	"errors"
	"testing"
)

func TestParseChecksumRecord(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    ChecksumRecord
		wantErr bool
	}{
		{
			name: "sidecar line",
			line: "3456789 123 order123.tar.gz",
			want: ChecksumRecord{Checksum: 3456789, Size: 123, Name: "order123.tar.gz"},
		},
		{
			name: "remote cksum output with path and newline",
			line: "3456789 123 /data/out/order123.tar.gz\n",
			want: ChecksumRecord{Checksum: 3456789, Size: 123, Name: "order123.tar.gz"},
		},
		{
			name: "stdin cksum output has no name",
			line: "4294967295 0",
			want: ChecksumRecord{Checksum: 4294967295, Size: 0},
		},
		{
			name:    "empty line",
			line:    "",
			wantErr: true,
		},
		{
			name:    "non numeric checksum",
			line:    "abc 12 file",
			wantErr: true,
		},
		{
			name:    "checksum overflows 32 bits",
			line:    "4294967296 12 file",
			wantErr: true,
		},
		{
			name:    "negative size",
			line:    "1 -4 file",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChecksumRecord(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChecksumRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidChecksumRecord) {
					t.Errorf("error %v does not wrap ErrInvalidChecksumRecord", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseChecksumRecord() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChecksumRecord_Matches(t *testing.T) {
	local := ChecksumRecord{Checksum: 10, Size: 20, Name: "order123.tar.gz"}

	tests := []struct {
		name   string
		remote ChecksumRecord
		want   bool
	}{
		{"identical", local, true},
		{"different name only", ChecksumRecord{Checksum: 10, Size: 20, Name: "other"}, true},
		{"different checksum", ChecksumRecord{Checksum: 11, Size: 20, Name: local.Name}, false},
		{"different size", ChecksumRecord{Checksum: 10, Size: 21, Name: local.Name}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := local.Matches(tt.remote); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChecksumRecord_StringRoundTrip(t *testing.T) {
	record := ChecksumRecord{Checksum: 1985902208, Size: 9, Name: "order123.tar.gz"}
	if got := record.String(); got != "1985902208 9 order123.tar.gz" {
		t.Fatalf("String() = %q", got)
	}
	parsed, err := ParseChecksumRecord(record.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != record {
		t.Errorf("parsed %+v, want %+v", parsed, record)
	}
}
