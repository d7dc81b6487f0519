package transport

import (
	"errors"
	"testing"

	derrors "github.com/zzenonn/zdeliver/internal/errors"
)

func TestParseHost(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected HostConfig
		wantErr  bool
	}{
		{
			name:     "empty is local",
			input:    "",
			expected: HostConfig{Raw: "", Kind: LocalKind},
		},
		{
			name:     "localhost",
			input:    " localhost ",
			expected: HostConfig{Raw: "localhost", Kind: LocalKind},
		},
		{
			name:     "plain hostname defaults to ssh",
			input:    "edclpdsftp.cr.usgs.gov",
			expected: HostConfig{Raw: "edclpdsftp.cr.usgs.gov", Kind: SSHKind, Host: "edclpdsftp.cr.usgs.gov"},
		},
		{
			name:     "user host and port",
			input:    "espa@cache01:2222",
			expected: HostConfig{Raw: "espa@cache01:2222", Kind: SSHKind, User: "espa", Host: "cache01", Port: 2222},
		},
		{
			name:     "ssh scheme",
			input:    "ssh://espa@10.0.0.5",
			expected: HostConfig{Raw: "ssh://espa@10.0.0.5", Kind: SSHKind, User: "espa", Host: "10.0.0.5"},
		},
		{
			name:     "ipv6 with port",
			input:    "[::1]:22",
			expected: HostConfig{Raw: "[::1]:22", Kind: SSHKind, Host: "::1", Port: 22},
		},
		{
			name:     "s3 bucket with prefix",
			input:    "s3://espa-orders/deliveries/",
			expected: HostConfig{Raw: "s3://espa-orders/deliveries/", Kind: S3Kind, Bucket: "espa-orders", Prefix: "deliveries"},
		},
		{
			name:     "gcs bucket",
			input:    "gs://espa-orders",
			expected: HostConfig{Raw: "gs://espa-orders", Kind: GCSKind, Bucket: "espa-orders"},
		},
		{name: "empty bucket", input: "s3://", wantErr: true},
		{name: "unknown scheme", input: "ftp://host", wantErr: true},
		{name: "bad port", input: "host:99999", wantErr: true},
		{name: "empty user", input: "@host", wantErr: true},
		{name: "path in host", input: "host/dir", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHost(tt.input)
			if tt.wantErr {
				if !errors.Is(err, derrors.ErrInvalidHost) {
					t.Fatalf("ParseHost(%q) error = %v, want ErrInvalidHost", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHost(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseHost(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHostConfig_Key(t *testing.T) {
	a, _ := ParseHost("espa@cache01:22")
	b, _ := ParseHost("ssh://espa@cache01:22")
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %q vs %q", a.Key(), b.Key())
	}

	l1, _ := ParseHost("")
	l2, _ := ParseHost("localhost")
	if l1.Key() != l2.Key() {
		t.Errorf("local keys differ: %q vs %q", l1.Key(), l2.Key())
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"", "/data/orders/a.tar.gz", "data/orders/a.tar.gz"},
		{"deliveries", "/data/orders/a.tar.gz", "deliveries/data/orders/a.tar.gz"},
		{"deliveries", "relative/a.tar.gz", "deliveries/relative/a.tar.gz"},
		{"", "/a/../b", "b"},
	}
	for _, tt := range tests {
		if got := objectKey(tt.prefix, tt.path); got != tt.want {
			t.Errorf("objectKey(%q, %q) = %q, want %q", tt.prefix, tt.path, got, tt.want)
		}
	}
}
