package packager

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/fluxcd/pkg/tar"
	. "github.com/onsi/gomega"

	"github.com/zzenonn/zdeliver/internal/checksum"
	"github.com/zzenonn/zdeliver/internal/domain"
	derrors "github.com/zzenonn/zdeliver/internal/errors"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestPackage_SingleFile(t *testing.T) {
	g := NewWithT(t)

	src := writeFiles(t, map[string]string{"a.txt": "hello"})
	dst := t.TempDir()

	artifact, err := New(WithQuiet(true)).Package(context.Background(), src, dst, "order123")
	g.Expect(err).ToNot(HaveOccurred())

	g.Expect(artifact.Path).To(Equal(filepath.Join(dst, "order123.tar.gz")))
	g.Expect(artifact.ChecksumPath).To(Equal(filepath.Join(dst, "order123.cksum")))
	g.Expect(artifact.Checksum.Name).To(Equal("order123.tar.gz"))

	fi, err := os.Stat(artifact.Path)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(fi.Mode().Perm()).To(Equal(ArtifactMode))
	g.Expect(artifact.Checksum.Size).To(Equal(fi.Size()))

	// The uncompressed tarball does not survive compression.
	g.Expect(filepath.Join(dst, "order123.tar")).ToNot(BeAnExistingFile())

	sidecar, err := os.ReadFile(artifact.ChecksumPath)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(sidecar)).To(Equal(artifact.Checksum.String()))

	independent, err := checksum.File(artifact.Path)
	g.Expect(err).ToNot(HaveOccurred())
	parsed, err := domain.ParseChecksumRecord(string(sidecar))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(parsed.Matches(independent)).To(BeTrue())

	names, err := List(artifact.Path)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(names).To(ConsistOf("a.txt"))
}

func TestPackage_RoundTrip(t *testing.T) {
	g := NewWithT(t)

	files := map[string]string{
		"LT50290302011001PAC01_sr_band1.img": "band one",
		"LT50290302011001PAC01.xml":          "<metadata/>",
		"stats/sr_band1.stats":               "min=0 max=10000",
		"browse/nested/deep.png":             string(bytes.Repeat([]byte{0, 1, 2, 255}, 4096)),
	}
	src := writeFiles(t, files)
	dst := t.TempDir()

	artifact, err := New(WithQuiet(true)).Package(context.Background(), src, dst, "LT50290302011001-SC20140101")
	g.Expect(err).ToNot(HaveOccurred())

	f, err := os.Open(artifact.Path)
	g.Expect(err).ToNot(HaveOccurred())
	defer f.Close()

	out := t.TempDir()
	g.Expect(tar.Untar(f, out, tar.WithMaxUntarSize(-1))).To(Succeed())

	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(out, name))
		g.Expect(err).ToNot(HaveOccurred(), name)
		g.Expect(string(got)).To(Equal(content), name)
	}

	names, err := List(artifact.Path)
	g.Expect(err).ToNot(HaveOccurred())
	sort.Strings(names)
	g.Expect(names).To(ContainElements("stats/", "stats/sr_band1.stats", "browse/nested/deep.png"))
	for _, name := range names {
		g.Expect(filepath.IsAbs(name)).To(BeFalse(), name)
	}
}

func TestPackage_RepeatedCallsLeaveOnePackage(t *testing.T) {
	g := NewWithT(t)

	src := writeFiles(t, map[string]string{"a.txt": "hello"})
	dst := t.TempDir()
	p := New(WithQuiet(true))

	// Leftovers from an earlier, interrupted attempt.
	g.Expect(os.WriteFile(filepath.Join(dst, "order123.tar"), []byte("partial"), 0o644)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(dst, "order123.tar.gz.tmp"), []byte("partial"), 0o644)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(dst, "unrelated.tar.gz"), []byte("keep"), 0o644)).To(Succeed())

	first, err := p.Package(context.Background(), src, dst, "order123")
	g.Expect(err).ToNot(HaveOccurred())
	second, err := p.Package(context.Background(), src, dst, "order123")
	g.Expect(err).ToNot(HaveOccurred())

	entries, err := os.ReadDir(dst)
	g.Expect(err).ToNot(HaveOccurred())
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	g.Expect(names).To(ConsistOf("order123.tar.gz", "order123.cksum", "unrelated.tar.gz"))
	g.Expect(second.Checksum.Matches(first.Checksum)).To(BeTrue())
}

func TestPackage_Errors(t *testing.T) {
	src := writeFiles(t, map[string]string{"a.txt": "hello"})

	tests := []struct {
		name     string
		source   string
		setup    func(t *testing.T, dst string)
		product  string
		wantStep string
		wantIs   error
	}{
		{
			name:     "empty product name",
			source:   src,
			product:  "",
			wantStep: "validate",
			wantIs:   derrors.ErrEmptyProductName,
		},
		{
			name:     "source is not a directory",
			source:   filepath.Join(src, "a.txt"),
			product:  "order123",
			wantStep: "validate",
			wantIs:   derrors.ErrNotDirectory,
		},
		{
			name:     "source does not exist",
			source:   filepath.Join(src, "missing"),
			product:  "order123",
			wantStep: "validate",
			wantIs:   os.ErrNotExist,
		},
		{
			name:    "stale entry cannot be removed",
			source:  src,
			product: "order123",
			setup: func(t *testing.T, dst string) {
				stale := filepath.Join(dst, "order123-old", "nested")
				if err := os.MkdirAll(stale, 0o755); err != nil {
					t.Fatal(err)
				}
			},
			wantStep: "cleanup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			dst := t.TempDir()
			if tt.setup != nil {
				tt.setup(t, dst)
			}

			_, err := New(WithQuiet(true)).Package(context.Background(), tt.source, dst, tt.product)
			g.Expect(err).To(HaveOccurred())

			var pkgErr *derrors.PackagingError
			g.Expect(errors.As(err, &pkgErr)).To(BeTrue())
			g.Expect(pkgErr.Step).To(Equal(tt.wantStep))
			if tt.wantIs != nil {
				g.Expect(errors.Is(err, tt.wantIs)).To(BeTrue(), err.Error())
			}

			g.Expect(filepath.Join(dst, "order123.tar.gz")).ToNot(BeAnExistingFile())
			g.Expect(filepath.Join(dst, "order123.cksum")).ToNot(BeAnExistingFile())
		})
	}
}

func TestPackage_Cancelled(t *testing.T) {
	g := NewWithT(t)

	src := writeFiles(t, map[string]string{"a.txt": "hello"})
	dst := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(WithQuiet(true)).Package(ctx, src, dst, "order123")
	g.Expect(errors.Is(err, context.Canceled)).To(BeTrue())

	entries, err := os.ReadDir(dst)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(entries).To(BeEmpty())
}

func TestList_CorruptArchive(t *testing.T) {
	g := NewWithT(t)

	src := writeFiles(t, map[string]string{"a.txt": string(bytes.Repeat([]byte("x"), 10000))})
	dst := t.TempDir()
	artifact, err := New(WithQuiet(true)).Package(context.Background(), src, dst, "order123")
	g.Expect(err).ToNot(HaveOccurred())

	data, err := os.ReadFile(artifact.Path)
	g.Expect(err).ToNot(HaveOccurred())
	truncated := filepath.Join(t.TempDir(), "truncated.tar.gz")
	g.Expect(os.WriteFile(truncated, data[:len(data)/2], 0o644)).To(Succeed())

	_, err = List(truncated)
	g.Expect(err).To(HaveOccurred())

	notGzip := filepath.Join(t.TempDir(), "plain.tar.gz")
	g.Expect(os.WriteFile(notGzip, []byte("not a gzip stream"), 0o644)).To(Succeed())
	_, err = List(notGzip)
	g.Expect(err).To(HaveOccurred())
}
