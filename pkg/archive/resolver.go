// Package archive turns an uploaded collectinfo blob of unknown format into
// an extracted directory tree.
package archive

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrNoDecoder is returned once every extraction strategy has been exhausted.
var ErrNoDecoder = errors.New("no archive decoder matched")

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	ustarMagic = []byte("usta")
	zipMagic   = []byte("PK")
)

type decoder struct {
	name      string
	unarchive func(src, dest string) error
}

func tarDecoders() []decoder {
	return []decoder{
		{"tar", func(src, dest string) error {
			t := archiver.NewTar()
			t.ImplicitTopLevelFolder = false
			return t.Unarchive(src, dest)
		}},
		{"tar.gz", func(src, dest string) error {
			tgz := archiver.NewTarGz()
			tgz.Tar.ImplicitTopLevelFolder = false
			return tgz.Unarchive(src, dest)
		}},
		{"tar.bz2", func(src, dest string) error {
			tbz := archiver.NewTarBz2()
			tbz.Tar.ImplicitTopLevelFolder = false
			return tbz.Unarchive(src, dest)
		}},
		{"tar.xz", func(src, dest string) error {
			txz := archiver.NewTarXz()
			txz.Tar.ImplicitTopLevelFolder = false
			return txz.Unarchive(src, dest)
		}},
	}
}

func zipDecoder() decoder {
	return decoder{"zip", func(src, dest string) error {
		return archiver.NewZip().Unarchive(src, dest)
	}}
}

// Resolve extracts the archive at src into a fresh "extracted" subdirectory
// of scratchDir and returns that directory. The input file is never mutated.
//
// Strategies are tried in priority order and an individual decoder failing is
// an expected outcome, not an error: tar family first (this also covers
// extensionless files whose content is tar-compatible), then zip, then, for
// extensionless files only, a magic-byte sniff that retries the matching
// decoder. Only after all strategies fail does Resolve return ErrNoDecoder,
// wrapped with each strategy's failure.
func Resolve(src string, scratchDir string) (string, error) {
	dest := filepath.Join(scratchDir, "extracted")
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create extraction directory")
	}

	var attempts *multierror.Error

	candidates := append(tarDecoders(), zipDecoder())
	for _, d := range candidates {
		if err := d.unarchive(src, dest); err == nil {
			klog.V(1).Infof("extracted %s as %s", filepath.Base(src), d.name)
			return dest, nil
		} else {
			klog.V(2).Infof("%s extraction of %s failed: %v", d.name, filepath.Base(src), err)
			attempts = multierror.Append(attempts, errors.Wrap(err, d.name))
		}
	}

	// Extensionless files get one more chance: pick a decoder by content.
	if filepath.Ext(src) == "" {
		if d, ok := sniffDecoder(src); ok {
			if err := d.unarchive(src, dest); err == nil {
				klog.V(1).Infof("extracted extensionless %s as %s by magic bytes", filepath.Base(src), d.name)
				return dest, nil
			} else {
				attempts = multierror.Append(attempts, errors.Wrapf(err, "%s by magic bytes", d.name))
			}
		}
	}

	return "", errors.Wrapf(ErrNoDecoder, "could not extract %s: %v", filepath.Base(src), attempts.ErrorOrNil())
}

// sniffDecoder inspects the first bytes of the file. Gzip magic or a ustar
// marker implies the tar family, PK implies zip.
func sniffDecoder(src string) (decoder, bool) {
	f, err := os.Open(src)
	if err != nil {
		return decoder{}, false
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := f.Read(head)
	if err != nil || n < 2 {
		return decoder{}, false
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		tgz := archiver.NewTarGz()
		tgz.Tar.ImplicitTopLevelFolder = false
		return decoder{"tar.gz", func(src, dest string) error { return tgz.Unarchive(src, dest) }}, true
	case bytes.HasPrefix(head, ustarMagic):
		t := archiver.NewTar()
		t.ImplicitTopLevelFolder = false
		return decoder{"tar", func(src, dest string) error { return t.Unarchive(src, dest) }}, true
	case bytes.HasPrefix(head, zipMagic):
		return zipDecoder(), true
	}
	return decoder{}, false
}
