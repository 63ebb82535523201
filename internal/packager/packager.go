// Package packager bundles a job's deliverables into a downloadable zip.
package packager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"

	"lpgen/internal/artifact"
	"lpgen/internal/metrics"
)

var ErrPackaging = errors.New("packaging failed")

// entryTime is stamped on every zip entry so repeated packaging of the
// same artifacts yields identical bytes.
var entryTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Bundle describes a packaged zip.
type Bundle struct {
	Path   string
	SHA256 string
	Size   int64
}

type Packager struct {
	dir string
}

func New(downloadsDir string) *Packager {
	return &Packager{dir: downloadsDir}
}

// BundlePath is the deterministic location of a job's bundle.
func (p *Packager) BundlePath(jobID string) string {
	return filepath.Join(p.dir, "download-"+jobID+".zip")
}

// Remove deletes a job's bundle if present.
func (p *Packager) Remove(jobID string) error {
	if err := os.Remove(p.BundlePath(jobID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func packagingErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPackaging, op, err)
}

// Package stages the job's markup, stylesheet, script and images in a
// scratch directory and zips them into the downloads directory. The
// scratch directory is removed on every exit path.
func (p *Packager) Package(ctx context.Context, scope *artifact.Scope) (Bundle, error) {
	names := []string{artifact.MarkupFile, artifact.StylesheetFile, artifact.ScriptFile}
	images, err := scope.List(artifact.ImagePattern)
	if err != nil {
		return Bundle{}, packagingErr("list images", err)
	}
	names = append(names, images...)
	sort.Strings(names)

	staging, err := os.MkdirTemp("", "lpgen-bundle-")
	if err != nil {
		return Bundle{}, packagingErr("create staging", err)
	}
	defer os.RemoveAll(staging)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return Bundle{}, packagingErr("stage", err)
		}
		data, err := scope.Read(name)
		if err != nil {
			return Bundle{}, packagingErr("read "+name, err)
		}
		if err := os.WriteFile(filepath.Join(staging, name), data, 0o644); err != nil {
			return Bundle{}, packagingErr("stage "+name, err)
		}
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return Bundle{}, packagingErr("create downloads dir", err)
	}
	tmp, err := os.CreateTemp(p.dir, ".download-*.zip.tmp")
	if err != nil {
		return Bundle{}, packagingErr("create bundle", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hash := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(tmp, hash)}
	if err := writeZip(counter, staging, names); err != nil {
		tmp.Close()
		return Bundle{}, packagingErr("write zip", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Bundle{}, packagingErr("sync bundle", err)
	}
	if err := tmp.Close(); err != nil {
		return Bundle{}, packagingErr("close bundle", err)
	}

	dest := p.BundlePath(scope.JobID())
	if err := os.Rename(tmpName, dest); err != nil {
		return Bundle{}, packagingErr("publish bundle", err)
	}

	metrics.RecordBundle(counter.n)
	return Bundle{Path: dest, SHA256: hex.EncodeToString(hash.Sum(nil)), Size: counter.n}, nil
}

func writeZip(w io.Writer, dir string, names []string) error {
	zw := zip.NewWriter(w)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := zipWriteFile(zw, name, data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func zipWriteFile(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTime,
	}
	hdr.SetMode(0o644)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
