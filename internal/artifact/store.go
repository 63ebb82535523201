// Package artifact gives every job an isolated directory for the files its
// pipeline produces. Job identifiers are validated as UUIDs and artifact
// names as single path elements, so a scope can never resolve outside its
// own directory.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrIO          = errors.New("artifact io failure")
	ErrInvalidID   = errors.New("invalid job id")
	ErrInvalidName = errors.New("invalid artifact name")
)

// Canonical artifact names shared by the stages, the executor and the
// packager.
const (
	MarkupFile     = "index.html"
	StylesheetFile = "style.css"
	ScriptFile     = "script.js"
	SnapshotFile   = "status.json"

	// ImageExt is the one extension generated images are written with.
	ImageExt     = ".png"
	ImagePattern = "placeholder_*" + ImageExt
)

// Store roots all job scopes under a single directory.
type Store struct {
	root string
}

// New creates a Store rooted at dir. The directory is created lazily by
// Open.
func New(dir string) *Store {
	return &Store{root: filepath.Clean(dir)}
}

// Root returns the directory all scopes live under.
func (s *Store) Root() string {
	return s.root
}

// Open returns the scope bound to jobID, creating its directory if needed.
func (s *Store) Open(jobID string) (*Scope, error) {
	if err := ValidateID(jobID); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create scope %s: %v", ErrIO, jobID, err)
	}
	return &Scope{jobID: jobID, dir: dir}, nil
}

// Remove deletes a job's scope and everything in it.
func (s *Store) Remove(jobID string) error {
	if err := ValidateID(jobID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, jobID)); err != nil {
		return fmt.Errorf("%w: remove scope %s: %v", ErrIO, jobID, err)
	}
	return nil
}

// ValidateID accepts only canonical UUID strings.
func ValidateID(jobID string) error {
	id, err := uuid.Parse(jobID)
	if err != nil || id.String() != jobID {
		return fmt.Errorf("%w: %q", ErrInvalidID, jobID)
	}
	return nil
}

// ValidateName rejects anything that is not a single, plain path element.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Scope is the working area of exactly one job.
type Scope struct {
	jobID string
	dir   string
}

func (sc *Scope) JobID() string { return sc.jobID }

func (sc *Scope) Dir() string { return sc.dir }

// Path returns the absolute location of a named artifact.
func (sc *Scope) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(sc.dir, name), nil
}

// Write atomically creates or replaces a named artifact: the content goes
// to a temp file in the same directory which is then renamed into place.
func (sc *Scope) Write(name string, content []byte) error {
	path, err := sc.Path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(sc.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrIO, name, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(content); err != nil {
		cleanup()
		return fmt.Errorf("%w: write %s: %v", ErrIO, name, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: sync %s: %v", ErrIO, name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrIO, name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: chmod %s: %v", ErrIO, name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", ErrIO, name, err)
	}
	return nil
}

// WriteString is a convenience wrapper around Write.
func (sc *Scope) WriteString(name, content string) error {
	return sc.Write(name, []byte(content))
}

// Read returns the content of a named artifact.
func (sc *Scope) Read(name string) ([]byte, error) {
	path, err := sc.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, name, err)
	}
	return data, nil
}

// ReadString is a convenience wrapper around Read.
func (sc *Scope) ReadString(name string) (string, error) {
	data, err := sc.Read(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Exists reports whether a named artifact is present.
func (sc *Scope) Exists(name string) bool {
	path, err := sc.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// List returns the sorted names of artifacts matching a glob pattern.
// In-flight temp files from Write are never reported.
func (sc *Scope) List(pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q", ErrInvalidName, pattern)
	}

	entries, err := os.ReadDir(sc.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", ErrIO, sc.jobID, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if ok, _ := filepath.Match(pattern, e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
