// Package artifact manages the temporary files a conversion produces: the
// materialized upload, which never outlives its conversion, and the audio
// file, which lives until it is delivered once or swept.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/docspeak-go/internal/tts"
	"github.com/google/uuid"
)

var (
	// ErrArtifactNotFound is returned for ids that were never produced,
	// were already delivered or have expired.
	ErrArtifactNotFound = errors.New("audio file not found")
	// ErrInvalidExtension is returned for extensions that can't be used in a
	// file name.
	ErrInvalidExtension = errors.New("invalid artifact extension")
)

const (
	inputPrefix   = "input-"
	partialPrefix = ".partial-"
	claimSuffix   = ".claimed"
)

// audioTypes lists the audio extensions the store hands out with their
// content types.
var audioTypes = map[string]string{
	tts.FormatMP3: tts.ContentTypeFor(tts.FormatMP3),
	tts.FormatWAV: tts.ContentTypeFor(tts.FormatWAV),
}

// DefaultRoot is the storage directory used when none is configured.
func DefaultRoot() string {
	return filepath.Join(os.TempDir(), "docspeak")
}

// Ref identifies a stored audio artifact.
type Ref struct {
	// ID is the opaque artifact name, "<uuid>.<ext>".
	ID          string
	ContentType string
	Size        int64
}

// Store keeps artifacts in a single directory shared by concurrent
// conversions. Names are unique per call, so no locking is needed.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates the root directory if needed.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		root = DefaultRoot()
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the storage directory.
func (s *Store) Root() string {
	return s.root
}

// WithInput writes data to a new uniquely named file and calls fn with its
// path. The file is removed when WithInput returns, whether fn succeeds,
// fails or panics.
func (s *Store) WithInput(ctx context.Context, data []byte, ext string, fn func(path string) error) error {
	if !validExtension(ext) {
		return fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
	}

	f, err := os.CreateTemp(s.root, inputPrefix+"*."+ext)
	if err != nil {
		return fmt.Errorf("create input file: %w", err)
	}
	path := f.Name()

	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove input file", "path", path, "error", err)
		}
	}()

	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("write input file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(path)
}

// SaveAudio stores data under a fresh id. The file appears under its final
// name only once fully written.
func (s *Store) SaveAudio(data []byte, ext string) (Ref, error) {
	contentType, ok := audioTypes[ext]
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q is not an audio type", ErrInvalidExtension, ext)
	}

	f, err := os.CreateTemp(s.root, partialPrefix+"*")
	if err != nil {
		return Ref{}, fmt.Errorf("create audio file: %w", err)
	}
	tmp := f.Name()

	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp)
		return Ref{}, fmt.Errorf("write audio file: %w", err)
	}

	id := uuid.NewString() + "." + ext
	if err := os.Rename(tmp, s.path(id)); err != nil {
		os.Remove(tmp)
		return Ref{}, fmt.Errorf("publish audio file: %w", err)
	}

	s.logger.Debug("audio artifact stored", "id", id, "bytes", len(data))

	return Ref{ID: id, ContentType: contentType, Size: int64(len(data))}, nil
}

// Claim takes exclusive ownership of an artifact for delivery. Exactly one
// caller can claim a given id; everyone else gets ErrArtifactNotFound.
func (s *Store) Claim(id string) (*Delivery, error) {
	contentType, ok := parseID(id)
	if !ok {
		return nil, ErrArtifactNotFound
	}

	claimed := s.path(id) + claimSuffix
	if err := os.Rename(s.path(id), claimed); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("claim artifact: %w", err)
	}

	f, err := os.Open(claimed)
	if err != nil {
		os.Remove(claimed)
		return nil, fmt.Errorf("open artifact: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		os.Remove(claimed)
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	return &Delivery{
		ID:          id,
		ContentType: contentType,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		file:        f,
		path:        claimed,
	}, nil
}

// Stat describes an unclaimed artifact without taking it, for HEAD requests.
func (s *Store) Stat(id string) (Ref, time.Time, error) {
	contentType, ok := parseID(id)
	if !ok {
		return Ref{}, time.Time{}, ErrArtifactNotFound
	}
	info, err := os.Stat(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Ref{}, time.Time{}, ErrArtifactNotFound
		}
		return Ref{}, time.Time{}, fmt.Errorf("stat artifact: %w", err)
	}
	return Ref{ID: id, ContentType: contentType, Size: info.Size()}, info.ModTime(), nil
}

// Reclaim deletes an artifact that will not be delivered.
func (s *Store) Reclaim(id string) error {
	if _, ok := parseID(id); !ok {
		return ErrArtifactNotFound
	}
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrArtifactNotFound
		}
		return fmt.Errorf("reclaim artifact: %w", err)
	}
	return nil
}

// Sweep removes artifacts, claims, partial writes and inputs last modified
// before now minus maxAge. Files the store didn't create are left alone.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("read storage dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error

	for _, entry := range entries {
		if !entry.Type().IsRegular() || !s.owns(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, entry.Name())); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}

func (s *Store) owns(name string) bool {
	switch {
	case strings.HasPrefix(name, inputPrefix), strings.HasPrefix(name, partialPrefix):
		return true
	case strings.HasSuffix(name, claimSuffix):
		_, ok := parseID(strings.TrimSuffix(name, claimSuffix))
		return ok
	default:
		_, ok := parseID(name)
		return ok
	}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.root, id)
}

// parseID checks that id is "<uuid>.<audio ext>" and returns its content type.
func parseID(id string) (string, bool) {
	base, ext, ok := strings.Cut(id, ".")
	if !ok {
		return "", false
	}
	contentType, ok := audioTypes[ext]
	if !ok {
		return "", false
	}
	u, err := uuid.Parse(base)
	if err != nil || u.String() != base {
		return "", false
	}
	return contentType, true
}

func validExtension(ext string) bool {
	if ext == "" || len(ext) > 16 {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Delivery is a claimed artifact being sent to a client. Close must be
// called once the send is over; it removes the file.
type Delivery struct {
	ID          string
	ContentType string
	Size        int64
	ModTime     time.Time

	file *os.File
	path string
	once sync.Once
}

var _ io.ReadCloser = (*Delivery)(nil)

// Read reads the audio payload.
func (d *Delivery) Read(p []byte) (int, error) {
	return d.file.Read(p)
}

// Close closes and deletes the claimed file. Only the first call does
// anything; a file already gone is not an error.
func (d *Delivery) Close() error {
	var err error
	d.once.Do(func() {
		cerr := d.file.Close()
		rerr := os.Remove(d.path)
		if errors.Is(rerr, os.ErrNotExist) {
			rerr = nil
		}
		err = errors.Join(cerr, rerr)
	})
	return err
}
