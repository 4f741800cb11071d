// Package store persists JSON documents and images in a remote repository,
// using content fingerprints (SHA) for optimistic concurrency.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
)

var (
	// ErrNotFound reports that no content exists at the path.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports that the SHA supplied with a write is no longer current.
	ErrConflict = errors.New("sha conflict")
	// ErrMalformed reports a stored document that does not decode.
	ErrMalformed = errors.New("malformed document")
)

// Backend is raw content access. Put with an empty sha creates the file;
// otherwise the sha must match the current content or ErrConflict is returned.
type Backend interface {
	Get(ctx context.Context, path string) (data []byte, sha string, err error)
	Put(ctx context.Context, path string, data []byte, sha, message string) error
}

// Documents is the typed view over a Backend used by the rest of the program.
// None of its methods return errors: failures are logged and reported as
// false or nil so callers can degrade.
type Documents interface {
	Load(ctx context.Context, path string, v any) (found bool, err error)
	LoadJSON(ctx context.Context, path string, v any) bool
	SaveJSON(ctx context.Context, path string, v any, message string) bool
	LoadImage(ctx context.Context, path string) []byte
	SaveImage(ctx context.Context, path string, data []byte, message string) bool
}

type Store struct {
	backend Backend

	// afterRead runs between the SHA read and the write; tests use it to
	// interleave a competing writer.
	afterRead func(path string)
}

func New(b Backend) *Store {
	return &Store{backend: b}
}

// Load decodes the document at path into v. An absent document is
// (false, nil); read and decode failures are returned and leave v untouched.
func (s *Store) Load(ctx context.Context, path string, v any) (bool, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false, fmt.Errorf("load %s: needs a non-nil pointer", path)
	}

	data, _, err := s.backend.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", path, err)
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return true, fmt.Errorf("load %s: %w: %v", path, ErrMalformed, err)
	}
	rv.Elem().Set(fresh.Elem())
	return true, nil
}

// LoadJSON is Load for callers that only degrade: any failure is logged and
// reported as false.
func (s *Store) LoadJSON(ctx context.Context, path string, v any) bool {
	found, err := s.Load(ctx, path, v)
	if err != nil {
		slog.Warn("Failed to load document", "path", path, "error", err)
		return false
	}
	return found
}

// SaveJSON writes v at path using the SHA read immediately before the write.
func (s *Store) SaveJSON(ctx context.Context, path string, v any, message string) bool {
	data, err := Encode(v)
	if err != nil {
		slog.Error("Failed to encode document", "path", path, "error", err)
		return false
	}
	return s.put(ctx, path, data, message)
}

func (s *Store) LoadImage(ctx context.Context, path string) []byte {
	data, _, err := s.backend.Get(ctx, path)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("Failed to load image", "path", path, "error", err)
		}
		return nil
	}
	return data
}

func (s *Store) SaveImage(ctx context.Context, path string, data []byte, message string) bool {
	if len(data) == 0 {
		return false
	}
	return s.put(ctx, path, data, message)
}

func (s *Store) put(ctx context.Context, path string, data []byte, message string) bool {
	_, sha, err := s.backend.Get(ctx, path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		slog.Warn("Failed to read current sha", "path", path, "error", err)
		return false
	}
	if s.afterRead != nil {
		s.afterRead(path)
	}

	if err := s.backend.Put(ctx, path, data, sha, message); err != nil {
		if errors.Is(err, ErrConflict) {
			slog.Warn("Write rejected, content changed since read", "path", path)
		} else {
			slog.Warn("Failed to save", "path", path, "error", err)
		}
		return false
	}
	slog.Debug("Saved", "path", path, "bytes", len(data), "message", message)
	return true
}

// Encode renders v as 4-space indented JSON with HTML escaping disabled, so
// non-ASCII text and markup characters are stored verbatim.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
