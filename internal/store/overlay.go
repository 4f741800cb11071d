package store

import (
	"context"
	"errors"
)

// Overlay reads through to a base Backend but keeps every write in memory,
// so a dry run sees real feeds and archives without changing them.
type Overlay struct {
	base  Backend
	Local *Memory
}

func NewOverlay(base Backend) *Overlay {
	return &Overlay{base: base, Local: NewMemory()}
}

func (o *Overlay) Get(ctx context.Context, path string) ([]byte, string, error) {
	data, sha, err := o.Local.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return o.base.Get(ctx, path)
	}
	return data, sha, err
}

// Put shadows path locally. The first write of a path shadows whatever the
// base holds, so the base sha is not checked.
func (o *Overlay) Put(ctx context.Context, path string, data []byte, sha, message string) error {
	if _, _, err := o.Local.Get(ctx, path); errors.Is(err, ErrNotFound) {
		sha = ""
	}
	return o.Local.Put(ctx, path, data, sha, message)
}
