package page

import (
	"context"

	"github.com/cgast/agwait/pkg/wait"
)

// File re-reads a fixture on every query, so edits made to the file while a
// wait is running are observed on the next tick.
type File struct {
	path string
}

// NewFile returns queries backed by the fixture at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// IsEnabled is a wait.Query over the current fixture contents.
func (f *File) IsEnabled(ctx context.Context, selector string) (wait.State[bool], error) {
	p, err := Load(f.path, nil)
	if err != nil {
		return wait.State[bool]{}, err
	}
	return p.IsEnabled(ctx, selector)
}

// Value is a wait.Query over the current fixture contents.
func (f *File) Value(ctx context.Context, selector string) (wait.State[string], error) {
	p, err := Load(f.path, nil)
	if err != nil {
		return wait.State[string]{}, err
	}
	return p.Value(ctx, selector)
}
