// Package store defines the contract between the tree rewriter and the
// remote file store it mutates.
package store

import "context"

// Kind tags a listed entry as a file or a directory.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "directory"
	}
	return "file"
}

// Entry is one child of a listed directory. Entries carry no identity of
// their own; an entry is addressed by the parent path it was listed under
// plus its name.
type Entry struct {
	Name string
	Kind Kind
}

// MoveStatus is the outcome of a move. A collision is a distinct outcome,
// not an error type: callers branch on the status and use the error only
// for reporting.
type MoveStatus int

const (
	// Moved means the entry now lives at the destination path.
	Moved MoveStatus = iota
	// Collision means the destination already exists; nothing changed.
	Collision
	// Failed covers every other failure (connectivity, permission,
	// missing source); nothing changed.
	Failed
)

func (s MoveStatus) String() string {
	switch s {
	case Moved:
		return "moved"
	case Collision:
		return "collision"
	default:
		return "failed"
	}
}

// Store is the remote file store the rewriter walks and mutates. Paths are
// slash-separated, unescaped, and relative to the store root; implementations
// own any transport escaping.
type Store interface {
	// List returns the direct children of path, reflecting current server
	// state. Order is whatever the server returned.
	List(ctx context.Context, path string) ([]Entry, error)

	// Move renames src to dst, relocating the whole subtree when recursive
	// is set and src is a directory. The error is nil for Moved and carries
	// detail for Collision and Failed.
	Move(ctx context.Context, src, dst string, recursive bool) (MoveStatus, error)

	// Delete removes the entry at path.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an entry exists at path.
	Exists(ctx context.Context, path string) (bool, error)
}
