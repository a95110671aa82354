// Package rewrite walks a remote file store depth-first and renames entries
// whose names violate Windows filename rules. Renaming a directory changes
// the remote path of everything beneath it, so the walk always descends
// through the path an entry is actually addressable under after its own
// rename, one listing per directory level.
package rewrite

import (
	"context"
	"path"

	"github.com/code1997/nextcloud-filename-sanitizer/internal/logging"
	"github.com/code1997/nextcloud-filename-sanitizer/internal/sanitize"
	"github.com/code1997/nextcloud-filename-sanitizer/internal/store"
)

// collisionSuffix is appended to a sanitized name when its target is taken.
// The retry happens once; a second collision is not resolved.
const collisionSuffix = "_1"

// Options selects the run mode. The zero value is the safe default:
// rename without overwriting, mutate for real.
type Options struct {
	// DryRun computes and logs renames without issuing any mutation.
	DryRun bool
	// Overwrite deletes a colliding destination and retakes its name
	// instead of suffixing. Destructive.
	Overwrite bool
}

// Rewriter traverses the store and applies the sanitization rules. Not safe
// for concurrent use; the walk is deliberately sequential because sibling
// renames would race on descendant addressing.
type Rewriter struct {
	store store.Store
	rules *sanitize.Rules
	opts  Options
	stats Stats
}

// New creates a Rewriter over st with the given rules and mode.
func New(st store.Store, rules *sanitize.Rules, opts Options) *Rewriter {
	return &Rewriter{store: st, rules: rules, opts: opts}
}

// Stats returns the counters accumulated so far.
func (r *Rewriter) Stats() *Stats {
	return &r.stats
}

// ProcessEntry sanitizes the final segment of p and renames the entry when
// the name changes. It returns the path the entry is addressable under
// afterwards; callers must use that, never p, to reach the entry's children.
// dir selects a recursive move so a directory's subtree travels with it.
func (r *Rewriter) ProcessEntry(ctx context.Context, p string, dir bool) string {
	r.stats.Visited++

	candidate := r.rules.Path(p)
	if candidate == p {
		logging.Debug("name already compliant", logging.String("path", p))
		r.stats.Skipped++
		return p
	}

	if r.opts.DryRun {
		logging.Info("would rename", logging.String("from", p), logging.String("to", candidate))
		r.stats.Renamed++
		r.stats.record(p, candidate)
		return candidate
	}

	status, err := r.store.Move(ctx, p, candidate, dir)
	switch status {
	case store.Moved:
		logging.Info("renamed", logging.String("from", p), logging.String("to", candidate))
		r.stats.Renamed++
		r.stats.record(p, candidate)
		return candidate
	case store.Collision:
		return r.resolveCollision(ctx, p, candidate, dir)
	default:
		// No rename took effect; descendants stay addressable under p.
		logging.Error("rename failed", logging.String("path", p), logging.Err(err))
		r.stats.Failed++
		return p
	}
}

// resolveCollision applies the conflict policy after a move hit an existing
// destination: suffix once by default, or clear the destination when
// overwrite mode is on.
func (r *Rewriter) resolveCollision(ctx context.Context, p, candidate string, dir bool) string {
	r.stats.Collisions++

	if r.opts.Overwrite {
		logging.Warn("conflict: overwriting existing entry", logging.String("path", candidate))
		if err := r.store.Delete(ctx, candidate); err != nil {
			logging.Error("overwrite failed", logging.String("path", candidate), logging.Err(err))
			r.stats.Failed++
			return p
		}
		status, err := r.store.Move(ctx, p, candidate, dir)
		if status != store.Moved {
			logging.Error("rename failed", logging.String("path", p), logging.Err(err))
			r.stats.Failed++
			return p
		}
		logging.Info("renamed", logging.String("from", p), logging.String("to", candidate))
		r.stats.Renamed++
		r.stats.record(p, candidate)
		return candidate
	}

	suffixed := candidate + collisionSuffix
	logging.Warn("conflict: destination exists, retrying with suffix",
		logging.String("taken", candidate), logging.String("to", suffixed))
	status, err := r.store.Move(ctx, p, suffixed, dir)
	if status != store.Moved {
		// Single-retry policy: a second collision, like any other failure,
		// leaves the entry in place.
		logging.Error("rename failed", logging.String("path", p), logging.Err(err))
		r.stats.Failed++
		return p
	}
	logging.Info("renamed", logging.String("from", p), logging.String("to", suffixed))
	r.stats.Renamed++
	r.stats.record(p, suffixed)
	return suffixed
}

// Walk processes every entry below root, depth-first, in listing order. The
// root itself is never renamed. A failed listing abandons that subtree only;
// the rest of the run continues.
func (r *Rewriter) Walk(ctx context.Context, root string) {
	entries, err := r.store.List(ctx, root)
	if err != nil {
		logging.Error("listing failed", logging.String("path", root), logging.Err(err))
		r.stats.ListFailures++
		return
	}

	for _, e := range entries {
		child := path.Join(root, e.Name)
		if e.Kind == store.KindDir {
			r.Walk(ctx, r.ProcessEntry(ctx, child, true))
		} else {
			r.ProcessEntry(ctx, child, false)
		}
	}
}
