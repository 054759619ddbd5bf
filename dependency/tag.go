package dependency

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/keyedcache/genstore"
)

const kindTag = "tag"

var ErrNoGenStore = errors.New("dependency: tag dependency needs a generation store")

// Tag ties a value to one or more tags. Bumping any tag (Invalidate, or
// Cache.InvalidateTags) marks every value written before the bump as changed.
type Tag struct {
	Tags []string          `msgpack:"t"`
	Gens map[string]uint64 `msgpack:"g"`
}

func NewTag(tags ...string) *Tag { return &Tag{Tags: tags} }

func (*Tag) Kind() string { return kindTag }

func (t *Tag) Evaluate(ctx context.Context, env Env) (Dependency, error) {
	if env.Gens == nil {
		return nil, ErrNoGenStore
	}
	gens, err := env.Gens.SnapshotMany(ctx, t.Tags)
	if err != nil {
		return nil, fmt.Errorf("dependency: snapshot tags: %w", err)
	}
	return &Tag{Tags: append([]string(nil), t.Tags...), Gens: gens}, nil
}

func (t *Tag) Changed(ctx context.Context, env Env) (bool, error) {
	if env.Gens == nil {
		return true, ErrNoGenStore
	}
	now, err := env.Gens.SnapshotMany(ctx, t.Tags)
	if err != nil {
		return true, fmt.Errorf("dependency: snapshot tags: %w", err)
	}
	for _, tag := range t.Tags {
		if now[tag] != t.Gens[tag] {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate bumps every tag in gens. All tags are attempted; the returned
// error joins the failures.
func Invalidate(ctx context.Context, gens genstore.GenStore, tags ...string) error {
	if gens == nil {
		return ErrNoGenStore
	}
	var errs []error
	for _, tag := range tags {
		if _, err := gens.Bump(ctx, tag); err != nil {
			errs = append(errs, fmt.Errorf("bump %q: %w", tag, err))
		}
	}
	return errors.Join(errs...)
}
