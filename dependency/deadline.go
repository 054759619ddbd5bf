package dependency

import (
	"context"
	"errors"
	"time"
)

const kindDeadline = "deadline"

// Deadline is changed once the clock reaches At. Unlike a TTL it is checked
// by the cache itself, so it also works with backends that ignore per-entry
// expiry (bigcache).
type Deadline struct {
	At time.Time `msgpack:"at"`
}

func NewDeadline(at time.Time) *Deadline { return &Deadline{At: at} }

// NewDeadlineIn is a Deadline d from now.
func NewDeadlineIn(d time.Duration) *Deadline { return &Deadline{At: time.Now().Add(d)} }

func (*Deadline) Kind() string { return kindDeadline }

func (d *Deadline) Evaluate(_ context.Context, _ Env) (Dependency, error) {
	if d.At.IsZero() {
		return nil, errors.New("dependency: deadline without a time")
	}
	return &Deadline{At: d.At}, nil
}

func (d *Deadline) Changed(_ context.Context, env Env) (bool, error) {
	return !env.now().Before(d.At), nil
}
