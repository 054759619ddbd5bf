package keyedcache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNilProvider        = errors.New("keyedcache: provider is required")
	ErrNilCodec           = errors.New("keyedcache: codec is required")
	ErrSerializerConflict = errors.New("keyedcache: Serializer and DisableSerialization are mutually exclusive")
	ErrNilProducer        = errors.New("keyedcache: nil producer")
)

// InvalidateError lists the tags whose generation could not be bumped.
// Entries tagged with them may still be served.
type InvalidateError struct {
	Tags []string
	Errs []error // Errs[i] belongs to Tags[i]
}

func (e *InvalidateError) add(tag string, err error) {
	e.Tags = append(e.Tags, tag)
	e.Errs = append(e.Errs, err)
}

func (e *InvalidateError) Error() string {
	switch len(e.Tags) {
	case 0:
		return "invalidate tags: unknown error"
	case 1:
		return fmt.Sprintf("invalidate tag %q: gen bump failed: %v", e.Tags[0], e.Errs[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalidate %d tags failed:", len(e.Tags))
	for i, tag := range e.Tags {
		fmt.Fprintf(&b, " %q=%v;", tag, e.Errs[i])
	}
	return strings.TrimSuffix(b.String(), ";")
}

func (e *InvalidateError) Unwrap() []error {
	return e.Errs
}
