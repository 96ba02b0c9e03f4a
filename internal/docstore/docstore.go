// Package docstore is the hierarchical document store the sync layer mirrors.
//
// Documents live in collections and are addressed by slash-separated paths:
// collection paths have an odd number of segments, document paths an even number.
// Every backend pushes full snapshots: a subscription fires once with the current
// state and again after each change, and never delivers an incremental patch.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
)

type Document struct {
	ID     string
	Fields map[string]any
}

type DocSnapshot struct {
	Path   string
	ID     string
	Exists bool
	Fields map[string]any
}

type QuerySnapshot struct {
	Path string
	Docs []Document
}

type (
	DocHandler   func(DocSnapshot)
	QueryHandler func(QuerySnapshot)
	// ErrorHandler may be nil, in which case subscription errors are dropped.
	ErrorHandler func(error)
)

type Store interface {
	Set(ctx context.Context, docPath string, fields map[string]any, opts ...SetOption) error
	Update(ctx context.Context, docPath string, fields map[string]any) error
	Delete(ctx context.Context, docPath string) error
	SubscribeDoc(ctx context.Context, docPath string, onNext DocHandler, onErr ErrorHandler) error
	SubscribeCollection(ctx context.Context, collPath string, onNext QueryHandler, onErr ErrorHandler) error
}

type setOptions struct {
	merge bool
}

type SetOption func(*setOptions)

// Merge makes Set shallow-merge into an existing document instead of replacing it.
func Merge() SetOption {
	return func(o *setOptions) { o.merge = true }
}

func applySetOptions(opts []SetOption) setOptions {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// IsMerge reports whether opts request a merging Set. Backends outside this
// package use it to honor Merge.
func IsMerge(opts ...SetOption) bool {
	return applySetOptions(opts).merge
}

var (
	ErrNotFound         = errors.New("docstore: document not found")
	ErrPermissionDenied = errors.New("docstore: permission denied")
	ErrInvalidPath      = errors.New("docstore: invalid path")
	ErrInvalidArgument  = errors.New("docstore: invalid argument")
	ErrUnavailable      = errors.New("docstore: unavailable")
)

// Code maps err to a short machine-readable code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission-denied"
	case errors.Is(err, ErrInvalidPath), errors.Is(err, ErrInvalidArgument):
		return "invalid-argument"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline-exceeded"
	default:
		return "unknown"
	}
}

// ErrorForCode is the inverse of Code for the sentinel errors.
func ErrorForCode(code string) error {
	switch code {
	case "not-found":
		return ErrNotFound
	case "permission-denied":
		return ErrPermissionDenied
	case "invalid-argument":
		return ErrInvalidArgument
	case "unavailable":
		return ErrUnavailable
	default:
		return nil
	}
}

// Normalize returns a deep copy of fields with JSON value types (float64 numbers,
// []any, map[string]any), which is what every backend hands back on read.
func Normalize(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Join(ErrInvalidArgument, err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Join(ErrInvalidArgument, err)
	}
	return out, nil
}

// ToFields converts a JSON-tagged value into a field map.
func ToFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrInvalidArgument, err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Join(ErrInvalidArgument, err)
	}
	return out, nil
}

func mergeFields(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

func sortDocs(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
