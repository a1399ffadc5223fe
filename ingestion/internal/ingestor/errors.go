package ingestor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"

	"github.com/malbeclabs/dataprep/ingestion/internal/dataset"
)

type Kind string

const (
	KindSourceNotFound Kind = "source_not_found"
	KindParse          Kind = "parse_error"
	KindWrite          Kind = "write_error"
	KindSplit          Kind = "split_error"
	KindPublish        Kind = "publish_error"
	KindConfig         Kind = "config_error"
)

// IngestionError is the only error type returned by Ingestor. Operation names
// the step that failed and Cause holds the underlying error.
type IngestionError struct {
	Kind      Kind
	Operation string
	Message   string
	Cause     error

	context map[string]any
}

func NewError(kind Kind, operation, message string, cause error) *IngestionError {
	return &IngestionError{
		Kind:      kind,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

var (
	ErrSourceNotFound = &IngestionError{Kind: KindSourceNotFound}
	ErrParse          = &IngestionError{Kind: KindParse}
	ErrWrite          = &IngestionError{Kind: KindWrite}
	ErrSplit          = &IngestionError{Kind: KindSplit}
	ErrPublish        = &IngestionError{Kind: KindPublish}
	ErrConfig         = &IngestionError{Kind: KindConfig}
)

func (e *IngestionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Operation, e.Kind, e.Message)
}

func (e *IngestionError) Unwrap() error {
	return e.Cause
}

// Is matches another IngestionError of the same kind. A target without an
// operation, such as the package sentinels, matches any operation.
func (e *IngestionError) Is(target error) bool {
	t, ok := target.(*IngestionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Operation == "" || t.Operation == e.Operation)
}

// WithContext returns a copy of e with key set to value.
func (e *IngestionError) WithContext(key string, value any) *IngestionError {
	cloned := maps.Clone(e.context)
	if cloned == nil {
		cloned = make(map[string]any, 1)
	}
	cloned[key] = value
	return &IngestionError{
		Kind:      e.Kind,
		Operation: e.Operation,
		Message:   e.Message,
		Cause:     e.Cause,
		context:   cloned,
	}
}

func (e *IngestionError) Context() map[string]any {
	return maps.Clone(e.context)
}

func (e *IngestionError) ContextValue(key string) any {
	return e.context[key]
}

func (e *IngestionError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", string(e.Kind)),
		slog.String("operation", e.Operation),
		slog.String("message", e.Message),
	}
	for _, key := range slices.Sorted(maps.Keys(e.context)) {
		attrs = append(attrs, slog.Any(key, e.context[key]))
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}
	return slog.GroupValue(attrs...)
}

// KindOf returns the kind of the first IngestionError in err's chain, or the
// empty kind.
func KindOf(err error) Kind {
	var ie *IngestionError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

func readError(path string, err error) *IngestionError {
	if errors.Is(err, dataset.ErrMalformed) {
		return NewError(KindParse, opReadSource, "source is not a parseable CSV table", err).
			WithContext("source_path", path)
	}
	msg := "failed to open source file"
	if errors.Is(err, fs.ErrNotExist) {
		msg = "source file does not exist"
	}
	return NewError(KindSourceNotFound, opReadSource, msg, err).
		WithContext("source_path", path)
}
