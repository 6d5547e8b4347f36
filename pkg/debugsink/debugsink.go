// Package debugsink implements an optional observer: when enabled, the
// core writes one JSON file per non-retried 4xx, provider error, or
// streaming error to an operator-supplied directory. A failing sink
// never takes the request path down with it — every write happens on a
// single background goroutine, and a write that errors is logged and
// dropped rather than propagated.
//
// Grounded on _examples/digitallysavvy-go-ai/pkg/observability/mlflow/mlflow.go:
// a narrow, swappable observer behind a constructor (`New(Config)`) that
// wraps a background exporter, with every fallible step wrapped in
// "mlflow: ..." errors instead of panicking the caller. debugsink
// generalizes that shape from OTLP span export to flat JSON-file export,
// and adds the same single-writer-goroutine discipline for its own
// per-response stream state.
package debugsink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/sudip358/claude-route/pkg/neutral"
)

// Verbosity selects how much a Sink records per error.
type Verbosity int

const (
	// VerbosityErrorOnly writes one file per error, without chunk history.
	VerbosityErrorOnly Verbosity = 1
	// VerbosityWithChunks additionally includes every stream chunk seen
	// before the error, via the ChunkBuffer a caller attaches to a
	// request's context.
	VerbosityWithChunks Verbosity = 2
)

// ErrorRecord describes one error the core is about to surface to a
// caller, for the sink to persist.
type ErrorRecord struct {
	Time       time.Time          `json:"time"`
	Kind       neutral.ErrorKind  `json:"kind"`
	StatusCode int                `json:"status_code,omitempty"`
	Provider   string             `json:"provider,omitempty"`
	Message    string             `json:"message"`
	RequestID  string             `json:"request_id,omitempty"`
	Chunks     []neutral.StreamEvent `json:"chunks,omitempty"`
}

// Sink is implemented by every debug observer. The core holds one Sink
// for its lifetime; a disabled sink is simply Noop{}.
type Sink interface {
	RecordError(rec ErrorRecord)
	Close() error
}

// Noop discards every record. It is the default when no debug directory
// is configured, so call sites never need a nil check.
type Noop struct{}

func (Noop) RecordError(ErrorRecord) {}
func (Noop) Close() error            { return nil }

// FileSink writes one JSON file per ErrorRecord under Dir. Writes are
// queued to a single background goroutine so RecordError never blocks
// or panics the request path that calls it.
type FileSink struct {
	dir       string
	verbosity Verbosity

	queue chan ErrorRecord
	done  chan struct{}
	wg    sync.WaitGroup

	// logf receives a message for every write that fails; backed by the
	// logr.Logger passed to New, or a discard logger when none is given.
	logf func(format string, args ...any)
}

// New creates a FileSink rooted at dir, creating it if necessary, and
// starts its writer goroutine. Close must be called to drain pending
// writes before process exit. log receives write failures and dropped
// records at V(1); a zero-value logr.Logger falls back to logr.Discard(),
// matching pkg/proxyserver.NewServer's handling of Config.Log.
func New(dir string, verbosity Verbosity, log logr.Logger) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("debugsink: dir is required")
	}
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("debugsink: failed to create %s: %w", dir, err)
	}

	s := &FileSink{
		dir:       dir,
		verbosity: verbosity,
		queue:     make(chan ErrorRecord, 256),
		done:      make(chan struct{}),
		logf: func(format string, args ...any) {
			log.V(1).Info(fmt.Sprintf(format, args...))
		},
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

// RecordError enqueues rec for the writer goroutine. If the queue is
// full the record is dropped rather than blocking the caller — a
// saturated debug sink must never become a latency source on the
// request path.
func (s *FileSink) RecordError(rec ErrorRecord) {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	if s.verbosity < VerbosityWithChunks {
		rec.Chunks = nil
	}
	select {
	case s.queue <- rec:
	default:
		s.logf("debugsink: queue full, dropping record for kind=%s", rec.Kind)
	}
}

// Close stops accepting new records and waits for the writer goroutine
// to drain whatever was already queued.
func (s *FileSink) Close() error {
	close(s.queue)
	s.wg.Wait()
	return nil
}

func (s *FileSink) run() {
	defer s.wg.Done()
	for rec := range s.queue {
		if err := s.write(rec); err != nil {
			s.logf("debugsink: %v", err)
		}
	}
}

func (s *FileSink) write(rec ErrorRecord) error {
	name := fmt.Sprintf("%s-%s.json", rec.Time.UTC().Format("20060102T150405.000000000Z"), sanitizeKind(rec.Kind))
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal error record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func sanitizeKind(k neutral.ErrorKind) string {
	if k == "" {
		return "unknown"
	}
	return string(k)
}
