package proxyserver

import (
	"io"
	"net/http"

	"github.com/sudip358/claude-route/pkg/debugsink"
	"github.com/sudip358/claude-route/pkg/neutral"
)

// recordingStream decorates a driver's event stream, mirroring every
// pulled event into a ChunkBuffer before handing it to the transcoder.
// The buffer is a no-op unless the debug sink is running at
// VerbosityWithChunks, so this wrapper costs nothing in the common case.
type recordingStream struct {
	inner neutral.EventStream
	buf   *debugsink.ChunkBuffer
}

func (r *recordingStream) Next() (neutral.StreamEvent, bool, error) {
	ev, ok, err := r.inner.Next()
	if ok {
		r.buf.Record(ev)
	}
	return ev, ok, err
}

func (r *recordingStream) Close() error { return r.inner.Close() }

// flushingWriter flushes the underlying ResponseWriter after every write
// so each SSE frame reaches the client as soon as it is produced, the
// same per-chunk flush discipline as handleStream in
// _examples/digitallysavvy-go-ai/examples/http-server/main.go.
type flushingWriter struct {
	w io.Writer
	f http.Flusher
}

func (fw flushingWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}
