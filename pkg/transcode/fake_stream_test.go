package transcode

import "github.com/sudip358/claude-route/pkg/neutral"

// fakeStream replays a fixed slice of events, the pattern
// _examples/digitallysavvy-go-ai uses for fakes across its provider test
// suites (a canned response driven through Next()).
type fakeStream struct {
	events []neutral.StreamEvent
	pos    int
}

func (f *fakeStream) Next() (neutral.StreamEvent, bool, error) {
	if f.pos >= len(f.events) {
		return neutral.StreamEvent{}, false, nil
	}
	ev := f.events[f.pos]
	f.pos++
	return ev, true, nil
}

func (f *fakeStream) Close() error { return nil }
