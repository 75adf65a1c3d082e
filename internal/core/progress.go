package core

import "context"

// Reporter delivers progress samples over a channel owned by the caller.
//
// Sends block until the consumer receives or ctx is done, so a consumer that
// wants to throttle display must still drain the channel. Processed never goes
// backwards: a sample lower than the previous one is raised to it. A nil
// channel discards every sample.
type Reporter struct {
	ch   chan<- Progress
	last int64
}

// NewReporter wraps ch. ch may be nil.
func NewReporter(ch chan<- Progress) *Reporter {
	return &Reporter{ch: ch}
}

// Report sends p unless ctx is done first.
func (r *Reporter) Report(ctx context.Context, p Progress) {
	if r == nil || r.ch == nil {
		return
	}
	if p.Processed < r.last {
		p.Processed = r.last
	}
	r.last = p.Processed

	select {
	case r.ch <- p:
	case <-ctx.Done():
	}
}
