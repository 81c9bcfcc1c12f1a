package events

import (
	"context"
	"encoding/json"
	"sync"
)

// Recorder keeps published envelopes in memory. Tests use it in place of Kafka.
type Recorder struct {
	mu     sync.Mutex
	Events []Envelope
	Err    error
}

func (r *Recorder) Publish(_ context.Context, _, _ string, evt Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, evt)
	return nil
}

// Types returns the event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.EventType)
	}
	return out
}

// Decode unmarshals the data of the i-th envelope into v.
func (r *Recorder) Decode(i int, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.Unmarshal(r.Events[i].Data, v)
}
