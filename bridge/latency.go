package bridge

import (
	"sort"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-workerbridge/protocol"
)

// MessageLatency summarizes the time messages of one kind spent between
// being posted by the compute side, and being dispatched on the loop.
type MessageLatency struct {
	// Name is the message kind, or draw:<op> for draw messages.
	Name string
	// Count is the number of samples summarized, being at most the most
	// recent 1000.
	Count int
	Mean  time.Duration
	P50   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// latencyRecorder is confined to the loop.
type latencyRecorder struct {
	metrics map[string]*eventloop.LatencyMetrics
	now     func() time.Time
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{
		metrics: make(map[string]*eventloop.LatencyMetrics),
		now:     time.Now,
	}
}

func (x *latencyRecorder) record(env protocol.Envelope) {
	if env.Posted.IsZero() || env.Message == nil {
		return
	}
	name := string(env.Message.Kind())
	if draw, ok := env.Message.(protocol.Draw); ok && len(draw.Ops) != 0 {
		name += `:` + draw.Ops[0].Name()
	}
	m := x.metrics[name]
	if m == nil {
		m = new(eventloop.LatencyMetrics)
		x.metrics[name] = m
	}
	m.Record(x.now().Sub(env.Posted))
}

// report returns a summary per message name, sorted by name.
func (x *latencyRecorder) report() []MessageLatency {
	report := make([]MessageLatency, 0, len(x.metrics))
	for name, m := range x.metrics {
		count := m.Sample()
		if count == 0 {
			continue
		}
		report = append(report, MessageLatency{
			Name:  name,
			Count: count,
			Mean:  m.Mean,
			P50:   m.P50,
			P99:   m.P99,
			Max:   m.Max,
		})
	}
	sort.Slice(report, func(i, j int) bool { return report[i].Name < report[j].Name })
	return report
}
