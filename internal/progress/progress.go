package progress

import "sync"

// Phase identifies a stage of the export life cycle.
type Phase int

// Export life cycle phases, in order.
const (
	// PhaseStart is emitted once before any work happens.
	PhaseStart Phase = iota

	// PhaseAnalysis covers folder/thread structure discovery.
	PhaseAnalysis

	// PhaseExport covers per-thread export.
	PhaseExport

	// PhaseStop is emitted once after all work is done.
	PhaseStop
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "START"
	case PhaseAnalysis:
		return "ANALYSIS"
	case PhaseExport:
		return "EXPORT"
	case PhaseStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is a cumulative progress snapshot. All counters are totals, never
// deltas, and never regress within a run.
type Snapshot struct {
	// ReadFolders is the number of folders fetched during analysis.
	ReadFolders int

	// ReadThreads is the number of threads discovered during analysis.
	ReadThreads int

	// ThreadsProcessed is the number of threads completed (exported or
	// skipped) during export.
	ThreadsProcessed int

	// ThreadsTotal is the export denominator, fixed at the end of analysis.
	ThreadsTotal int
}

// EventKind discriminates Event payloads.
type EventKind int

// Event kinds.
const (
	// KindPhase signals a phase transition; Phase and PrevPhase are set.
	KindPhase EventKind = iota

	// KindProgress carries a cumulative Snapshot.
	KindProgress

	// KindLog carries a free-text line for display.
	KindLog
)

// Event is a single notification emitted by the crawl/export core.
type Event struct {
	Kind      EventKind
	Phase     Phase
	PrevPhase Phase
	Snapshot  Snapshot
	Message   string
}

// Tracker decouples the crawl/export state machine from presentation.
// The core emits events into the tracker; a consumer (the CLI, a test)
// drains the Events channel and renders them however it likes.
//
// Design decision: emission never blocks the core. When the consumer falls
// behind, progress and log events are dropped; phase transitions are always
// delivered because consumers key their state off them. Progress snapshots
// are cumulative, so a dropped snapshot is subsumed by the next one.
type Tracker struct {
	ch    chan Event
	phase Phase

	mu   sync.Mutex
	last Snapshot
}

// defaultBuffer is sized so a normally paced consumer never drops events.
const defaultBuffer = 256

// NewTracker creates a Tracker. A nil Tracker is valid and discards all
// events, which keeps the core free of nil checks at every emission site.
func NewTracker() *Tracker {
	return &Tracker{ch: make(chan Event, defaultBuffer)}
}

// Events returns the channel consumers drain. The channel is closed by
// Close after the final event.
func (t *Tracker) Events() <-chan Event {
	if t == nil {
		return nil
	}
	return t.ch
}

// StartPhase emits a phase transition. It blocks until delivered so
// consumers never miss a phase.
func (t *Tracker) StartPhase(p Phase) {
	if t == nil {
		return
	}
	prev := t.phase
	t.phase = p
	t.ch <- Event{Kind: KindPhase, Phase: p, PrevPhase: prev}
}

// Progress emits a cumulative snapshot. Dropped when the consumer is behind.
// Each counter is clamped to its running maximum, so concurrent emitters
// whose sends interleave out of order can never publish a regressing value.
func (t *Tracker) Progress(s Snapshot) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	s.ReadFolders = max(s.ReadFolders, t.last.ReadFolders)
	s.ReadThreads = max(s.ReadThreads, t.last.ReadThreads)
	s.ThreadsProcessed = max(s.ThreadsProcessed, t.last.ThreadsProcessed)
	s.ThreadsTotal = max(s.ThreadsTotal, t.last.ThreadsTotal)
	t.last = s

	select {
	case t.ch <- Event{Kind: KindProgress, Phase: t.phase, Snapshot: s}:
	default:
	}
}

// Log emits a free-text line. Dropped when the consumer is behind.
func (t *Tracker) Log(message string) {
	if t == nil {
		return
	}
	select {
	case t.ch <- Event{Kind: KindLog, Phase: t.phase, Message: message}:
	default:
	}
}

// Close ends the stream. No emission may follow.
func (t *Tracker) Close() {
	if t == nil {
		return
	}
	close(t.ch)
}
