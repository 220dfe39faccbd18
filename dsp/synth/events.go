package synth

import "sync/atomic"

// eventQueueCapacity bounds the control-to-audio hand-off queue. Must be a
// power of two. 256 events comfortably covers one block of dense host
// automation plus note traffic.
const eventQueueCapacity = 256

type eventKind uint8

const (
	evNoteOn eventKind = iota
	evNoteOff
	evAllNotesOff
	evParam
	evPitchBend
	evExtendedMode
)

type event struct {
	kind     eventKind
	note     int
	velocity int
	param    Param
	value    float64
	enabled  bool
}

// eventQueue is a bounded single-producer/single-consumer lock-free ring.
// The control goroutine pushes, the audio goroutine pops; neither side
// ever blocks. When the ring is full the new event is dropped and counted,
// so a stalled audio thread can never wedge the control thread.
type eventQueue struct {
	buf     []event
	head    atomic.Uint64
	tail    atomic.Uint64
	dropped atomic.Uint64
}

func newEventQueue() *eventQueue {
	return &eventQueue{buf: make([]event, eventQueueCapacity)}
}

// push enqueues ev. It reports false when the queue was full and the
// event was dropped.
func (q *eventQueue) push(ev event) bool {
	tail := q.tail.Load()
	head := q.head.Load()

	if tail-head >= uint64(len(q.buf)) {
		q.dropped.Add(1)
		return false
	}

	q.buf[tail&uint64(len(q.buf)-1)] = ev
	q.tail.Store(tail + 1)

	return true
}

// pop dequeues into ev. It reports false when the queue is empty.
func (q *eventQueue) pop(ev *event) bool {
	head := q.head.Load()
	if head == q.tail.Load() {
		return false
	}

	*ev = q.buf[head&uint64(len(q.buf)-1)]
	q.head.Store(head + 1)

	return true
}

// droppedCount returns the total number of events dropped on overflow.
func (q *eventQueue) droppedCount() uint64 {
	return q.dropped.Load()
}

// reset empties the queue. Only safe while no other goroutine touches it.
func (q *eventQueue) reset() {
	q.head.Store(0)
	q.tail.Store(0)
}
