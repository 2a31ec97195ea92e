package audio

import "sync"

// Queue is the playback FIFO consumed by the output callback.
//
// Chunks play strictly in enqueue order. ReadOutput copies from the front of
// the queue, spanning chunk boundaries as needed, and zero-fills (silence)
// when the queue runs dry. Flush atomically discards everything queued and
// resets the read cursor; this is the barge-in mechanism.
type Queue struct {
	mu     sync.Mutex
	chunks [][]byte
	cursor int // read offset into chunks[0]
}

// NewQueue returns an empty playback queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a decoded PCM16 chunk to the back of the queue. Empty chunks
// are ignored.
func (q *Queue) Push(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()
}

// ReadOutput fills dst from the front of the queue and returns the number of
// queued bytes copied. Any remainder of dst past the copied bytes is zeroed
// so the output device always receives a full block.
func (q *Queue) ReadOutput(dst []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for n < len(dst) && len(q.chunks) > 0 {
		head := q.chunks[0]
		copied := copy(dst[n:], head[q.cursor:])
		n += copied
		q.cursor += copied
		if q.cursor >= len(head) {
			q.chunks[0] = nil
			q.chunks = q.chunks[1:]
			q.cursor = 0
		}
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return n
}

// Flush discards all queued audio and resets the read cursor.
func (q *Queue) Flush() {
	q.mu.Lock()
	q.chunks = nil
	q.cursor = 0
	q.mu.Unlock()
}

// Len returns the number of unplayed bytes currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := -q.cursor
	for _, chunk := range q.chunks {
		total += len(chunk)
	}
	if total < 0 {
		return 0
	}
	return total
}

// Empty reports whether nothing is queued.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// QueueSink adapts a Queue to the Sink interface for backends that pull
// output blocks themselves (speaker loops, tests).
type QueueSink struct {
	queue *Queue
}

// NewQueueSink returns a Sink backed by queue. A nil queue gets a fresh one.
func NewQueueSink(queue *Queue) *QueueSink {
	if queue == nil {
		queue = NewQueue()
	}
	return &QueueSink{queue: queue}
}

// Queue exposes the backing queue for the output loop.
func (s *QueueSink) Queue() *Queue { return s.queue }

// Write enqueues a decoded chunk.
func (s *QueueSink) Write(pcm []byte) error {
	s.queue.Push(pcm)
	return nil
}

// Flush discards queued audio.
func (s *QueueSink) Flush() { s.queue.Flush() }

// Close discards queued audio; the queue has no device to release.
func (s *QueueSink) Close() error {
	s.queue.Flush()
	return nil
}
