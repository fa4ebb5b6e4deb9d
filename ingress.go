package mainthread

import (
	"sync"
	"time"
)

// chunkSize is the number of submissions per node in the ingress list.
const chunkSize = 128

// submission is a closure bound for the main thread.
type submission struct {
	fn func()
	// queued is the submit time, set only while metrics are enabled.
	queued time.Time
}

// ingress is the multi-producer, single-consumer path from arbitrary
// goroutines to the main thread: a chunked linked list, guarded by a mutex.
// Push may be called from any goroutine, popBatch only from the main thread.
type ingress struct { // betteralign:ignore
	mu     sync.Mutex
	head   *ingressChunk
	tail   *ingressChunk
	length int
}

type ingressChunk struct {
	items   [chunkSize]submission
	next    *ingressChunk
	readPos int
	pos     int
}

var ingressChunkPool = sync.Pool{New: func() any { return new(ingressChunk) }}

func newIngressChunk() *ingressChunk {
	c := ingressChunkPool.Get().(*ingressChunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

func releaseIngressChunk(c *ingressChunk) {
	// drop references to closures, so they may be collected
	clear(c.items[:c.pos])
	c.pos = 0
	c.readPos = 0
	c.next = nil
	ingressChunkPool.Put(c)
}

// push appends s, returning the new length.
func (q *ingress) push(s submission) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.tail == nil {
		q.tail = newIngressChunk()
		q.head = q.tail
	}
	if q.tail.pos == len(q.tail.items) {
		c := newIngressChunk()
		q.tail.next = c
		q.tail = c
	}
	q.tail.items[q.tail.pos] = s
	q.tail.pos++
	q.length++
	return q.length
}

// popBatch moves up to len(buf) submissions into buf, in FIFO order,
// returning the number moved.
func (q *ingress) popBatch(buf []submission) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int
	for n < len(buf) && q.head != nil {
		if q.head.readPos == q.head.pos {
			if q.head == q.tail {
				q.head.pos = 0
				q.head.readPos = 0
				break
			}
			old := q.head
			q.head = old.next
			releaseIngressChunk(old)
			continue
		}
		buf[n] = q.head.items[q.head.readPos]
		q.head.items[q.head.readPos] = submission{}
		q.head.readPos++
		q.length--
		n++
	}
	return n
}

func (q *ingress) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}
