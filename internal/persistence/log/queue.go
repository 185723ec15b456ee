package log

import "sync/atomic"

// queue is an unbounded multi-producer single-consumer queue. push never blocks and never
// locks; pop must only be called by one goroutine at a time (the Writer holds its flush lock).
type queue[T any] struct {
	head atomic.Pointer[node[T]]
	tail *node[T]
	n    atomic.Int64
}

type node[T any] struct {
	next atomic.Pointer[node[T]]
	val  T
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{}
	stub := &node[T]{}
	q.head.Store(stub)
	q.tail = stub
	return q
}

func (q *queue[T]) push(v T) {
	nd := &node[T]{val: v}
	prev := q.head.Swap(nd)
	prev.next.Store(nd)
	q.n.Add(1)
}

// pop returns false when the queue is empty or the next element is still being linked by a
// producer; that element is returned by a later pop.
func (q *queue[T]) pop() (T, bool) {
	var zero T
	next := q.tail.next.Load()
	if next == nil {
		return zero, false
	}
	v := next.val
	next.val = zero
	q.tail = next
	q.n.Add(-1)
	return v, true
}

func (q *queue[T]) drain() []T {
	var out []T
	for {
		v, ok := q.pop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func (q *queue[T]) len() int { return int(q.n.Load()) }
