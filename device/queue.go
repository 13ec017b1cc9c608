// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"container/heap"
	"time"
)

// deadlineQueue holds commands enqueued on a device but not yet executed,
// popping the earliest-deadline one first; equal deadlines are broken FIFO
// by a monotonically increasing sequence number assigned at push time.
//
// This is the Go container/heap idiom substituting the balanced binary
// heap a language with one built into its standard collections would use
// directly.
type deadlineQueue struct {
	seqno uint64
	items itemHeap
}

func newDeadlineQueue() *deadlineQueue {
	return &deadlineQueue{}
}

func (q *deadlineQueue) push(cmd Command) {
	item := &queueItem{
		seqno:    q.seqno,
		deadline: cmd.Deadline().resolve(time.Now()),
		command:  cmd,
	}
	heap.Push(&q.items, item)
	q.seqno++
}

func (q *deadlineQueue) pop() (Command, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	item := heap.Pop(&q.items).(*queueItem)
	return item.command, true
}

func (q *deadlineQueue) len() int {
	return len(q.items)
}

type queueItem struct {
	seqno    uint64
	deadline absoluteDeadline
	command  Command
}

// itemHeap implements container/heap.Interface, ordered so Pop always
// yields the item with the earliest deadline (ties broken by the lowest
// sequence number, i.e. FIFO).
type itemHeap []*queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].deadline.kind != h[j].deadline.kind || h[i].deadline.at != h[j].deadline.at {
		return h[i].deadline.less(h[j].deadline)
	}
	return h[i].seqno < h[j].seqno
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x interface{}) {
	*h = append(*h, x.(*queueItem))
}

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
