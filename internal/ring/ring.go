// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ring implements a simple ring buffer.
package ring

// Buffer is a fixed size FIFO that overwrites its oldest
// elements when full. It is not safe for concurrent use.
type Buffer[T any] struct {
	data []T
	head int
	n    int
}

func NewBuffer[T any](n int) *Buffer[T] {
	return &Buffer[T]{data: make([]T, n)}
}

func (r *Buffer[T]) Len() int {
	return r.n
}

func (r *Buffer[T]) Size() int {
	return len(r.data)
}

// Write appends src to the buffer and returns the number of
// elements that were overwritten or discarded to make room.
func (r *Buffer[T]) Write(src []T) (dropped int) {
	if len(src) >= len(r.data) {
		dropped = r.n + len(src) - len(r.data)
		copy(r.data, src[len(src)-len(r.data):])
		r.head = 0
		r.n = len(r.data)
		return dropped
	}
	tail := (r.head + r.n) % len(r.data)
	k := copy(r.data[tail:], src)
	copy(r.data, src[k:])
	r.n += len(src)
	if r.n > len(r.data) {
		dropped = r.n - len(r.data)
		r.head = (r.head + dropped) % len(r.data)
		r.n = len(r.data)
	}
	return dropped
}

func (r *Buffer[T]) Read(dst []T) int {
	n := r.CopyTo(dst)
	r.Advance(n)
	return n
}

func (r *Buffer[T]) CopyTo(dst []T) int {
	n := min(len(dst), r.n)
	k := copy(dst[:n], r.data[r.head:min(r.head+n, len(r.data))])
	copy(dst[k:n], r.data[:n-k])
	return n
}

func (r *Buffer[T]) Advance(n int) {
	n = min(n, r.n)
	if n <= 0 {
		return
	}
	r.head = (r.head + n) % len(r.data)
	r.n -= n
}
