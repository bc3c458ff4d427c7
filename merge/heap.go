// Copyright 2026 The FactorGraph Authors. All rights reserved.  Use of this
// source code is governed by a license that can be found in the License file.

package merge

// mergerHeap is a max-heap of merge candidates ordered by score, ties
// broken by creation sequence so identical inputs contract in the same
// order.  Each merger carries its heap slot so that candidates
// invalidated by a contraction can be removed from the middle of the
// heap in O(log n) via heap.Remove.
type mergerHeap []*merger

func (q mergerHeap) Len() int { return len(q) }

func (q mergerHeap) Less(i, j int) bool {
	if q[i].score != q[j].score {
		return q[i].score > q[j].score
	}
	return q[i].seq < q[j].seq
}

func (q mergerHeap) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].slot = i
	q[j].slot = j
}

func (q *mergerHeap) Push(x any) {
	mg := x.(*merger)
	mg.slot = len(*q)
	*q = append(*q, mg)
}

func (q *mergerHeap) Pop() any {
	old := *q
	n := len(old)
	mg := old[n-1]
	old[n-1] = nil
	mg.slot = -1
	*q = old[:n-1]
	return mg
}
