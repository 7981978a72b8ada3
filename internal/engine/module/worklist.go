package module

import "container/heap"

// Worklist is a priority queue that always yields the smallest pending item,
// which keeps processing order independent of discovery order.
type Worklist struct {
	items workHeap
}

func NewWorklist(seed ...WorkItem) *Worklist {
	w := &Worklist{items: make(workHeap, 0, len(seed))}
	for _, item := range seed {
		w.Push(item)
	}
	return w
}

func (w *Worklist) Push(item WorkItem) {
	heap.Push(&w.items, item)
}

// Pop removes and returns the smallest item. ok is false when empty.
func (w *Worklist) Pop() (WorkItem, bool) {
	if len(w.items) == 0 {
		return WorkItem{}, false
	}
	return heap.Pop(&w.items).(WorkItem), true
}

func (w *Worklist) Len() int {
	return len(w.items)
}

type workHeap []WorkItem

func (h workHeap) Len() int           { return len(h) }
func (h workHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h workHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *workHeap) Push(x any) {
	*h = append(*h, x.(WorkItem))
}

func (h *workHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
