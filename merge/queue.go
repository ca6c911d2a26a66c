package merge

import (
	"github.com/tidwall/gjson"

	"github.com/drossix/shardmerge/core"
)

// mergeQueue is a priority queue over peer records keyed by the sort key of
// the front of each record's buffer. A record is pushed exactly when its
// buffer turns non-empty and re-pushed after a pop only if documents remain,
// so the queue never contains a peer with an empty buffer. Ties are broken by
// the record's local index to keep the order total and deterministic across
// repeated runs.
//
// mergeQueue implements heap.Interface, following the usual cursor-merging
// heap shape.
type mergeQueue struct {
	items    []*remoteCursor
	sort     core.Sort
	wholeKey bool
}

func (q *mergeQueue) Len() int { return len(q.items) }

func (q *mergeQueue) Less(i, j int) bool {
	if c := core.CompareSortKeys(q.items[i].front(), q.items[j].front(), q.sort, q.wholeKey); c != 0 {
		return c < 0
	}
	return q.items[i].index < q.items[j].index
}

func (q *mergeQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *mergeQueue) Push(x any) { q.items = append(q.items, x.(*remoteCursor)) }

func (q *mergeQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

func (q *mergeQueue) peek() *remoteCursor { return q.items[0] }

// keyBound is a (sort key, peer index) pair: the lowest key a given peer may
// still contribute, taken from its buffered front or its promised minimum.
type keyBound struct {
	key   gjson.Result
	index int
}

// lessBound imposes the total order over (key, peer) pairs used for
// high-water-mark computation, with the peer index as tie-break.
func lessBound(a, b keyBound, sort core.Sort, wholeKey bool) bool {
	if c := core.CompareSortKeys(a.key, b.key, sort, wholeKey); c != 0 {
		return c < 0
	}
	return a.index < b.index
}
