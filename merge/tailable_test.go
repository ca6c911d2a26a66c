package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/drossix/shardmerge/core"
)

func TestTailable_EmptyBatchYieldsEmptyMarker(t *testing.T) {
	sched := &mockScheduler{}
	m := newTestMerger(t, sched, Params{
		Tailable: core.Tailable,
		Remotes:  []core.RemoteCursorSpec{spec("a", 11)},
	})

	ev, err := m.NextEvent()
	require.NoError(t, err)

	// The peer stays open but has nothing yet.
	sched.pending("getMore")[0].deliver(batchReply(11))
	waitSignaled(t, ev)

	require.True(t, m.Ready())
	res, err := m.NextReady()
	require.NoError(t, err)
	assert.True(t, res.IsEmptyMarker())
	assert.False(t, res.EOF)

	// The marker is consumed; the caller polls again.
	assert.False(t, m.Ready())
	assert.False(t, m.RemotesExhausted())
}

func TestTailable_ExhaustedCursorEndsStream(t *testing.T) {
	sched := &mockScheduler{}
	m := newTestMerger(t, sched, Params{
		Tailable: core.Tailable,
		Remotes:  []core.RemoteCursorSpec{spec("a", 11)},
	})

	ev, err := m.NextEvent()
	require.NoError(t, err)
	sched.pending("getMore")[0].deliver(batchReply(0))
	waitSignaled(t, ev)

	res, err := m.NextReady()
	require.NoError(t, err)
	assert.True(t, res.EOF)
}

func TestAwaitData_HighWaterMarkAdvancesMonotonically(t *testing.T) {
	sched := &mockScheduler{}
	m := newTestMerger(t, sched, Params{
		Sort:     byKeyAsc,
		Tailable: core.TailableAwaitData,
		Remotes: []core.RemoteCursorSpec{
			spec("a", 11),
			spec("b", 22),
		},
	})

	assert.Nil(t, m.HighWaterMark())

	ev, err := m.NextEvent()
	require.NoError(t, err)

	getMores := sched.pending("getMore")
	require.Len(t, getMores, 2)

	// One promise is not enough: the silent peer could still produce an
	// older key.
	getMores[0].deliver(hwmReply(11, 5))
	assert.Nil(t, m.HighWaterMark())
	assert.False(t, m.Ready())

	getMores[1].deliver(hwmReply(22, 8))
	waitSignaled(t, ev)

	require.NotNil(t, m.HighWaterMark())
	assert.Equal(t, int64(5), gjson.GetBytes(m.HighWaterMark(), "0").Int())

	// An advanced mark is surfaced as an empty placeholder result.
	require.True(t, m.Ready())
	res, err := m.NextReady()
	require.NoError(t, err)
	assert.True(t, res.IsEmptyMarker())
	assert.False(t, m.Ready())

	// Promises only tighten, so the mark never decreases.
	ev, err = m.NextEvent()
	require.NoError(t, err)
	getMores = sched.pending("getMore")
	require.Len(t, getMores, 2)
	getMores[0].deliver(hwmReply(11, 9))
	getMores[1].deliver(hwmReply(22, 12))
	waitSignaled(t, ev)

	assert.Equal(t, int64(9), gjson.GetBytes(m.HighWaterMark(), "0").Int())

	res, err = m.NextReady()
	require.NoError(t, err)
	assert.True(t, res.IsEmptyMarker())
}

func TestAwaitData_TopOnlyReturnedOncePromisesCoverIt(t *testing.T) {
	sched := &mockScheduler{}
	m := newTestMerger(t, sched, Params{
		Sort:     byKeyAsc,
		Tailable: core.TailableAwaitData,
		Remotes: []core.RemoteCursorSpec{
			spec("a", 11),
			spec("b", 22),
		},
	})

	ev, err := m.NextEvent()
	require.NoError(t, err)

	getMores := sched.pending("getMore")
	getMores[0].deliver(hwmReply(11, 5, testDoc("a", 5)))

	// Peer b is silent and unpromised: the buffered document may still be
	// undercut, so no document can be emitted yet.
	assert.False(t, m.Ready())

	getMores[1].deliver(hwmReply(22, 3))
	waitSignaled(t, ev)

	// b promised 3 < 5: the buffered document is still unsafe, but the mark
	// is now established at 3 and surfaces as an empty placeholder.
	require.True(t, m.Ready())
	res, err := m.NextReady()
	require.NoError(t, err)
	assert.True(t, res.IsEmptyMarker())
	assert.Equal(t, int64(3), gjson.GetBytes(m.HighWaterMark(), "0").Int())

	// Once b promises past the buffered key, the document becomes safe.
	ev, err = m.NextEvent()
	require.NoError(t, err)
	sched.pending("getMore")[0].deliver(hwmReply(22, 7))
	waitSignaled(t, ev)

	res, err = m.NextReady()
	require.NoError(t, err)
	require.NotNil(t, res.Doc)
	assert.Equal(t, int64(5), docKey(res.Doc))
}

func TestAwaitData_NoDocumentEmittedBelowMark(t *testing.T) {
	sched := &mockScheduler{}
	m := newTestMerger(t, sched, Params{
		Sort:     byKeyAsc,
		Tailable: core.TailableAwaitData,
		Remotes: []core.RemoteCursorSpec{
			spec("a", 11),
			spec("b", 22),
		},
	})

	var lastMark int64 = -1
	checkMark := func() {
		if hwm := m.HighWaterMark(); hwm != nil {
			mark := gjson.GetBytes(hwm, "0").Int()
			assert.GreaterOrEqual(t, mark, lastMark)
			lastMark = mark
		}
	}

	ev, err := m.NextEvent()
	require.NoError(t, err)
	getMores := sched.pending("getMore")
	getMores[0].deliver(hwmReply(11, 4, testDoc("a", 2), testDoc("a", 4)))
	checkMark()
	getMores[1].deliver(hwmReply(22, 6, testDoc("b", 3)))
	checkMark()
	waitSignaled(t, ev)

	var keys []int64
	for m.Ready() {
		res, err := m.NextReady()
		require.NoError(t, err)
		if res.EOF || res.IsEmptyMarker() {
			break
		}
		keys = append(keys, docKey(res.Doc))
		// No emitted document may undercut the established mark.
		if mark := m.HighWaterMark(); mark != nil {
			assert.GreaterOrEqual(t, keys[len(keys)-1], gjson.GetBytes(mark, "0").Int())
		}
		checkMark()
	}

	assert.Equal(t, []int64{2, 3, 4}, keys)
}

func TestAwaitData_EmptyBatchWithoutPromiseRefetches(t *testing.T) {
	sched := &mockScheduler{}
	m := newTestMerger(t, sched, Params{
		Sort:     byKeyAsc,
		Tailable: core.TailableAwaitData,
		Remotes: []core.RemoteCursorSpec{
			spec("a", 11),
			spec("b", 22),
		},
	})

	ev, err := m.NextEvent()
	require.NoError(t, err)

	getMores := sched.pending("getMore")
	require.Len(t, getMores, 2)
	getMores[0].deliver(hwmReply(11, 5, testDoc("a", 5)))

	// b answered empty without a promise: the buffered document stays
	// unsafe and b must be polled again.
	getMores[1].deliver(batchReply(22))
	assert.False(t, m.Ready())

	refetched := sched.pending("getMore")
	require.Len(t, refetched, 1)
	assert.Equal(t, "ws://b", refetched[0].addr)

	refetched[0].deliver(hwmReply(22, 9))
	waitSignaled(t, ev)

	res, err := m.NextReady()
	require.NoError(t, err)
	assert.Equal(t, int64(5), docKey(res.Doc))
}

func TestCloseShardCursors_RejectsMixedListUntouched(t *testing.T) {
	sched := &mockScheduler{}
	m := newTestMerger(t, sched, Params{
		Sort:     byKeyAsc,
		Tailable: core.TailableAwaitData,
		Remotes: []core.RemoteCursorSpec{
			spec("a", 11),
			spec("b", 22),
		},
	})

	// A bad id anywhere in the list must leave every listed peer untouched.
	err := m.CloseShardCursors([]string{"a", "nope"})
	assert.ErrorIs(t, err, core.ErrCursorInvalidated)
	assert.Zero(t, sched.countCommands("killCursors"))

	require.NoError(t, m.CloseShardCursors([]string{"a"}))
	assert.Equal(t, 1, sched.countCommands("killCursors"))
}

func TestCloseShardCursors_PreservesBufferedDocuments(t *testing.T) {
	sched := &mockScheduler{}
	m := newTestMerger(t, sched, Params{
		Sort:     byKeyAsc,
		Tailable: core.TailableAwaitData,
		Remotes: []core.RemoteCursorSpec{
			spec("a", 11, testDoc("a", 1), testDoc("a", 3)),
			spec("b", 22, testDoc("b", 2)),
		},
	})

	require.NoError(t, m.CloseShardCursors([]string{"b"}))

	// The closed cursor is killed best effort.
	assert.Equal(t, 1, sched.countCommands("killCursors"))

	// Closing again is an invalidated-cursor access.
	err := m.CloseShardCursors([]string{"b"})
	assert.ErrorIs(t, err, core.ErrCursorInvalidated)
	err = m.CloseShardCursors([]string{"nope"})
	assert.ErrorIs(t, err, core.ErrCursorInvalidated)

	// b's buffered document is still drained in order.
	var order []string
	for i := 0; i < 3; i++ {
		res, err := m.NextReady()
		require.NoError(t, err)
		require.NotNil(t, res.Doc)
		order = append(order, docPeer(t, res.Doc))
	}
	assert.Equal(t, []string{"a", "b", "a"}, order)

	// The first batches established a high-water mark that has not been
	// surfaced yet; it drains as one empty placeholder.
	res, err := m.NextReady()
	require.NoError(t, err)
	assert.True(t, res.IsEmptyMarker())

	_, err = m.NextEvent()
	require.NoError(t, err)
	getMores := sched.pending("getMore")
	require.Len(t, getMores, 1)
	assert.Equal(t, "ws://a", getMores[0].addr)
}

func TestSetAwaitDataTimeout(t *testing.T) {
	sched := &mockScheduler{}
	plain := newTestMerger(t, sched, Params{Remotes: []core.RemoteCursorSpec{spec("a", 11)}})
	assert.ErrorIs(t, plain.SetAwaitDataTimeout(time.Second), core.ErrTailableRequired)

	m := newTestMerger(t, sched, Params{
		Tailable: core.TailableAwaitData,
		Remotes:  []core.RemoteCursorSpec{spec("b", 22)},
	})
	require.NoError(t, m.SetAwaitDataTimeout(1500*time.Millisecond))

	_, err := m.NextEvent()
	require.NoError(t, err)

	getMores := sched.pending("getMore")
	require.Len(t, getMores, 1)
	assert.Equal(t, int64(1500), gjson.GetBytes(getMores[0].cmd, "maxTimeMS").Int())
}
