package tmq

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, tbl.Close()) })
	return tbl
}

func TestOpenRejectsBadEndpoint(t *testing.T) {
	tbl := newTestTable(t)

	_, err := tbl.Open(-1)
	require.ErrorIs(t, err, ErrBadEndpoint)

	_, err = tbl.Open(tbl.EndpointCount())
	require.ErrorIs(t, err, ErrBadEndpoint)
}

func TestWriteThenReadImmediate(t *testing.T) {
	tbl := newTestTable(t)
	s, err := tbl.Open(3)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 8)
	n, err = s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestReadEmptyFailsWithoutWait(t *testing.T) {
	tbl := newTestTable(t)
	s, err := tbl.Open(0)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Read(make([]byte, 8))
	require.ErrorIs(t, err, ErrEmpty)
}

func TestDeferredWriteBecomesVisibleAfterDelay(t *testing.T) {
	tbl := newTestTable(t)
	s, err := tbl.Open(3)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Control(CmdSetSendDelay, 100*time.Millisecond))

	n, err := s.Write([]byte("X"))
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = s.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrEmpty)

	time.Sleep(150 * time.Millisecond)

	buf := make([]byte, 1)
	n, err = s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "X", string(buf[:n]))
}

func TestRevokeCancelsDeferredWrite(t *testing.T) {
	tbl := newTestTable(t)
	s, err := tbl.Open(3)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Control(CmdSetSendDelay, 1*time.Second))

	_, err = s.Write([]byte("A"))
	require.NoError(t, err)

	require.NoError(t, s.Control(CmdRevokePending, nil))

	time.Sleep(1500 * time.Millisecond)

	_, err = s.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrEmpty)

	ep := s.endpoint
	ep.mu.Lock()
	defer ep.mu.Unlock()
	require.Zero(t, ep.storageBytes)
}

func TestFlushUnblocksReader(t *testing.T) {
	tbl := newTestTable(t)
	r, err := tbl.Open(3)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Control(CmdSetRecvWait, 10*time.Second))

	readDone := make(chan error, 1)
	go func() {
		_, err := r.Read(make([]byte, 8))
		readDone <- err
	}()

	// Give the reader a moment to actually block before flushing.
	time.Sleep(50 * time.Millisecond)

	w, err := tbl.Open(3)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Flush())

	select {
	case err := <-readDone:
		require.ErrorIs(t, err, ErrFlushed)
	case <-time.After(2 * time.Second):
		t.Fatal("read was not unblocked by flush within bound")
	}
}

func TestDifferentSendDelaysCanReorderAcrossSessions(t *testing.T) {
	tbl := newTestTable(t)
	s1, err := tbl.Open(3)
	require.NoError(t, err)
	defer s1.Close()
	s2, err := tbl.Open(3)
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, s1.Control(CmdSetSendDelay, 200*time.Millisecond))

	_, err = s1.Write([]byte("A"))
	require.NoError(t, err)

	n, err := s2.Write([]byte("B"))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	buf := make([]byte, 1)
	n, err = s2.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "B", string(buf[:n]))

	time.Sleep(250 * time.Millisecond)

	n, err = s2.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "A", string(buf[:n]))
}

func TestStorageCapEnforced(t *testing.T) {
	cfg := DefaultConfig()
	tbl, err := NewTable(cfg)
	require.NoError(t, err)
	defer tbl.Close()

	s, err := tbl.Open(0)
	require.NoError(t, err)
	defer s.Close()

	msg := bytes.Repeat([]byte{'a'}, cfg.MaxMessageSize)
	count := cfg.MaxStorageSize / cfg.MaxMessageSize
	for i := 0; i < count; i++ {
		_, err := s.Write(msg)
		require.NoErrorf(t, err, "write %d", i)
	}

	_, err = s.Write(msg)
	require.ErrorIs(t, err, ErrNoSpace)

	_, err = s.Read(make([]byte, cfg.MaxMessageSize))
	require.NoError(t, err)

	_, err = s.Write(msg)
	require.NoError(t, err)
}

func TestWriteTooLargeRejected(t *testing.T) {
	cfg := DefaultConfig()
	tbl, err := NewTable(cfg)
	require.NoError(t, err)
	defer tbl.Close()

	s, err := tbl.Open(0)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Write(bytes.Repeat([]byte{'a'}, cfg.MaxMessageSize))
	require.NoError(t, err)

	_, err = s.Write(bytes.Repeat([]byte{'a'}, cfg.MaxMessageSize+1))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestReadTruncatesButConsumesWholeMessage(t *testing.T) {
	tbl := newTestTable(t)
	s, err := tbl.Open(0)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Write([]byte("hello world"))
	require.NoError(t, err)

	small := make([]byte, 5)
	n, err := s.Read(small)
	require.ErrorIs(t, err, ErrShortRead)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(small))

	_, err = s.Read(make([]byte, 64))
	require.ErrorIs(t, err, ErrEmpty)
}

func TestDoubleRevokeSecondIsNoop(t *testing.T) {
	tbl := newTestTable(t)
	s, err := tbl.Open(0)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Control(CmdSetSendDelay, time.Second))
	_, err = s.Write([]byte("A"))
	require.NoError(t, err)

	require.NoError(t, s.Control(CmdRevokePending, nil))

	ep := s.endpoint
	ep.mu.Lock()
	before := ep.storageBytes
	ep.mu.Unlock()

	require.NoError(t, s.Control(CmdRevokePending, nil))

	ep.mu.Lock()
	after := ep.storageBytes
	ep.mu.Unlock()
	require.Equal(t, before, after)
}

func TestCloseWaitsForFiringTimer(t *testing.T) {
	tbl := newTestTable(t)
	s, err := tbl.Open(0)
	require.NoError(t, err)

	// A delay short enough that the timer is very likely to be mid-fire,
	// or already fired, by the time Close races it.
	require.NoError(t, s.Control(CmdSetSendDelay, time.Millisecond))
	_, err = s.Write([]byte("A"))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Close())

	// Whether or not the message made it to the endpoint before close,
	// no goroutine from this session's timer scope should still be
	// running afterward; the endpoint must be left in a consistent
	// state either way.
	ep := s.endpoint
	ep.mu.Lock()
	defer ep.mu.Unlock()
	queued := 0
	for e := ep.messages.Front(); e != nil; e = e.Next() {
		queued += e.Value.(*queuedMessage).msg.size
	}
	require.Equal(t, queued, ep.storageBytes)
	require.Equal(t, ep.messages.Len(), ep.availableCount)
}

func TestConcurrentReadersEachGetDistinctMessage(t *testing.T) {
	tbl := newTestTable(t)
	w, err := tbl.Open(0)
	require.NoError(t, err)
	defer w.Close()

	const n = 20
	for i := 0; i < n; i++ {
		_, err := w.Write([]byte{byte(i)})
		require.NoError(t, err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		seen    = make(map[byte]int)
		readers = 5
	)
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		r, err := tbl.Open(0)
		require.NoError(t, err)
		require.NoError(t, r.Control(CmdSetRecvWait, time.Second))
		go func(r *Session) {
			defer wg.Done()
			defer r.Close()
			buf := make([]byte, 1)
			for {
				n, err := r.Read(buf)
				if err != nil {
					return
				}
				mu.Lock()
				seen[buf[:n][0]]++
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()

	require.Len(t, seen, n)
	for b, count := range seen {
		require.Equalf(t, 1, count, "byte %d delivered %d times", b, count)
	}
}
