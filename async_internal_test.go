package jsgi

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncResponseStreaming(t *testing.T) {
	ex := newRecordingExchange()
	handle := NewAsyncResponse(testRequest(ex))
	require.Same(t, handle, handle.Response().Async())

	require.NoError(t, handle.Start(200, NewHeaderMap("Content-Type", "text/plain")))
	cont := handle.suspend(time.Minute, NewTestLogger(t))
	require.NotNil(t, cont)

	go func() {
		assert.NoError(t, handle.WriteString("a"))
		assert.NoError(t, handle.WriteBytes([]byte("b")))
		assert.NoError(t, handle.Close())
	}()

	<-cont.Done()
	require.False(t, cont.Forced())
	require.Equal(t, "ab", ex.Body())
	require.Equal(t, 200, ex.status)
	require.Equal(t, "text/plain", ex.headers.Get("content-type"))
	require.Equal(t, 1, ex.Closes())
}

func TestAsyncResponseDefaultContentType(t *testing.T) {
	ex := newRecordingExchange()
	handle := NewAsyncResponse(testRequest(ex))
	require.NoError(t, handle.Start(202, HeaderMap{}))
	require.Equal(t, DefaultContentType, ex.headers.Get("Content-Type"))
	require.Equal(t, 202, ex.status)
}

func TestAsyncResponseCharset(t *testing.T) {
	ex := newRecordingExchange()
	handle := NewAsyncResponse(testRequest(ex))
	require.NoError(t, handle.Start(200, NewHeaderMap("Content-Type", "text/plain; charset=iso-8859-1")))
	require.NoError(t, handle.WriteString("é"))
	require.Equal(t, "\xe9", ex.Body())
}

func TestAsyncResponseIllegalState(t *testing.T) {
	ex := newRecordingExchange()
	handle := NewAsyncResponse(testRequest(ex))

	err := handle.WriteString("x")
	require.True(t, errors.Is(err, ErrIllegalState))
	require.False(t, errors.Is(err, ErrClosed))
	require.True(t, errors.Is(handle.Flush(), ErrIllegalState))

	require.True(t, errors.Is(handle.Start(99, HeaderMap{}), ErrIllegalState))
	require.NoError(t, handle.Start(200, HeaderMap{}))
	require.True(t, errors.Is(handle.Start(200, HeaderMap{}), ErrIllegalState), "start twice")

	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close(), "close is idempotent")
	require.True(t, handle.Closed())

	for _, err := range []error{
		handle.WriteString("late"),
		handle.Flush(),
		handle.Start(200, HeaderMap{}),
	} {
		require.True(t, errors.Is(err, ErrClosed))
		require.True(t, errors.Is(err, ErrIllegalState))
	}

	require.Equal(t, 1, ex.Closes())
	require.Empty(t, ex.Body())
}

func TestAsyncResponseConcurrentWritesDoNotInterleave(t *testing.T) {
	const writers, size = 16, 512

	ex := newRecordingExchange()
	handle := NewAsyncResponse(testRequest(ex), WithAutoFlush())
	require.NoError(t, handle.Start(200, HeaderMap{}))

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, handle.WriteString(strings.Repeat(string(rune('a'+i)), size)))
		}()
	}
	wg.Wait()
	require.NoError(t, handle.Close())

	body := ex.Body()
	require.Len(t, body, writers*size)
	seen := map[byte]bool{}
	for off := 0; off < len(body); off += size {
		block := body[off : off+size]
		require.Equal(t, strings.Repeat(block[:1], size), block)
		require.False(t, seen[block[0]])
		seen[block[0]] = true
	}
	require.GreaterOrEqual(t, ex.flushes, writers)
}

func TestAsyncResponseConcurrentCloseIsExactlyOnce(t *testing.T) {
	ex := newRecordingExchange()
	handle := NewAsyncResponse(testRequest(ex))
	require.NoError(t, handle.Start(200, HeaderMap{}))
	cont := handle.suspend(time.Minute, NewTestLogger(t))

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, handle.Close())
		}()
	}
	wg.Wait()

	<-cont.Done()
	require.False(t, cont.Forced())
	require.Equal(t, 1, ex.Closes())
}

func TestAsyncResponseTimeout(t *testing.T) {
	ex := newRecordingExchange()
	logs := NewTestLogger(t)
	handle := NewAsyncResponse(testRequest(ex), WithTimeout(20*time.Millisecond))
	require.NoError(t, handle.Start(200, HeaderMap{}))
	require.NoError(t, handle.WriteString("partial"))

	cont := handle.suspend(time.Minute, logs)

	select {
	case <-cont.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("continuation did not expire")
	}

	require.True(t, cont.Forced())
	require.True(t, handle.Closed())
	require.True(t, errors.Is(handle.WriteString("late"), ErrClosed))
	require.NoError(t, handle.Close())
	require.Equal(t, "partial", ex.Body())
	require.Equal(t, 1, ex.Closes())
	require.EqualValues(t, 1, logs.NumLogAsyncTimeout)
}

func TestAsyncResponseClosedBeforeSuspend(t *testing.T) {
	ex := newRecordingExchange()
	handle := NewAsyncResponse(testRequest(ex))
	require.NoError(t, handle.Start(200, HeaderMap{}))
	require.NoError(t, handle.WriteString("done"))
	require.NoError(t, handle.Close())

	require.Nil(t, handle.suspend(time.Minute, NewTestLogger(t)))
	require.Equal(t, "done", ex.Body())
}

func TestAsyncResponseWriteErrorCloses(t *testing.T) {
	ex := newRecordingExchange()
	handle := NewAsyncResponse(testRequest(ex))
	require.NoError(t, handle.Start(200, HeaderMap{}))
	cont := handle.suspend(time.Minute, NewTestLogger(t))

	ex.writeErr = errors.New("broken pipe")
	err := handle.WriteString("x")
	require.ErrorContains(t, err, "broken pipe")

	<-cont.Done()
	require.True(t, cont.Forced())
	require.True(t, errors.Is(handle.WriteString("y"), ErrClosed))
}

func TestAsyncResponseAbort(t *testing.T) {
	ex := newRecordingExchange()
	handle := NewAsyncResponse(testRequest(ex))
	cont := handle.suspend(time.Minute, NewTestLogger(t))

	handle.abort()
	<-cont.Done()
	require.True(t, cont.Forced())
	require.True(t, handle.Closed())

	handle.abort()
	require.Equal(t, 1, ex.Closes())
}
