package mailbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMailbox(t *testing.T) *Mailbox {
	t.Helper()
	m, err := New()
	require.NoError(t, err)
	require.Len(t, m.words, Slots)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMailbox_Wait_wokenByEncode(t *testing.T) {
	m := newTestMailbox(t)

	var waiting atomic.Bool
	done := make(chan int32, 1)
	go func() {
		waiting.Store(true)
		status, err := m.Wait(context.Background())
		if err != nil {
			t.Error(err)
		}
		done <- status
	}()

	for !waiting.Load() {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(time.Millisecond * 5)

	select {
	case <-done:
		t.Fatal(`wait returned before encode`)
	default:
	}

	start := time.Now()
	_, err := m.Encode(2, 80, 24)
	require.NoError(t, err)

	select {
	case status := <-done:
		assert.Equal(t, int32(2), status)
		// the wake is immediate, well below the wait quantum
		assert.Less(t, time.Since(start), waitQuantum)
	case <-time.After(time.Second):
		t.Fatal(`wait did not return`)
	}
}

func TestMailbox_Wait_pendingReturnsImmediately(t *testing.T) {
	m := newTestMailbox(t)
	_, err := m.Encode(4, true, 3)
	require.NoError(t, err)
	status, err := m.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(4), status)
	// wait does not claim
	assert.Equal(t, int32(4), m.Status())
}

func TestMailbox_Wait_contextCanceled(t *testing.T) {
	m := newTestMailbox(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
	defer cancel()
	_, err := m.Wait(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded), err)
}

func TestMailbox_Close(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Wait(context.Background())
		errCh <- err
	}()
	time.Sleep(time.Millisecond * 5)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal(`close did not release waiter`)
	}

	_, err = m.Encode(1, `a`)
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StatusNotSet, m.Status())
}
