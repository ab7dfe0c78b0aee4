package importer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_RepeatedTouchesDeliverOnce(t *testing.T) {
	d := newDebouncer(context.Background(), 30*time.Millisecond)
	defer d.stop()

	for i := 0; i < 5; i++ {
		d.touch("a.json")
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case got := <-d.ready:
		assert.Equal(t, "a.json", got)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced path was never delivered")
	}

	select {
	case got := <-d.ready:
		t.Fatalf("path delivered twice: %s", got)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_TouchAfterFireIsANewDelivery(t *testing.T) {
	d := newDebouncer(context.Background(), 10*time.Millisecond)
	defer d.stop()

	d.touch("a.json")
	require.Equal(t, "a.json", <-d.ready)

	d.touch("a.json")
	select {
	case got := <-d.ready:
		assert.Equal(t, "a.json", got)
	case <-time.After(2 * time.Second):
		t.Fatal("second write was not delivered")
	}
}

func TestDebouncer_StopReleasesBlockedCallbacks(t *testing.T) {
	d := newDebouncer(context.Background(), time.Millisecond)
	d.touch("a.json")
	d.touch("b.json")
	d.touch("c.json")

	// Nobody reads ready, so fired callbacks are parked on the send.
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		d.stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return while callbacks were waiting to deliver")
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := newDebouncer(context.Background(), time.Hour)
	d.touch("a.json")
	d.stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.pending)
}
