package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackground_StopWaitsForInFlightWork(t *testing.T) {
	workers := newBackground(context.Background())

	var finished atomic.Int32
	for range 3 {
		workers.run(func(ctx context.Context) {
			<-ctx.Done()
			// Simulates a classification still recording its verdict.
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
		})
	}

	workers.stopAndWait()
	assert.Equal(t, int32(3), finished.Load())
}

func TestBackground_ParentCancellationStopsWorkers(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	workers := newBackground(parent)

	done := make(chan struct{})
	workers.run(func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not observe parent cancellation")
	}
	workers.stopAndWait()
}
