package page

import (
	"context"
	"testing"
	"time"
)

func TestMergeDeadlineCarriesDeadline(t *testing.T) {
	tabCtx := context.Background()
	callCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	runCtx, runCancel := mergeDeadline(tabCtx, callCtx)
	defer runCancel()

	want, _ := callCtx.Deadline()
	got, ok := runCtx.Deadline()
	if !ok {
		t.Fatal("merged context has no deadline")
	}
	if !got.Equal(want) {
		t.Errorf("deadline = %v, want %v", got, want)
	}
}

func TestMergeDeadlinePropagatesCancellation(t *testing.T) {
	tabCtx := context.Background()
	callCtx, cancel := context.WithCancel(context.Background())

	runCtx, runCancel := mergeDeadline(tabCtx, callCtx)
	defer runCancel()

	cancel()
	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("caller cancellation did not reach the merged context")
	}
}

func TestMergeDeadlineTabCancellation(t *testing.T) {
	tabCtx, tabCancel := context.WithCancel(context.Background())

	runCtx, runCancel := mergeDeadline(tabCtx, context.Background())
	defer runCancel()

	tabCancel()
	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("tab cancellation did not reach the merged context")
	}
}
