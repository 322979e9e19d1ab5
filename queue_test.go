package blisp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueOrder(t *testing.T) {
	ctx := context.Background()
	q := NewQueue()
	for i := 0; i < 5; i++ {
		q.Push([]byte{byte(i)})
	}
	if q.Len() != 5 {
		t.Fatalf("len %d", q.Len())
	}
	for i := 0; i < 5; i++ {
		b, err := q.Pop(ctx, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if b[0] != byte(i) {
			t.Errorf("got %d, want %d", b[0], i)
		}
	}
}

func TestQueueTimeout(t *testing.T) {
	q := NewQueue()
	start := time.Now()
	_, err := q.Pop(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrResponseTimeout) {
		t.Fatalf("got %v, want %v", err, ErrResponseTimeout)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("returned before timeout")
	}
}

func TestQueueContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Pop(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue()
	q.Push([]byte("OK"))

	done := make(chan error, 1)
	q.Close(nil)
	q.Close(errors.New("ignored"))

	// queued chunks are still delivered
	if b, err := q.Pop(context.Background(), time.Second); err != nil || string(b) != "OK" {
		t.Fatalf("got %q, %v", b, err)
	}
	go func() {
		_, err := q.Pop(context.Background(), 0)
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("got %v, want %v", err, ErrClosed)
		}
	case <-time.After(time.Second):
		t.Fatal("pop not unblocked by close")
	}

	q.Push([]byte("late"))
	if q.Len() != 0 {
		t.Error("push after close was queued")
	}
}

func TestQueueCloseUnblocks(t *testing.T) {
	q := NewQueue()
	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background(), 0)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close(nil)
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("got %v, want %v", err, ErrClosed)
		}
	case <-time.After(time.Second):
		t.Fatal("pop not unblocked by close")
	}
}

func TestQueueConcurrent(t *testing.T) {
	const n = 1000
	q := NewQueue()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push([]byte{byte(i), byte(i >> 8)})
		}
	}()
	for i := 0; i < n; i++ {
		b, err := q.Pop(context.Background(), time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if got := int(b[0]) | int(b[1])<<8; got != i {
			t.Fatalf("got %d, want %d", got, i)
		}
	}
	wg.Wait()
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue()
	q.Push([]byte{1})
	q.Push([]byte{2})
	if n := q.Drain(); n != 2 {
		t.Errorf("drained %d", n)
	}
	if _, err := q.Pop(context.Background(), 10*time.Millisecond); !errors.Is(err, ErrResponseTimeout) {
		t.Errorf("got %v", err)
	}
}
