package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestNewPublisherWithoutBrokers(t *testing.T) {
	t.Parallel()

	p := NewPublisher(nil, "orders", 8)
	require.Nil(t, p)

	// Nil receivers are safe to use everywhere.
	p.Start(context.Background())
	p.Publish(TypeOrderCreated, "corr-1", map[string]string{"k": "v"})
}

func TestPublishDuringShutdownDoesNotPanic(t *testing.T) {
	t.Parallel()

	// Built by hand so flushes against the unreachable broker fail fast.
	p := &Publisher{
		w: &kafka.Writer{
			Addr:            kafka.TCP("127.0.0.1:1"),
			Topic:           "orders",
			MaxAttempts:     1,
			WriteBackoffMax: time.Millisecond,
		},
		inbox: make(chan kafka.Message, 4),
	}
	require.NotNil(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	// Hammer Publish while the drain goroutine shuts down. Once the buffer
	// fills the remainder are dropped, never sent on a closed channel.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p.Publish(TypeOrderStatusChanged, "corr-2", map[string]int{"n": j})
			}
		}()
	}
	wg.Wait()

	// Give the drain goroutine time to observe cancellation and exit.
	time.Sleep(20 * time.Millisecond)
	p.Publish(TypeStockReleased, "corr-3", nil)
}
