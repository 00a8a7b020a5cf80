package kafka

import (
	"context"
	"testing"
	"time"
)

func waitClosedOrFatal(t *testing.T, p *Producer) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		p.WaitClosed()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not shut down")
	}
}

func TestProducerShutdownCloseThenCancel(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:9092"}, "orders.test", 8)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	p.Close()
	cancel()
	waitClosedOrFatal(t, p)
}

func TestProducerShutdownViaContext(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:9092"}, "orders.test", 8)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	cancel()
	waitClosedOrFatal(t, p)

	// Close after a context-driven shutdown must not panic
	p.Close()
	p.Close()
}

func TestProducerShutdownCloseOnly(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:9092"}, "orders.test", 8)
	p.Start(context.Background())

	p.Close()
	waitClosedOrFatal(t, p)
}
