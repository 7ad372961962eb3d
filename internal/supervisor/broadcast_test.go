package supervisor

import (
	"fmt"
	"testing"
	"time"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/pkg/config"
)

func stdoutChunk(seq uint64, line string) domain.Chunk {
	return domain.Chunk{Stream: domain.StreamStdout, Seq: seq, Line: line, Time: time.Now()}
}

func TestHubDeliversToAllSubscribers(t *testing.T) {
	h := newHub(4, config.OverflowDropOldest)

	a := h.subscribe("")
	b := h.subscribe("")
	defer a.Cancel()
	defer b.Cancel()

	h.publish(stdoutChunk(1, "hello\n"))

	for _, sub := range []*Subscription{a, b} {
		select {
		case chunk := <-sub.C():
			if chunk.Seq != 1 || chunk.Line != "hello\n" {
				t.Errorf("unexpected chunk: %+v", chunk)
			}
		default:
			t.Fatal("expected a queued chunk")
		}
	}
}

func TestHubFiltersByStream(t *testing.T) {
	h := newHub(4, config.OverflowDropOldest)

	sub := h.subscribe(domain.StreamStderr)
	defer sub.Cancel()

	h.publish(stdoutChunk(1, "out\n"))
	h.publish(domain.Chunk{Stream: domain.StreamStderr, Seq: 1, Line: "err\n", Time: time.Now()})

	select {
	case chunk := <-sub.C():
		if chunk.Stream != domain.StreamStderr {
			t.Errorf("expected stderr chunk, got %s", chunk.Stream)
		}
	default:
		t.Fatal("expected a queued chunk")
	}

	select {
	case chunk := <-sub.C():
		t.Errorf("stdout chunk leaked through a stderr subscription: %+v", chunk)
	default:
	}
}

func TestHubDropOldestOverflow(t *testing.T) {
	h := newHub(2, config.OverflowDropOldest)

	sub := h.subscribe("")
	defer sub.Cancel()

	for i := 1; i <= 5; i++ {
		h.publish(stdoutChunk(uint64(i), fmt.Sprintf("line %d\n", i)))
	}

	// Queue depth is 2, so the newest two chunks survive
	first := <-sub.C()
	second := <-sub.C()
	if first.Seq != 4 || second.Seq != 5 {
		t.Errorf("expected seqs 4 and 5 to survive, got %d and %d", first.Seq, second.Seq)
	}
	if sub.Dropped() != 3 {
		t.Errorf("expected 3 dropped chunks, got %d", sub.Dropped())
	}

	select {
	case <-sub.Done():
		t.Error("drop_oldest must not end the subscription")
	default:
	}
}

func TestHubDisconnectOverflow(t *testing.T) {
	h := newHub(1, config.OverflowDisconnect)

	slow := h.subscribe("")
	fast := h.subscribe("")
	defer fast.Cancel()

	h.publish(stdoutChunk(1, "one\n"))
	// fast keeps up, slow does not
	<-fast.C()
	h.publish(stdoutChunk(2, "two\n"))

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("expected slow subscriber to be disconnected")
	}

	if got := h.subscriberCount(); got != 1 {
		t.Errorf("expected 1 remaining subscriber, got %d", got)
	}

	// The chunk queued before disconnection is still readable
	if chunk := <-slow.C(); chunk.Seq != 1 {
		t.Errorf("expected queued chunk seq 1, got %d", chunk.Seq)
	}

	// The fast subscriber is unaffected
	if chunk := <-fast.C(); chunk.Seq != 2 {
		t.Errorf("expected chunk seq 2, got %d", chunk.Seq)
	}
}

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	h := newHub(4, config.OverflowDropOldest)

	sub := h.subscribe("")
	sub.Cancel()
	sub.Cancel()

	select {
	case <-sub.Done():
	default:
		t.Error("expected Done to be closed after Cancel")
	}

	if got := h.subscriberCount(); got != 0 {
		t.Errorf("expected 0 subscribers, got %d", got)
	}

	// Publishing after cancel must not panic or deliver
	h.publish(stdoutChunk(1, "late\n"))
	select {
	case chunk := <-sub.C():
		t.Errorf("cancelled subscription received chunk: %+v", chunk)
	default:
	}
}
