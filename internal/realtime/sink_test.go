package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
)

type recordingPublisher struct {
	mu   sync.Mutex
	seqs []uint64
	fail bool
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.seqs = append(p.seqs, ev.Seq)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestAsyncSinkPublishesInOrderAndDrains(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewAsyncSink("test", pub, 8, quietLogger())
	for seq := uint64(1); seq <= 3; seq++ {
		sink.Notify(event("ABC123", seq, domain.RoomOrganizer))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(pub.seqs) != 3 || pub.seqs[0] != 1 || pub.seqs[2] != 3 {
		t.Fatalf("published %v", pub.seqs)
	}
}

func TestAsyncSinkDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewAsyncSink("test", pub, 1, quietLogger())
	sink.Notify(event("ABC123", 1))
	sink.Notify(event("ABC123", 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = sink.Run(ctx)
	if len(pub.seqs) != 1 || pub.seqs[0] != 1 {
		t.Fatalf("published %v, want only the first event", pub.seqs)
	}
}

func TestFanoutReachesEveryNotifier(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe("ABC123", domain.RoomOrganizer, nil)
	defer sub.Close()
	pub := &recordingPublisher{fail: true}
	sink := NewAsyncSink("test", pub, 1, quietLogger())

	Fanout{hub, sink}.Notify(event("ABC123", 1, domain.RoomOrganizer))
	if len(sub.C) != 1 || len(sink.queue) != 1 {
		t.Fatalf("hub=%d sink=%d", len(sub.C), len(sink.queue))
	}
}
