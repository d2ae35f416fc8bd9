package realtime

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// Notifier consumes committed events.
type Notifier interface {
	Notify(ev domain.Event)
}

// Fanout hands each event to every notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ev domain.Event) {
	for _, n := range f {
		n.Notify(ev)
	}
}

// Publisher ships one event to an external broker.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

const publishTimeout = 5 * time.Second

// AsyncSink queues events for a Publisher and publishes them in order from a single
// worker. Notify never blocks; when the queue is full the event is dropped and counted.
type AsyncSink struct {
	name  string
	pub   Publisher
	queue chan domain.Event
	log   logrus.FieldLogger
}

func NewAsyncSink(name string, pub Publisher, size int, logger logrus.FieldLogger) *AsyncSink {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AsyncSink{
		name:  name,
		pub:   pub,
		queue: make(chan domain.Event, size),
		log:   logger.WithField("sink", name),
	}
}

func (s *AsyncSink) Notify(ev domain.Event) {
	select {
	case s.queue <- ev:
	default:
		metrics.EventsDropped.WithLabelValues(s.name).Inc()
		s.log.WithFields(logrus.Fields{"code": ev.GameCode, "event": ev.Type}).Warn("sink queue full, event dropped")
	}
}

// Run publishes queued events until ctx is cancelled. Events still queued at that point
// are published before returning, each bounded by its own timeout.
func (s *AsyncSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case ev := <-s.queue:
			s.publish(ctx, ev)
		}
	}
}

func (s *AsyncSink) drain() {
	for {
		select {
		case ev := <-s.queue:
			s.publish(context.Background(), ev)
		default:
			return
		}
	}
}

func (s *AsyncSink) publish(ctx context.Context, ev domain.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(ctx, ev); err != nil {
		metrics.EventsDropped.WithLabelValues(s.name).Inc()
		s.log.WithError(err).WithFields(logrus.Fields{"code": ev.GameCode, "event": ev.Type}).Error("publish event failed")
		return
	}
	metrics.EventsDelivered.WithLabelValues(s.name).Inc()
}
