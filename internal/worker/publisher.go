package worker

import (
	"log/slog"
	"sync/atomic"

	"github.com/nsqio/go-nsq"
)

// LocalPublisher delivers messages to in-process handlers instead of nsqd.
// It stands in for the NSQ producer when events are disabled.
type LocalPublisher struct {
	handlers map[string][]nsq.Handler
	seq      atomic.Uint64
}

func NewLocalPublisher() *LocalPublisher {
	return &LocalPublisher{handlers: map[string][]nsq.Handler{}}
}

// Subscribe registers h for topic. Not safe to call concurrently with Publish.
func (p *LocalPublisher) Subscribe(topic string, h nsq.Handler) {
	p.handlers[topic] = append(p.handlers[topic], h)
}

// Publish runs every handler for topic synchronously. Handler errors are
// logged; there is no requeue.
func (p *LocalPublisher) Publish(topic string, body []byte) error {
	for _, h := range p.handlers[topic] {
		msg := nsq.NewMessage(p.nextID(), body)
		if err := h.HandleMessage(msg); err != nil {
			slog.Error("local handler failed", "topic", topic, "error", err)
		}
	}
	return nil
}

func (p *LocalPublisher) nextID() nsq.MessageID {
	var id nsq.MessageID
	n := p.seq.Add(1)
	for i := len(id) - 1; i >= 0 && n > 0; i-- {
		id[i] = byte('0' + n%10)
		n /= 10
	}
	return id
}
