package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"pharmacy/internal/domain"
	"pharmacy/pkg/retry"
)

type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// NewProducerClient builds a client that writes to topic by default.
func NewProducerClient(seedBrokers []string, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(seedBrokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
}

func makeOp(s ...string) string {
	return strings.Join(s, ".")
}

func opErr(err error, op ...string) error {
	return fmt.Errorf("%s: %w", makeOp(op...), err)
}

// OrderEventsProducer publishes order lifecycle events keyed by order id.
type OrderEventsProducer struct {
	opPrefix string
	cl       ProducerClient
	codec    Codec
	retry    retry.Policy
	now      func() time.Time
}

func NewOrderEventsProducer(cl ProducerClient, codec Codec) (*OrderEventsProducer, error) {
	const op = "NewOrderEventsProducer"
	if cl == nil {
		return nil, opErr(errors.New("producer client is nil"), op)
	}
	return &OrderEventsProducer{
		opPrefix: "OrderEventsProducer",
		cl:       cl,
		codec:    codec,
		retry:    retry.Policy{Attempts: 3, Base: 50 * time.Millisecond, Cap: time.Second},
		now:      time.Now,
	}, nil
}

func (p *OrderEventsProducer) OrderCreated(ctx context.Context, o domain.Order) error {
	return p.publish(ctx, orderEventV1(KindOrderCreated, o, "", p.now()))
}

func (p *OrderEventsProducer) OrderStatusChanged(ctx context.Context, o domain.Order, prev domain.OrderStatus) error {
	return p.publish(ctx, orderEventV1(KindOrderStatusChanged, o, prev, p.now()))
}

func (p *OrderEventsProducer) publish(ctx context.Context, ev OrderEventV1) error {
	const op = "publish"
	b, err := p.codec.Encode(ev)
	if err != nil {
		return opErr(err, p.opPrefix, op)
	}
	rec := &kgo.Record{Key: []byte(ev.OrderID), Value: b}
	err = retry.Run(ctx, p.retry, func(ctx context.Context) error {
		return p.cl.ProduceSync(ctx, rec).FirstErr()
	})
	if err != nil {
		return opErr(err, p.opPrefix, op)
	}
	return nil
}

func (p *OrderEventsProducer) Close() {
	log := slog.With("op", makeOp(p.opPrefix, "Close"))
	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}
