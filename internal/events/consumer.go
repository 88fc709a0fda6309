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
)

type ConsumerClient interface {
	PollFetches(context.Context) kgo.Fetches
	CommitUncommittedOffsets(context.Context) error
	Close()
}

// NewConsumerClient joins group on topic with manual offset commits.
func NewConsumerClient(seedBrokers []string, topic, group string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(seedBrokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
		kgo.DisableAutoCommit(),
	)
}

// StatusUpdater applies a fulfillment status to an order.
type StatusUpdater interface {
	ApplyFulfillment(ctx context.Context, orderID string, status domain.OrderStatus, tracking string) (*domain.Order, error)
}

// FulfillmentConsumer feeds fulfillment updates into the order recorder.
// Updates the recorder rejects as invalid are logged and skipped; storage
// failures leave offsets uncommitted so the batch is fetched again.
type FulfillmentConsumer struct {
	opPrefix      string
	cl            ConsumerClient
	codec         Codec
	updater       StatusUpdater
	slowDownTimer *time.Timer
}

func NewFulfillmentConsumer(cl ConsumerClient, codec Codec, updater StatusUpdater) (*FulfillmentConsumer, error) {
	const op = "NewFulfillmentConsumer"
	switch {
	case cl == nil:
		return nil, opErr(errors.New("consumer client is nil"), op)
	case updater == nil:
		return nil, opErr(errors.New("status updater is nil"), op)
	}
	return &FulfillmentConsumer{
		opPrefix:      "FulfillmentConsumer",
		cl:            cl,
		codec:         codec,
		updater:       updater,
		slowDownTimer: time.NewTimer(0),
	}, nil
}

func (c *FulfillmentConsumer) Run(ctx context.Context) {
	const op = "Run"
	log := slog.With("op", makeOp(c.opPrefix, op))
	log.Info("running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := c.consume(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				log.Error("failed to consume", "err", err)
				c.slowDown()
			}
		}
	}
}

func (c *FulfillmentConsumer) consume(ctx context.Context) error {
	const op = "consume"
	fetches := c.cl.PollFetches(ctx)
	if err := fetches.Err0(); err != nil {
		return opErr(err, c.opPrefix, op)
	}
	if err := fetchErrors(fetches); err != nil {
		return opErr(err, c.opPrefix, op)
	}
	if fetches.Empty() {
		return nil
	}
	if err := c.processFetches(ctx, fetches); err != nil {
		return opErr(err, c.opPrefix, op)
	}
	if err := c.cl.CommitUncommittedOffsets(ctx); err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

func fetchErrors(fetches kgo.Fetches) error {
	var msgs []string
	fetches.EachError(func(t string, p int32, err error) {
		msgs = append(msgs, fmt.Sprintf("topic %q partition %d: %q", t, p, err))
	})
	if len(msgs) != 0 {
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}

func (c *FulfillmentConsumer) processFetches(ctx context.Context, fetches kgo.Fetches) error {
	const op = "processFetches"
	log := slog.With("op", makeOp(c.opPrefix, op))

	var records []*kgo.Record
	fetches.EachRecord(func(r *kgo.Record) { records = append(records, r) })

	for _, r := range records {
		var u FulfillmentUpdateV1
		if err := c.codec.Decode(r.Value, &u); err != nil {
			log.Error("failed to decode value", "err", err, "offset", r.Offset)
			continue
		}
		_, err := c.updater.ApplyFulfillment(ctx, u.OrderID, domain.OrderStatus(u.Status), u.TrackingNumber)
		var persistErr *domain.PersistenceError
		switch {
		case err == nil:
		case errors.As(err, &persistErr):
			return opErr(err, c.opPrefix, op)
		default:
			log.Warn("fulfillment update skipped", "order_id", u.OrderID, "status", u.Status, "err", err)
		}
	}
	return nil
}

func (c *FulfillmentConsumer) slowDown() {
	c.slowDownTimer.Reset(time.Second)
	<-c.slowDownTimer.C
}

func (c *FulfillmentConsumer) Close() {
	log := slog.With("op", makeOp(c.opPrefix, "Close"))
	c.slowDownTimer.Stop()
	log.Info("closing consumer...")
	c.cl.Close()
	log.Info("consumer is closed")
}
