// Package events moves order lifecycle messages through Kafka.
package events

import (
	"fmt"
	"time"

	"github.com/hamba/avro/v2"

	"pharmacy/internal/domain"
)

const OrderEventSchemaTextV1 = `{
	"type": "record",
	"name": "OrderEvent",
	"namespace": "pharmacy.orders.v1",
	"fields": [
		{"name": "kind", "type": "string"},
		{"name": "order_id", "type": "string"},
		{"name": "user_id", "type": "string"},
		{"name": "status", "type": "string"},
		{"name": "previous_status", "type": "string", "default": ""},
		{"name": "total_amount", "type": "string"},
		{"name": "item_count", "type": "int"},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

const FulfillmentSchemaTextV1 = `{
	"type": "record",
	"name": "FulfillmentUpdate",
	"namespace": "pharmacy.fulfillment.v1",
	"fields": [
		{"name": "order_id", "type": "string"},
		{"name": "status", "type": "string"},
		{"name": "tracking_number", "type": "string", "default": ""}
	]
}`

const (
	KindOrderCreated       = "order_created"
	KindOrderStatusChanged = "order_status_changed"
)

type OrderEventV1 struct {
	Kind           string    `avro:"kind"`
	OrderID        string    `avro:"order_id"`
	UserID         string    `avro:"user_id"`
	Status         string    `avro:"status"`
	PreviousStatus string    `avro:"previous_status"`
	TotalAmount    string    `avro:"total_amount"`
	ItemCount      int       `avro:"item_count"`
	OccurredAt     time.Time `avro:"occurred_at"`
}

type FulfillmentUpdateV1 struct {
	OrderID        string `avro:"order_id"`
	Status         string `avro:"status"`
	TrackingNumber string `avro:"tracking_number"`
}

// Codec encodes and decodes one avro schema.
type Codec struct {
	schema avro.Schema
}

func NewCodec(schemaText string) (Codec, error) {
	const op = "NewCodec"
	s, err := avro.Parse(schemaText)
	if err != nil {
		return Codec{}, fmt.Errorf("%s: %w", op, err)
	}
	return Codec{schema: s}, nil
}

func (c Codec) Encode(v any) ([]byte, error) {
	return avro.Marshal(c.schema, v)
}

func (c Codec) Decode(data []byte, v any) error {
	return avro.Unmarshal(c.schema, data, v)
}

func orderEventV1(kind string, o domain.Order, prev domain.OrderStatus, at time.Time) OrderEventV1 {
	items := 0
	for _, it := range o.Items {
		items += it.Quantity
	}
	return OrderEventV1{
		Kind:           kind,
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		PreviousStatus: string(prev),
		TotalAmount:    o.TotalAmount.StringFixed(2),
		ItemCount:      items,
		OccurredAt:     at.UTC().Truncate(time.Millisecond),
	}
}
