package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy/internal/domain"
)

type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func keyOf(t *testing.T, k map[string]types.AttributeValue) string {
	var v struct {
		Key string `dynamodbav:"state_key"`
	}
	require.NoError(t, attributevalue.UnmarshalMap(k, &v))
	return v.Key
}

type dynamoFunc struct {
	t *testing.T
	*fakeDynamo
}

func (f dynamoFunc) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(f.t, in.Key)]}, nil
}

func (f dynamoFunc) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[keyOf(f.t, in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f dynamoFunc) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, keyOf(f.t, in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
	s := NewDynamoStateStore(dynamoFunc{t: t, fakeDynamo: fake}, "workspace-state")

	_, err := s.GetState(ctx, "ws:1:cart")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutState(ctx, "ws:1:cart", []byte(`{"items":[]}`)))
	v, err := s.GetState(ctx, "ws:1:cart")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(v))

	require.NoError(t, s.DeleteState(ctx, "ws:1:cart"))
	_, err = s.GetState(ctx, "ws:1:cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoStateStore_WrapsClientErrors(t *testing.T) {
	boom := errors.New("throttled")
	s := NewDynamoStateStore(dynamoFunc{t: t, fakeDynamo: &fakeDynamo{err: boom}}, "tbl")
	err := s.PutState(context.Background(), "k", []byte("v"))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "DynamoStateStore.PutState")
}

func TestDecodeMedicines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medicines.json")
	body := `[{"id":"m1","name":"Dolo 650mg","brand":"Micro Labs","price":"30.5","category":"Pain Relief","inStock":true,"rating":4.2}]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	ms, err := NewFileMedicineSource(path).ListMedicines(context.Background())
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.True(t, ms[0].Price.Equal(decimal.RequireFromString("30.5")))

	_, err = DecodeMedicines([]byte(`[{"id":"m1","category":"Pain Relief"},{"id":"m1","category":"Pain Relief"}]`))
	assert.Error(t, err)
	_, err = DecodeMedicines([]byte(`[{"id":"m1","category":"Toys"}]`))
	assert.Error(t, err)
}

func TestGormRows_RoundTrip(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	eta := at.Add(domain.EstimatedDeliveryWindow)
	o := domain.Order{
		ID:                "o1",
		UserID:            "u1",
		Items:             []domain.OrderLine{{CartLine: domain.CartLine{ProductID: "a", Quantity: 2, Price: decimal.NewFromInt(3)}, Subtotal: decimal.NewFromInt(6)}},
		TotalAmount:       decimal.NewFromInt(6),
		Status:            domain.OrderStatusProcessing,
		ShippingAddress:   domain.ShippingAddress{Name: "Asha Rao", City: "Pune"},
		PaymentMethod:     domain.PaymentCOD,
		CreatedAt:         at,
		UpdatedAt:         at,
		EstimatedDelivery: &eta,
	}
	assert.Equal(t, o, orderToRow(o).toDomain())

	p := domain.UserProfile{UID: "u1", Email: "a@b.co", Allergies: []string{"dust"}, CreatedAt: at}
	assert.Equal(t, p, profileToRow(p).toDomain())
}
