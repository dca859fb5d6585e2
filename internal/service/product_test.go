package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogops/price-sync/internal/apperr"
	"github.com/catalogops/price-sync/internal/event"
	"github.com/catalogops/price-sync/internal/model"
	"github.com/catalogops/price-sync/internal/repository"
	"github.com/catalogops/price-sync/internal/service"
	"github.com/catalogops/price-sync/internal/storage/db"
)

// passthroughDB satisfies db.DB for services that only need WithTx plumbing.
type passthroughDB struct{}

var _ db.DB = passthroughDB{}

func (passthroughDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (passthroughDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (passthroughDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (passthroughDB) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	return nil
}

func (d passthroughDB) WithTx(_ context.Context, txFunc func(db.DB) error) error {
	return txFunc(d)
}

type memProductRepo struct {
	products map[string]model.Product
}

var _ repository.ProductRepository = (*memProductRepo)(nil)

func newMemProductRepo(seed ...model.Product) *memProductRepo {
	products := make(map[string]model.Product, len(seed))
	for _, p := range seed {
		products[p.Code] = p
	}
	return &memProductRepo{products: products}
}

func (m *memProductRepo) WithDB(_ db.DB) repository.ProductRepository { return m }

func (m *memProductRepo) CreateProduct(_ context.Context, product model.Product) error {
	if _, exists := m.products[product.Code]; exists {
		return apperr.ProductCodeExistsErr
	}
	m.products[product.Code] = product
	return nil
}

func (m *memProductRepo) GetProductByCode(_ context.Context, code string) (model.Product, error) {
	product, exists := m.products[code]
	if !exists {
		return model.Product{}, apperr.ProductNotFoundErr
	}
	return product, nil
}

func (m *memProductRepo) SaveProduct(_ context.Context, product model.Product) error {
	m.products[product.Code] = product
	return nil
}

func (m *memProductRepo) UpdateProductPrice(_ context.Context, code string, price float64) error {
	product, exists := m.products[code]
	if !exists {
		return apperr.ProductNotFoundErr
	}
	product.Price = price
	m.products[code] = product
	return nil
}

func (m *memProductRepo) ListAllProducts(_ context.Context) ([]model.Product, error) {
	products := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	return products, nil
}

func (m *memProductRepo) DeleteProductByCode(_ context.Context, code string) error {
	if _, exists := m.products[code]; !exists {
		return apperr.ProductNotFoundErr
	}
	delete(m.products, code)
	return nil
}

type memOutboxRepo struct {
	created []repository.CreateOutboxMsgParams
}

var _ repository.OutboxMsgRepository = (*memOutboxRepo)(nil)

func (m *memOutboxRepo) WithDB(_ db.DB) repository.OutboxMsgRepository { return m }

func (m *memOutboxRepo) CreateOutboxMsg(_ context.Context, params repository.CreateOutboxMsgParams) error {
	m.created = append(m.created, params)
	return nil
}

func (m *memOutboxRepo) ListUnprocessedOutboxMsgs(_ context.Context, _ repository.ListUnprocessedOutboxMsgsParams) ([]repository.ListUnprocessedOutboxMsgsResult, error) {
	return nil, nil
}

func (m *memOutboxRepo) BulkUpdateOutboxMsgs(_ context.Context, _ repository.BulkUpdateOutboxMsgsParams) error {
	return nil
}

func TestCreateProduct(t *testing.T) {
	productRepo := newMemProductRepo()
	svc := service.NewProductService(passthroughDB{}, productRepo, &memOutboxRepo{})

	product, err := svc.CreateProduct(t.Context(), service.CreateProductParams{
		Code:  "P100",
		Name:  "Product One",
		Price: 10.00,
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, product.ID)
	assert.Equal(t, "P100", product.Code)
	assert.InDelta(t, 10.00, product.Price, 0.001)
	assert.False(t, product.CreatedAt.IsZero())

	_, err = svc.CreateProduct(t.Context(), service.CreateProductParams{
		Code:  "P100",
		Name:  "Duplicate",
		Price: 1.00,
	})
	assert.ErrorIs(t, err, apperr.ProductCodeExistsErr)
}

func TestUpdateProductPriceWritesOutboxMsg(t *testing.T) {
	productRepo := newMemProductRepo(model.Product{Code: "P100", Name: "Product One", Price: 10.00})
	outboxRepo := &memOutboxRepo{}
	svc := service.NewProductService(passthroughDB{}, productRepo, outboxRepo)

	product, err := svc.UpdateProductPrice(t.Context(), "P100", 14.50)
	require.NoError(t, err)
	assert.InDelta(t, 14.50, product.Price, 0.001)

	stored, err := productRepo.GetProductByCode(t.Context(), "P100")
	require.NoError(t, err)
	assert.InDelta(t, 14.50, stored.Price, 0.001)

	require.Len(t, outboxRepo.created, 1)
	msg := outboxRepo.created[0]
	assert.Equal(t, event.TopicProductPriceChanges, msg.Topic)
	require.NotNil(t, msg.PartitionKey)
	assert.Equal(t, "P100", *msg.PartitionKey)

	var ev event.PriceChangedEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &ev))
	assert.Equal(t, event.PriceChangedEvent{ProductCode: "P100", Price: 14.50}, ev)
}

func TestUpdateProductPriceUnknownCode(t *testing.T) {
	svc := service.NewProductService(passthroughDB{}, newMemProductRepo(), &memOutboxRepo{})

	_, err := svc.UpdateProductPrice(t.Context(), "GONE", 14.50)
	assert.ErrorIs(t, err, apperr.ProductNotFoundErr)
}

func TestDeleteProductByCode(t *testing.T) {
	productRepo := newMemProductRepo(model.Product{Code: "P100", Name: "Product One", Price: 10.00})
	svc := service.NewProductService(passthroughDB{}, productRepo, &memOutboxRepo{})

	require.NoError(t, svc.DeleteProductByCode(t.Context(), "P100"))
	assert.ErrorIs(t, svc.DeleteProductByCode(t.Context(), "P100"), apperr.ProductNotFoundErr)
}
