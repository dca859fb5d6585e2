package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/catalogops/price-sync/internal/event"
	"github.com/catalogops/price-sync/internal/model"
	"github.com/catalogops/price-sync/internal/repository"
	"github.com/catalogops/price-sync/internal/storage/db"
	"github.com/catalogops/price-sync/pkg/outbox"
	"github.com/catalogops/price-sync/pkg/ptr"
)

type CreateProductParams struct {
	Code  string
	Name  string
	Price float64
}

type ProductService interface {
	CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error)
	GetProductByCode(ctx context.Context, code string) (model.Product, error)
	ListAllProducts(ctx context.Context) ([]model.Product, error)
	// UpdateProductPrice changes the product's price and records a
	// PriceChangedEvent in the outbox in the same transaction; the relay
	// publishes it keyed by product code.
	UpdateProductPrice(ctx context.Context, code string, price float64) (model.Product, error)
	DeleteProductByCode(ctx context.Context, code string) error
}

type productService struct {
	db            db.DB
	productRepo   repository.ProductRepository
	outboxMsgRepo repository.OutboxMsgRepository
}

func NewProductService(
	db db.DB,
	productRepo repository.ProductRepository,
	outboxMsgRepo repository.OutboxMsgRepository,
) ProductService {
	return &productService{
		db:            db,
		productRepo:   productRepo,
		outboxMsgRepo: outboxMsgRepo,
	}
}

func (s *productService) CreateProduct(ctx context.Context, params CreateProductParams) (model.Product, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return model.Product{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now()
	product := model.Product{
		ID:        id,
		Code:      params.Code,
		Name:      params.Name,
		Price:     params.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.productRepo.CreateProduct(ctx, product); err != nil {
		return model.Product{}, fmt.Errorf("product repository create product: %w", err)
	}

	return product, nil
}

func (s *productService) GetProductByCode(ctx context.Context, code string) (model.Product, error) {
	product, err := s.productRepo.GetProductByCode(ctx, code)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository get product by code: %w", err)
	}

	return product, nil
}

func (s *productService) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.productRepo.ListAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("product repository list all products: %w", err)
	}

	return products, nil
}

func (s *productService) UpdateProductPrice(ctx context.Context, code string, price float64) (model.Product, error) {
	product, err := s.productRepo.GetProductByCode(ctx, code)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository get product by code: %w", err)
	}

	ev := event.PriceChangedEvent{
		ProductCode: code,
		Price:       price,
	}
	evBytes, err := json.Marshal(ev)
	if err != nil {
		return model.Product{}, fmt.Errorf("marshal event: %w", err)
	}

	if err := s.db.WithTx(ctx, func(db db.DB) error {
		if err := s.productRepo.
			WithDB(db).
			UpdateProductPrice(ctx, code, price); err != nil {
			return fmt.Errorf("product repository update product price: %w", err)
		}

		if err := s.outboxMsgRepo.
			WithDB(db).
			CreateOutboxMsg(ctx, repository.CreateOutboxMsgParams{
				Topic:        event.TopicProductPriceChanges,
				Headers:      outbox.BuildHeaders(ctx),
				Payload:      evBytes,
				PartitionKey: ptr.New(code),
			}); err != nil {
			return fmt.Errorf("outbox msg repository create outbox msg: %w", err)
		}

		return nil
	}); err != nil {
		return model.Product{}, fmt.Errorf("db with tx: %w", err)
	}

	product.Price = price
	return product, nil
}

func (s *productService) DeleteProductByCode(ctx context.Context, code string) error {
	if err := s.productRepo.DeleteProductByCode(ctx, code); err != nil {
		return fmt.Errorf("product repository delete product by code: %w", err)
	}

	return nil
}
