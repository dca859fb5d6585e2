package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/catalogops/price-sync/internal/apperr"
	"github.com/catalogops/price-sync/internal/model"
	"github.com/catalogops/price-sync/internal/storage/db"
)

// ProductRepository is the record store for products, keyed by code.
type ProductRepository interface {
	WithDB(db db.DB) ProductRepository
	CreateProduct(ctx context.Context, product model.Product) error
	GetProductByCode(ctx context.Context, code string) (model.Product, error)
	// SaveProduct upserts the mutable fields (name, price) of the row with
	// the product's code.
	SaveProduct(ctx context.Context, product model.Product) error
	UpdateProductPrice(ctx context.Context, code string, price float64) error
	ListAllProducts(ctx context.Context) ([]model.Product, error)
	DeleteProductByCode(ctx context.Context, code string) error
}

type productRepository struct {
	db db.DB
}

func NewProductRepository(db db.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r productRepository) WithDB(db db.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r productRepository) CreateProduct(ctx context.Context, product model.Product) error {
	price, err := numericPrice(product.Price)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO products (id, code, name, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, product.ID, product.Code, product.Name, price, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.ProductCodeExistsErr.WrapParent(err)
		}
		return storeErr("create product", err)
	}

	return nil
}

func (r productRepository) GetProductByCode(ctx context.Context, code string) (model.Product, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, code, name, price, created_at, updated_at
		FROM products
		WHERE code = $1
	`, code)

	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Product{}, apperr.ProductNotFoundErr.WrapParent(err)
	}
	if err != nil {
		return model.Product{}, storeErr("get product by code", err)
	}

	return product, nil
}

func (r productRepository) SaveProduct(ctx context.Context, product model.Product) error {
	price, err := numericPrice(product.Price)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO products (id, code, name, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			name       = EXCLUDED.name,
			price      = EXCLUDED.price,
			updated_at = EXCLUDED.updated_at
	`, product.ID, product.Code, product.Name, price, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return storeErr("save product", err)
	}

	return nil
}

func (r productRepository) UpdateProductPrice(ctx context.Context, code string, priceValue float64) error {
	price, err := numericPrice(priceValue)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE products
		SET price = $2, updated_at = NOW()
		WHERE code = $1
	`, code, price)
	if err != nil {
		return storeErr("update product price", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ProductNotFoundErr
	}

	return nil
}

func (r productRepository) ListAllProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, code, name, price, created_at, updated_at
		FROM products
		ORDER BY created_at
	`)
	if err != nil {
		return nil, storeErr("list all products", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (r productRepository) DeleteProductByCode(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE code = $1`, code)
	if err != nil {
		return storeErr("delete product by code", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ProductNotFoundErr
	}

	return nil
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		product model.Product
		price   pgtype.Numeric
	)
	if err := row.Scan(
		&product.ID,
		&product.Code,
		&product.Name,
		&price,
		&product.CreatedAt,
		&product.UpdatedAt,
	); err != nil {
		return model.Product{}, err
	}

	priceValue, err := price.Float64Value()
	if err != nil {
		return model.Product{}, fmt.Errorf("convert price to float64: %w", err)
	}
	product.Price = priceValue.Float64

	return product, nil
}

func numericPrice(value float64) (pgtype.Numeric, error) {
	var price pgtype.Numeric
	if err := price.Scan(strconv.FormatFloat(value, 'f', 2, 64)); err != nil {
		return price, fmt.Errorf("scan price: %w", err)
	}
	return price, nil
}
