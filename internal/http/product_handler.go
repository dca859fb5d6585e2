package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/catalogops/price-sync/internal/apperr"
	"github.com/catalogops/price-sync/internal/model"
	"github.com/catalogops/price-sync/internal/service"
	"github.com/catalogops/price-sync/pkg/validator"
)

type errorResponder func(w http.ResponseWriter, r *http.Request, err error)

type productHandler struct {
	productSvc   service.ProductService
	validate     validator.Validator
	respondError errorResponder
}

func newProductHandler(productSvc service.ProductService, validate validator.Validator, respondError errorResponder) *productHandler {
	return &productHandler{
		productSvc:   productSvc,
		validate:     validate,
		respondError: respondError,
	}
}

type CreateProductRequest struct {
	Code  string  `json:"code" validate:"required,productcode,max=64"`
	Name  string  `json:"name" validate:"required,max=255"`
	Price float64 `json:"price" validate:"gte=0"`
}

type UpdateProductPriceRequest struct {
	Price float64 `json:"price" validate:"gte=0"`
}

type ProductResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func productToResponse(product model.Product) ProductResponse {
	return ProductResponse{
		ID:        product.ID,
		Code:      product.Code,
		Name:      product.Name,
		Price:     product.Price,
		CreatedAt: product.CreatedAt,
		UpdatedAt: product.UpdatedAt,
	}
}

func (h *productHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, apperr.ValidationErr.WrapParent(err))
		return
	}
	if err := h.validate.Validate(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	product, err := h.productSvc.CreateProduct(r.Context(), service.CreateProductParams{
		Code:  req.Code,
		Name:  req.Name,
		Price: req.Price,
	})
	if err != nil {
		h.respondError(w, r, fmt.Errorf("product service create product: %w", err))
		return
	}

	h.respondJSON(w, r, http.StatusCreated, productToResponse(product))
}

func (h *productHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productSvc.ListAllProducts(r.Context())
	if err != nil {
		h.respondError(w, r, fmt.Errorf("product service list all products: %w", err))
		return
	}

	items := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		items = append(items, productToResponse(product))
	}

	h.respondJSON(w, r, http.StatusOK, items)
}

func (h *productHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	product, err := h.productSvc.GetProductByCode(r.Context(), code)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("product service get product by code: %w", err))
		return
	}

	h.respondJSON(w, r, http.StatusOK, productToResponse(product))
}

func (h *productHandler) UpdateProductPrice(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req UpdateProductPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, apperr.ValidationErr.WrapParent(err))
		return
	}
	if err := h.validate.Validate(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	product, err := h.productSvc.UpdateProductPrice(r.Context(), code, req.Price)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("product service update product price: %w", err))
		return
	}

	h.respondJSON(w, r, http.StatusOK, productToResponse(product))
}

func (h *productHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.productSvc.DeleteProductByCode(r.Context(), code); err != nil {
		h.respondError(w, r, fmt.Errorf("product service delete product by code: %w", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *productHandler) respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "error encoding response", slog.Any("error", err))
	}
}
