package apperr

import "github.com/catalogops/price-sync/pkg/zerror"

const (
	ValidationErrorCode   = "VALIDATION_FAILED"
	ProductNotFoundCode   = "PRODUCT_NOT_FOUND"
	ProductCodeExistsCode = "PRODUCT_CODE_EXISTS"
	StoreUnavailableCode  = "STORE_UNAVAILABLE"
	MalformedEventCode    = "MALFORMED_EVENT"
)

var (
	ValidationErr        = zerror.NewValidationFailed(ValidationErrorCode, "validation error")
	ProductNotFoundErr   = zerror.NewNotFound(ProductNotFoundCode, "product not found")
	ProductCodeExistsErr = zerror.NewConflict(ProductCodeExistsCode, "product code already exists")
	StoreUnavailableErr  = zerror.NewServiceUnavailable(StoreUnavailableCode, "record store unavailable")
	MalformedEventErr    = zerror.NewBadRequest(MalformedEventCode, "malformed price change event")
)
