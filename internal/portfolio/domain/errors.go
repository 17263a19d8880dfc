package domain

import "github.com/wyfcoding/tradingassistant/pkg/apperror"

var (
	// ErrNotAuthorized 组合不存在或不属于调用者，两种情况不作区分
	ErrNotAuthorized       = apperror.Forbidden("Not authorized")
	ErrInvalidTaxTreatment = apperror.BadRequest("tax_treatment must be one of SIPP, ISA, GIA")
	ErrInvalidCurrency     = apperror.BadRequest("Unknown ISO 4217 currency code")
	ErrUnknownSleeve       = apperror.BadRequest("Unknown sleeve_code")
	ErrUnknownListing      = apperror.NotFound("Listing not found")
	ErrInvalidReference    = apperror.BadRequest("Invalid listing_id or sleeve_code")
	ErrNameRequired        = apperror.BadRequest("name is required")
)
