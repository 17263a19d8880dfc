package domain

import "github.com/wyfcoding/tradingassistant/pkg/apperror"

var (
	ErrISINExists          = apperror.Conflict("Instrument with this ISIN already exists")
	ErrListingExists       = apperror.Conflict("Listing with this ticker and exchange already exists for the instrument")
	ErrInstrumentNotFound  = apperror.NotFound("Instrument not found")
	ErrInvalidISIN         = apperror.BadRequest("ISIN must be exactly 12 characters")
	ErrInvalidCurrency     = apperror.BadRequest("Unknown ISO 4217 currency code")
	ErrInvalidPriceScale   = apperror.BadRequest("price_scale must be MAJOR or MINOR")
	ErrInstrumentTypeEmpty = apperror.BadRequest("instrument_type is required")
)
