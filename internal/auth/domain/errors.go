package domain

import "github.com/wyfcoding/tradingassistant/pkg/apperror"

var (
	ErrInvalidCredentials     = apperror.BadRequest("Incorrect email or password")
	ErrInactiveUser           = apperror.BadRequest("Inactive user")
	ErrNotAuthenticated       = apperror.Unauthorized("Not authenticated")
	ErrTokenMissingSubject    = apperror.Unauthorized("Token invalid: missing subject")
	ErrTokenInvalid           = apperror.Unauthorized("Token invalid: could not decode")
	ErrUserDisabled           = apperror.Unauthorized("Inactive user")
	ErrUserNotFound           = apperror.NotFound("User not found")
	ErrInsufficientPrivileges = apperror.BadRequest("The user doesn't have enough privileges")
	ErrCSRFInvalid            = apperror.Forbidden("CSRF token missing or invalid")
	ErrRefreshMissing         = apperror.Unauthorized("Refresh token missing")
	ErrRefreshInvalid         = apperror.Unauthorized("Refresh token invalid or expired")
	ErrRefreshReused          = apperror.Unauthorized("Refresh token reuse detected")
	ErrEmailTaken             = apperror.Conflict("User with this email already exists")
	ErrCannotDisableSelf      = apperror.BadRequest("Administrators cannot disable themselves")
)
