package registration

import (
	"errors"
	"fmt"

	apperrors "github.com/akeren/event-referrals/pkg/errors"
)

// Sentinel errors for the registration domain.
var (
	ErrConsentRequired         = errors.New("privacy policy must be accepted")
	ErrDuplicateEmail          = errors.New("this email is already registered")
	ErrRegistrationFailed      = errors.New("registration failed")
	ErrConnection              = errors.New("registration store unreachable")
	ErrReferralCodeNotFound    = errors.New("referral code not found")
	ErrCreditAttributionFailed = errors.New("referral credit attribution failed")
	ErrNotificationFailed      = errors.New("registration notification failed")
)

// Error codes returned to the form so it can pick the right inline message.
const (
	CodeConsentRequired    = "CONSENT_REQUIRED"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeRegistrationFailed = "REGISTRATION_FAILED"
	CodeConnectionError    = "CONNECTION_ERROR"
	CodeInvalidRequest     = "INVALID_REQUEST"
)

func wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

func NewConsentRequiredError() *apperrors.AppError {
	return apperrors.NewInvalidRequestError("You must accept the privacy policy to register", ErrConsentRequired)
}

func NewDuplicateEmailError(cause error) *apperrors.AppError {
	return apperrors.NewConflictError("this email is already registered", wrap(ErrDuplicateEmail, cause))
}

func NewRegistrationFailedError(cause error) *apperrors.AppError {
	return apperrors.NewDatabaseError("Registration failed, please try again", wrap(ErrRegistrationFailed, cause))
}

func NewConnectionError(cause error) *apperrors.AppError {
	return apperrors.NewServiceUnavailableError("Connection error, please try again", wrap(ErrConnection, cause))
}

func NewReferralCodeNotFoundError() *apperrors.AppError {
	return apperrors.NewNotFoundError("referral code not found", ErrReferralCodeNotFound)
}

// ErrorCode classifies err for API clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrConsentRequired):
		return CodeConsentRequired
	case errors.Is(err, ErrDuplicateEmail):
		return CodeDuplicateEmail
	case errors.Is(err, ErrConnection):
		return CodeConnectionError
	case apperrors.GetErrorType(err) == apperrors.ErrorTypeInvalidRequest:
		return CodeInvalidRequest
	default:
		return CodeRegistrationFailed
	}
}
