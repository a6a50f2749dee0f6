package services

import (
	"errors"

	"github.com/kumamontessori/kuma/internal/db"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrShippingNotFound = errors.New("shipping not found")
	ErrReceiptInvalid   = errors.New("invalid receipt token")
	ErrPaymentFailed    = errors.New("failed to create payment preference")
	ErrSetupClosed      = errors.New("an administrator already exists")

	// ErrInvalidStatusTransition is returned when an order cannot move to the requested status.
	ErrInvalidStatusTransition = db.ErrInvalidStatusTransition
)

// UserError carries a message that is safe to show to the customer or the admin.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func userError(message string) error {
	return &UserError{Message: message}
}

// UserMessage returns the user facing message carried by err, if any.
func UserMessage(err error) (string, bool) {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Message, true
	}
	return "", false
}

var ErrInvalidCredentials = &UserError{Message: "Credenciales inválidas"}
