package domain

import "errors"

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrUnknownResource = errors.New("unknown resource")
)

// ValidationError indica una entrada rechazada; Field puede venir vacío.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
