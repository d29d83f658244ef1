package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKind         = errors.New("unknown record kind")
	ErrExhaustedCandidates = errors.New("action not available on backend")
	ErrRecordNotFound      = errors.New("record not found")
	ErrInvalidFieldMap     = errors.New("invalid field map")
	ErrInvalidRoutes       = errors.New("invalid route table")
)

// CodeRecordNotFound es el código de error con el que el backend distingue
// "el registro no existe" de "la ruta no existe".
const CodeRecordNotFound = "RECORD_NOT_FOUND"

// ValidationError es un 4xx (distinto de 404/405) devuelto por una ruta que existe
// pero rechazó la entrada. No se prueba con otras rutas candidatas.
type ValidationError struct {
	Status  int
	Message string
	Path    string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend rejected request (%d)", e.Status)
	}
	return e.Message
}

// BackendError es un 5xx en una escritura.
type BackendError struct {
	Status  int
	Message string
	Path    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (%d) on %s", e.Status, e.Path)
	}
	return fmt.Sprintf("backend error (%d) on %s: %s", e.Status, e.Path, e.Message)
}
