package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Códigos de error que viajan en el cuerpo de la respuesta.
const (
	CodeValidation     = "VALIDATION_FAILED"
	CodeRecordNotFound = "RECORD_NOT_FOUND"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
	CodeUnavailable    = "BACKEND_UNAVAILABLE"
)

// ErrorResponse define la estructura estándar para las respuestas de error.
type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ErrorEnvelope es el cuerpo completo: {"error": {...}}.
type ErrorEnvelope struct {
	Error ErrorResponse `json:"error"`
}

// SendSuccess envía una respuesta exitosa con un payload de datos.
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"data": data,
	})
}

// SendError envía una respuesta de error con un formato estandarizado.
func SendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorEnvelope{
		Error: ErrorResponse{
			Code:    code,
			Message: message,
		},
	})
}

// --- Helpers específicos para errores comunes ---

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, CodeValidation, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, CodeNotFound, message)
}

func SendRecordNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, CodeRecordNotFound, message)
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, CodeInternal, message)
}
