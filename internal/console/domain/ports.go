package domain

import (
	"context"
	"net/url"
)

// Request es una llamada al backend, ya resuelta a una ruta concreta.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response es la respuesta cruda del backend.
type Response struct {
	Status int
	Body   []byte
}

// OK indica un 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Transport envía peticiones al backend. Un error indica fallo de conexión;
// cualquier status HTTP llega como Response.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}
