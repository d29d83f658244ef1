package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/alkimyk/cmr/internal/console/domain"
)

// TransportHandler responde una petición en FakeTransport.
type TransportHandler func(ctx context.Context, req domain.Request) (*domain.Response, error)

// FakeTransport es un backend programable: cada "MÉTODO /ruta" tiene su respuesta
// y las rutas sin registrar devuelven 404 de ruta inexistente.
type FakeTransport struct {
	mu       sync.Mutex
	handlers map[string]TransportHandler
	calls    []domain.Request
}

var _ domain.Transport = (*FakeTransport)(nil)

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{handlers: map[string]TransportHandler{}}
}

// On registra un handler para method + path.
func (f *FakeTransport) On(method, path string, h TransportHandler) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method+" "+path] = h
	return f
}

// OnJSON responde siempre status con body serializado a JSON.
func (f *FakeTransport) OnJSON(method, path string, status int, body any) *FakeTransport {
	data, _ := json.Marshal(body)
	return f.OnRaw(method, path, status, data)
}

// OnRaw responde siempre status con el body tal cual.
func (f *FakeTransport) OnRaw(method, path string, status int, body []byte) *FakeTransport {
	return f.On(method, path, func(context.Context, domain.Request) (*domain.Response, error) {
		return &domain.Response{Status: status, Body: body}, nil
	})
}

// Fail simula un error de conexión.
func (f *FakeTransport) Fail(method, path string, err error) *FakeTransport {
	return f.On(method, path, func(context.Context, domain.Request) (*domain.Response, error) {
		return nil, err
	})
}

func (f *FakeTransport) Do(ctx context.Context, req domain.Request) (*domain.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	h, ok := f.handlers[req.Method+" "+req.Path]
	f.mu.Unlock()

	if !ok {
		return &domain.Response{Status: 404, Body: []byte(`{"error":{"code":"NOT_FOUND","message":"route not found"}}`)}, nil
	}
	return h(ctx, req)
}

// Calls devuelve las peticiones recibidas en orden.
func (f *FakeTransport) Calls() []domain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// Paths devuelve "MÉTODO /ruta" de cada petición recibida.
func (f *FakeTransport) Paths() []string {
	calls := f.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Method+" "+c.Path)
	}
	return out
}

// Reset olvida las peticiones recibidas, no los handlers.
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
