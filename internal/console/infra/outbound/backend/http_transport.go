package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/alkimyk/cmr/internal/console/domain"
)

// Tope de lectura de una respuesta del backend.
const defaultMaxBody = 4 << 20

// HTTPTransport habla con el backend por HTTP/JSON.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	maxBody int64
}

var _ domain.Transport = (*HTTPTransport)(nil)

type Option func(*HTTPTransport)

// WithHTTPClient reemplaza el cliente (p. ej. el de un httptest.Server).
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) { t.client = c }
}

// WithRateLimit limita las peticiones salientes. rps <= 0 desactiva el límite.
func WithRateLimit(rps float64, burst int) Option {
	return func(t *HTTPTransport) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithMaxBody(n int64) Option {
	return func(t *HTTPTransport) { t.maxBody = n }
}

func NewHTTPTransport(baseURL string, timeout time.Duration, opts ...Option) (*HTTPTransport, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", baseURL)
	}

	t := &HTTPTransport{
		baseURL: strings.TrimRight(u.String(), "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBody: defaultMaxBody,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Do devuelve error solo si no hubo respuesta HTTP; cualquier status llega en Response.
func (t *HTTPTransport) Do(ctx context.Context, req domain.Request) (*domain.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := t.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &domain.Response{Status: resp.StatusCode, Body: data}, nil
}
