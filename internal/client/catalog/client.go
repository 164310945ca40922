// Package catalog содержит HTTP-клиент сервиса каталога товаров.
//
// Клиент не повторяет запросы: каждая операция выполняет ровно один HTTP-вызов,
// ограниченный таймаутом. Любая ошибка, кроме 404 на чтение товара, считается
// недоступностью каталога (domain.ErrUpstreamUnavailable).
package catalog

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

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// DefaultBaseURL: адрес каталога по умолчанию.
	DefaultBaseURL = "http://localhost:3000"
	// DefaultTimeout ограничивает каждый запрос к каталогу.
	DefaultTimeout = 5 * time.Second
	// DefaultMaxRedirects: сколько перенаправлений допускается до ошибки.
	DefaultMaxRedirects = 5

	maxErrorBody = 4 << 10
)

// Config описывает подключение к каталогу.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRedirects int
}

// DefaultConfig возвращает параметры по умолчанию.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Timeout:      DefaultTimeout,
		MaxRedirects: DefaultMaxRedirects,
	}
}

// Client реализует domain.CatalogClient поверх HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Entry
	tracer     trace.Tracer
}

// Option настраивает клиент.
type Option func(*Client)

// WithLogger задаёт логгер клиента.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransport подменяет транспорт (используется в тестах).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.httpClient.Transport = rt
		}
	}
}

// New создаёт клиент каталога.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid catalog base url %q", cfg.BaseURL)
	}

	maxRedirects := cfg.MaxRedirects
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		logger: log.New().WithField("component", "catalog-client"),
		tracer: otel.Tracer("storefront/catalog-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchProduct читает товар: GET /products/{id}.
func (c *Client) FetchProduct(ctx context.Context, productID string) (domain.Product, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.FetchProduct", trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	resp, err := c.do(ctx, http.MethodGet, c.productURL(productID), nil)
	if err != nil {
		upstream := &UpstreamError{Op: "fetch product", ProductID: productID, Err: err}
		recordError(span, upstream)
		return domain.Product{}, upstream
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		drain(resp.Body)
		span.SetStatus(codes.Error, "not found")
		return domain.Product{}, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstream := newStatusError("fetch product", productID, resp)
		recordError(span, upstream)
		return domain.Product{}, upstream
	}

	var payload ProductPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		upstream := &UpstreamError{
			Op:         "fetch product",
			ProductID:  productID,
			StatusCode: resp.StatusCode,
			Err:        pkgerrors.Wrap(err, "decode product response"),
		}
		recordError(span, upstream)
		return domain.Product{}, upstream
	}
	return payload.ToDomain(), nil
}

// AdjustInventory применяет дельту: PATCH /products/{id}/inventory {"quantity": delta}.
func (c *Client) AdjustInventory(ctx context.Context, productID string, delta int) error {
	ctx, span := c.tracer.Start(ctx, "catalog.AdjustInventory", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("inventory.delta", delta),
	))
	defer span.End()

	body, err := json.Marshal(InventoryAdjustmentPayload{Quantity: delta})
	if err != nil {
		return pkgerrors.Wrap(err, "encode inventory adjustment")
	}

	resp, err := c.do(ctx, http.MethodPatch, c.productURL(productID)+"/inventory", body)
	if err != nil {
		upstream := &UpstreamError{Op: "adjust inventory", ProductID: productID, Err: err}
		recordError(span, upstream)
		return upstream
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstream := newStatusError("adjust inventory", productID, resp)
		recordError(span, upstream)
		return upstream
	}
	drain(resp.Body)
	return nil
}

func (c *Client) productURL(productID string) string {
	return c.baseURL + "/products/" + url.PathEscape(productID)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "build %s request", method)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	fields := log.Fields{"method": method, "url": target, "duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		c.logger.WithError(err).WithFields(fields).Debug("catalog request failed")
		return nil, pkgerrors.Wrapf(err, "%s %s", method, target)
	}
	c.logger.WithFields(fields).WithField("status", resp.StatusCode).Debug("catalog request completed")
	return resp, nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
}

var _ domain.CatalogClient = (*Client)(nil)
