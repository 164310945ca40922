// Package catalog реализует управление товарами и остатками для сервиса каталога.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	skuAttempts       = 10
	skuBaseMaxLen     = 10
	skuBaseMinLen     = 4
	skuRandomLen      = 4
	fallbackRandomLen = 7
	base36Alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	maxNameLen     = 255
	maxCurrencyLen = 10
	maxSKULen      = 100
)

// Service управляет каталогом товаров.
type Service struct {
	repo   domain.ProductRepository
	logger *log.Entry
	clock  func() time.Time
	newID  func() string
	random func(n int) string
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов товаров.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithRandom подменяет генератор случайной части SKU.
func WithRandom(random func(n int) string) Option {
	return func(s *Service) {
		if random != nil {
			s.random = random
		}
	}
}

// NewService создаёт сервис каталога.
func NewService(repo domain.ProductRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: log.New().WithField("component", "catalog"),
		clock:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		random: randomBase36,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create создаёт товар с автоматически сгенерированным SKU.
func (s *Service) Create(ctx context.Context, in domain.NewProduct) (domain.Product, error) {
	if err := validateNewProduct(in); err != nil {
		return domain.Product{}, err
	}
	sku, err := s.generateSKU(ctx, in.Name)
	if err != nil {
		return domain.Product{}, err
	}

	now := s.clock()
	product := domain.Product{
		ID:             s.newID(),
		SKU:            sku,
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		Currency:       in.Currency,
		InventoryCount: in.InventoryCount,
		Status:         domain.ProductStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if product.Currency == "" {
		product.Currency = domain.DefaultCurrency
	}
	if in.Status != nil {
		product.Status = *in.Status
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return domain.Product{}, err
	}
	s.logger.WithFields(log.Fields{"product_id": product.ID, "sku": product.SKU}).Info("product created")
	return product, nil
}

// Get возвращает товар по идентификатору.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.Get(ctx, id)
}

// GetBySKU возвращает товар по SKU.
func (s *Service) GetBySKU(ctx context.Context, sku string) (domain.Product, error) {
	return s.repo.GetBySKU(ctx, sku)
}

// Update применяет частичное обновление. Занятый другим товаром SKU даёт ErrSKUConflict.
func (s *Service) Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	if err := validatePatch(patch); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if patch.SKU != nil && *patch.SKU != product.SKU {
		_, err := s.repo.GetBySKU(ctx, *patch.SKU)
		switch {
		case err == nil:
			return domain.Product{}, fmt.Errorf("product with SKU %s already exists: %w", *patch.SKU, domain.ErrSKUConflict)
		case !errors.Is(err, domain.ErrProductNotFound):
			return domain.Product{}, err
		}
	}

	patch.Apply(&product)
	product.UpdatedAt = s.clock()
	if err := s.repo.Save(ctx, product); err != nil {
		return domain.Product{}, err
	}
	product.Version++
	return product, nil
}

// AdjustInventory атомарно меняет остаток на delta. Уход в минус даёт ErrInsufficientInventory.
func (s *Service) AdjustInventory(ctx context.Context, id string, delta int) (domain.Product, error) {
	product, err := s.repo.AdjustInventory(ctx, id, delta)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientInventory) {
			s.logger.WithFields(log.Fields{
				"product_id": id,
				"delta":      delta,
				"available":  product.InventoryCount,
			}).Info("inventory adjustment rejected")
		}
		return domain.Product{}, err
	}
	return product, nil
}

// Deactivate снимает товар с продажи (статус INACTIVE). Запись сохраняется.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	inactive := domain.ProductStatusInactive
	_, err := s.Update(ctx, id, domain.ProductPatch{Status: &inactive})
	return err
}

// Delete удаляет товар физически.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// List возвращает страницу товаров.
func (s *Service) List(ctx context.Context, query domain.ProductQuery) (domain.ProductPage, error) {
	if err := query.Normalize(); err != nil {
		return domain.ProductPage{}, err
	}
	return s.repo.List(ctx, query)
}

// generateSKU строит SKU вида BASE-<ts36>-<rand>. После skuAttempts коллизий
// возвращает запасной вариант PROD-<ms>-<rand>.
func (s *Service) generateSKU(ctx context.Context, name string) (string, error) {
	base := SKUBase(name)
	now := s.clock()
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	for attempt := 0; attempt < skuAttempts; attempt++ {
		sku := base + "-" + ts + "-" + s.random(skuRandomLen)
		_, err := s.repo.GetBySKU(ctx, sku)
		if errors.Is(err, domain.ErrProductNotFound) {
			return sku, nil
		}
		if err != nil {
			return "", err
		}
	}
	s.logger.WithField("base", base).Warn("sku collisions exhausted, using fallback format")
	return fmt.Sprintf("PROD-%d-%s", now.UnixMilli(), s.random(fallbackRandomLen)), nil
}

// SKUBase переводит название в верхний регистр, оставляет латинские буквы и цифры,
// обрезает до 10 символов и дополняет 'X' до 4.
func SKUBase(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if b.Len() >= skuBaseMaxLen {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if len(base) < skuBaseMinLen {
		base += strings.Repeat("X", skuBaseMinLen-len(base))
	}
	return base
}

func randomBase36(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = base36Alphabet[rand.IntN(len(base36Alphabet))]
	}
	return string(buf)
}

func validateNewProduct(in domain.NewProduct) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidRequest)
	case len(in.Name) > maxNameLen:
		return fmt.Errorf("%w: name must be at most %d characters", domain.ErrInvalidRequest, maxNameLen)
	case !in.Price.IsPositive():
		return fmt.Errorf("%w: price must be positive", domain.ErrInvalidRequest)
	case len(in.Currency) > maxCurrencyLen:
		return fmt.Errorf("%w: currency must be at most %d characters", domain.ErrInvalidRequest, maxCurrencyLen)
	case in.InventoryCount < 0:
		return fmt.Errorf("%w: inventoryCount must be >= 0", domain.ErrInvalidRequest)
	}
	return nil
}

func validatePatch(p domain.ProductPatch) error {
	switch {
	case p.SKU != nil && (strings.TrimSpace(*p.SKU) == "" || len(*p.SKU) > maxSKULen):
		return fmt.Errorf("%w: sku must be 1..%d characters", domain.ErrInvalidRequest, maxSKULen)
	case p.Name != nil && (strings.TrimSpace(*p.Name) == "" || len(*p.Name) > maxNameLen):
		return fmt.Errorf("%w: name must be 1..%d characters", domain.ErrInvalidRequest, maxNameLen)
	case p.Price != nil && !p.Price.IsPositive():
		return fmt.Errorf("%w: price must be positive", domain.ErrInvalidRequest)
	case p.Currency != nil && len(*p.Currency) > maxCurrencyLen:
		return fmt.Errorf("%w: currency must be at most %d characters", domain.ErrInvalidRequest, maxCurrencyLen)
	case p.InventoryCount != nil && *p.InventoryCount < 0:
		return fmt.Errorf("%w: inventoryCount must be >= 0", domain.ErrInvalidRequest)
	}
	return nil
}
