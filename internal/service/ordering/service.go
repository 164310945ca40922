// Package ordering реализует оформление заказов и управление их статусами.
//
// Оформление проверяет каждую строку по актуальным данным каталога, фиксирует цены,
// атомарно сохраняет заказ и только после этого списывает остатки. Ошибки списания
// не возвращаются вызывающему: они превращаются в записи о расхождении инвентаря.
package ordering

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Service координирует каталог, хранилище заказов и вспомогательные журналы.
type Service struct {
	orders   domain.OrderRepository
	catalog  domain.CatalogClient
	numbers  domain.OrderNumberGenerator
	drifts   domain.DriftRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository

	logger  *log.Entry
	metrics *metrics.PlacementMetrics
	tracer  trace.Tracer
	clock   func() time.Time
	newID   func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithDriftRepository включает учёт неприменённых списаний.
func WithDriftRepository(repo domain.DriftRepository) Option {
	return func(s *Service) {
		s.drifts = repo
	}
}

// WithOutbox задаёт outbox для доменных событий.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *Service) {
		s.outbox = repo
	}
}

// WithTimeline задаёт журнал истории заказа.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(s *Service) {
		s.timeline = repo
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics включает Prometheus-метрики. Без опции метрики не пишутся.
func WithMetrics(m *metrics.PlacementMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer подменяет tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
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

// WithIDGenerator подменяет генератор идентификаторов заказов, позиций и расхождений.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService создаёт сервис заказов.
func NewService(
	orders domain.OrderRepository,
	catalog domain.CatalogClient,
	numbers domain.OrderNumberGenerator,
	opts ...Option,
) *Service {
	s := &Service{
		orders:  orders,
		catalog: catalog,
		numbers: numbers,
		logger:  log.New().WithField("component", "ordering"),
		tracer:  otel.Tracer("storefront/ordering"),
		clock:   func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
