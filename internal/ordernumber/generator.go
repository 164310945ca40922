// Package ordernumber выдаёт номера заказов вида ORD-<ULID>.
//
// ULID состоит из 48-битной метки времени в миллисекундах и 80 бит энтропии.
// Внутри одного процесса номера строго возрастают: в пределах одной миллисекунды
// энтропия монотонно увеличивается, а откат часов не уменьшает метку времени.
package ordernumber

import (
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultPrefix: префикс номера заказа.
const DefaultPrefix = "ORD-"

// Generator потокобезопасен; это единственное разделяемое состояние при оформлении заказов.
type Generator struct {
	mu      sync.Mutex
	prefix  string
	clock   func() time.Time
	entropy *ulid.MonotonicEntropy
	lastMs  uint64
}

// Option настраивает генератор.
type Option func(*Generator)

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithEntropy подменяет источник случайности.
func WithEntropy(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.entropy = ulid.Monotonic(r, 0)
		}
	}
}

// WithPrefix задаёт префикс номера.
func WithPrefix(prefix string) Option {
	return func(g *Generator) {
		g.prefix = prefix
	}
}

// New создаёт генератор с криптографической энтропией и системными часами.
func New(opts ...Option) *Generator {
	g := &Generator{
		prefix:  DefaultPrefix,
		clock:   time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// maxEntropyResets ограничивает число замен сломанного источника энтропии за один вызов.
const maxEntropyResets = 3

// Next возвращает следующий номер заказа.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := timestamp(g.clock())
	if ms < g.lastMs {
		ms = g.lastMs
	}

	for resets := 0; ; {
		id, err := ulid.New(ms, g.entropy)
		if err == nil {
			g.lastMs = ms
			return g.prefix + id.String()
		}
		if errors.Is(err, ulid.ErrMonotonicOverflow) && ms < ulid.MaxTime() {
			// Энтропия миллисекунды исчерпана: переходим на следующую.
			ms++
			continue
		}
		if resets < maxEntropyResets {
			// Источник энтропии сломан или метка уже предельная: начинаем новую последовательность.
			g.entropy = ulid.Monotonic(rand.Reader, 0)
			resets++
			continue
		}
		g.lastMs = ms
		return g.prefix + ulid.MustNew(ms, rand.Reader).String()
	}
}

// timestamp переводит время в миллисекунды ULID, прижимая его к [0, ulid.MaxTime()].
func timestamp(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	if uint64(ms) > ulid.MaxTime() {
		return ulid.MaxTime()
	}
	return uint64(ms)
}
