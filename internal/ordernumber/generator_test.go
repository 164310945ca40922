package ordernumber

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Format(t *testing.T) {
	g := New()
	number := g.Next()

	assert.True(t, strings.HasPrefix(number, DefaultPrefix), number)
	assert.Len(t, number, len(DefaultPrefix)+26)
}

func TestGenerator_ConcurrentUnique(t *testing.T) {
	const workers = 50
	const perWorker = 200 // 10 000 номеров всего

	// Фиксированные часы: все номера попадают в одну миллисекунду.
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g := New(WithClock(func() time.Time { return fixed }))

	results := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				results <- g.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]struct{}, workers*perWorker)
	for number := range results {
		_, dup := seen[number]
		require.False(t, dup, "duplicate order number %s", number)
		seen[number] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestGenerator_MonotonicWhenClockGoesBack(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{now, now.Add(-time.Second), now.Add(-time.Minute)}
	var i int
	g := New(WithClock(func() time.Time {
		t := ticks[i%len(ticks)]
		i++
		return t
	}))

	prev := g.Next()
	for n := 0; n < 5; n++ {
		next := g.Next()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestGenerator_DeterministicWithInjectedSources(t *testing.T) {
	clock := func() time.Time { return time.UnixMilli(1700000000000) }
	seed := bytes.Repeat([]byte{7}, 64)

	a := New(WithClock(clock), WithEntropy(bytes.NewReader(seed)), WithPrefix("T-"))
	b := New(WithClock(clock), WithEntropy(bytes.NewReader(seed)), WithPrefix("T-"))

	assert.Equal(t, a.Next(), b.Next())
}

func TestGenerator_ClockOutsideULIDRange(t *testing.T) {
	tests := []struct {
		name  string
		clock func() time.Time
		ms    uint64
	}{
		{name: "zero time", clock: func() time.Time { return time.Time{} }, ms: 0},
		{name: "before epoch", clock: func() time.Time { return time.Unix(-86400, 0) }, ms: 0},
		{name: "after max ulid time", clock: func() time.Time { return time.Date(20000, 1, 1, 0, 0, 0, 0, time.UTC) }, ms: ulid.MaxTime()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(WithClock(tt.clock))

			done := make(chan string, 2)
			go func() {
				done <- g.Next()
				done <- g.Next()
			}()

			var numbers []string
			for i := 0; i < 2; i++ {
				select {
				case number := <-done:
					numbers = append(numbers, number)
				case <-time.After(2 * time.Second):
					t.Fatal("Next did not return")
				}
			}

			id, err := ulid.Parse(strings.TrimPrefix(numbers[0], DefaultPrefix))
			require.NoError(t, err)
			assert.Equal(t, tt.ms, id.Time())
			assert.Greater(t, numbers[1], numbers[0])
		})
	}
}

func TestGenerator_BrokenEntropyDoesNotHang(t *testing.T) {
	g := New(WithEntropy(bytes.NewReader(nil)))

	done := make(chan string, 1)
	go func() { done <- g.Next() }()

	select {
	case number := <-done:
		assert.True(t, strings.HasPrefix(number, DefaultPrefix))
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return")
	}
}
