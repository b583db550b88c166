package order

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const DefaultPrefix = "OR"

// NumberGenerator builds display order numbers: a two-letter shop prefix, the
// last six digits of the epoch millisecond clock and three random digits,
// e.g. "OR482913057". They are not guaranteed unique; the orders table is.
type NumberGenerator struct {
	now  func() time.Time
	rand func(n int) int
}

func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now, rand: rand.Intn}
}

func (g *NumberGenerator) Next(prefix string) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if len(prefix) != 2 {
		prefix = DefaultPrefix
	}
	ms := g.now().UnixMilli() % 1_000_000
	return fmt.Sprintf("%s%06d%03d", prefix, ms, g.rand(1000))
}
