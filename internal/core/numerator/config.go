// Package numerator provides domain contracts for human-readable auto-numbering
// (transfer numbers, warehouse and product codes).
package numerator

import (
	"fmt"
	"time"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict reserves one number per call. Called inside the business
	// transaction it stays gapless: a rollback also rolls back the counter.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges and serves them from memory.
	// A restart leaves gaps, which is fine for catalog codes.
	StrategyCached
)

// DefaultRangeSize is the cached range length when Options.RangeSize is unset.
const DefaultRangeSize = 50

// Options configuration for number generation.
type Options struct {
	Strategy  Strategy
	RangeSize int64
}

// DefaultOptions returns strict numbering.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Period controls when a counter starts over.
type Period string

const (
	PeriodNever Period = "never"
	PeriodYear  Period = "year"
	PeriodMonth Period = "month"
)

// Config describes one numbering scheme.
type Config struct {
	Prefix      string
	IncludeYear bool
	PadWidth    int // default 5
	Reset       Period
}

// Key names the counter that serves period.
func (c Config) Key(period time.Time) string {
	switch c.Reset {
	case PeriodMonth:
		return c.Prefix + "_" + period.Format("2006_01")
	case PeriodYear:
		return c.Prefix + "_" + period.Format("2006")
	default:
		return c.Prefix
	}
}

// Format renders counter value n, e.g. TR-2026-00001 or PRD-00001.
func (c Config) Format(period time.Time, n int64) string {
	width := c.PadWidth
	if width <= 0 {
		width = 5
	}
	if c.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), width, n)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, width, n)
}

// Well-known numbering schemes.
var (
	TransferConfig  = Config{Prefix: "TR", IncludeYear: true, Reset: PeriodYear}
	WarehouseConfig = Config{Prefix: "WH", IncludeYear: true, Reset: PeriodYear}
	ProductConfig   = Config{Prefix: "PRD", Reset: PeriodNever}
)
