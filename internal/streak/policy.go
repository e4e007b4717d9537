// Package streak computes habit streaks from completion history.
//
// Everything in this package is pure: callers fetch history and the prior
// streak record, call Apply, then persist the returned state and dispatch any
// milestone themselves.
package streak

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

// PeriodKey identifies a calendar bucket (a day, ISO week, month or custom
// N-day span). Keys of the same policy are comparable integers.
type PeriodKey int64

// ConfigurationError is returned for frequency settings the engine cannot
// turn into a policy. It is a programming or data-entry error and must not be
// retried.
type ConfigurationError struct {
	Frequency models.Frequency
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported habit frequency %q", e.Frequency)
	}
	return fmt.Sprintf("invalid %s frequency: %s", e.Frequency, e.Reason)
}

// Config describes the frequency settings of a habit.
type Config struct {
	Frequency    models.Frequency
	IntervalDays int // CUSTOM only
	MaxGap       int // CUSTOM only, 0 means the default of 1
	Location     *time.Location
}

// ConfigFor builds the policy configuration for a habit evaluated in loc.
func ConfigFor(h models.Habit, loc *time.Location) Config {
	return Config{
		Frequency:    h.Frequency,
		IntervalDays: h.IntervalDays,
		MaxGap:       h.MaxGap,
		Location:     loc,
	}
}

// Policy converts timestamps into period buckets and carries the gap rules
// for one frequency. The zero value is not usable; build one with NewPolicy.
type Policy struct {
	frequency models.Frequency
	bucket    bucketFunc
	interval  int
	maxGap    int
	window    int
	loc       *time.Location
}

// bucketFunc maps a timestamp already converted to the policy location to
// its period key.
type bucketFunc func(t time.Time, interval int) PeriodKey

type policyDef struct {
	bucket       bucketFunc
	maxGap       int
	window       int
	configurable bool
}

var policies = map[models.Frequency]policyDef{
	models.FrequencyDaily:   {bucket: dayBucket, maxGap: 1, window: 1},
	models.FrequencyWeekly:  {bucket: isoWeekBucket, maxGap: 1, window: 1},
	models.FrequencyMonthly: {bucket: monthBucket, maxGap: 1, window: 1},
	models.FrequencyCustom:  {bucket: customBucket, maxGap: constants.DefaultMaxGap, window: constants.DefaultValidityWindow, configurable: true},
}

// NewPolicy looks up the policy for cfg.Frequency. Unknown frequencies and
// out-of-range custom settings fail with *ConfigurationError.
func NewPolicy(cfg Config) (Policy, error) {
	def, ok := policies[cfg.Frequency]
	if !ok {
		return Policy{}, &ConfigurationError{Frequency: cfg.Frequency}
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	p := Policy{
		frequency: cfg.Frequency,
		bucket:    def.bucket,
		interval:  1,
		maxGap:    def.maxGap,
		window:    def.window,
		loc:       loc,
	}

	if !def.configurable {
		return p, nil
	}

	p.interval = cfg.IntervalDays
	if p.interval == 0 {
		p.interval = constants.DefaultIntervalDays
	}
	if p.interval < 1 || p.interval > constants.MaxIntervalDays {
		return Policy{}, &ConfigurationError{
			Frequency: cfg.Frequency,
			Reason:    fmt.Sprintf("interval must be between 1 and %d days, got %d", constants.MaxIntervalDays, cfg.IntervalDays),
		}
	}

	if cfg.MaxGap != 0 {
		if cfg.MaxGap < 1 || cfg.MaxGap > constants.MaxCustomGap {
			return Policy{}, &ConfigurationError{
				Frequency: cfg.Frequency,
				Reason:    fmt.Sprintf("max gap must be between 1 and %d periods, got %d", constants.MaxCustomGap, cfg.MaxGap),
			}
		}
		p.maxGap = cfg.MaxGap
	}
	// A custom streak stays alive for as long as the next completion could
	// still continue it.
	p.window = p.maxGap

	return p, nil
}

// MustPolicy is NewPolicy for frequencies known to be valid, such as
// constants in tests. It panics on a configuration error.
func MustPolicy(cfg Config) Policy {
	p, err := NewPolicy(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Policy) Frequency() models.Frequency { return p.frequency }
func (p Policy) Location() *time.Location { return p.loc }

// PeriodOf buckets t into its period in the policy's calendar.
func (p Policy) PeriodOf(t time.Time) PeriodKey {
	return p.bucket(t.In(p.loc), p.interval)
}

// PeriodsBetween returns the signed number of periods from a to b
// (positive when b is later).
func (p Policy) PeriodsBetween(a, b PeriodKey) int {
	return int(b - a)
}

// MaxGap is the largest PeriodsBetween two consecutive qualifying periods
// may have while still continuing a streak.
func (p Policy) MaxGap() int { return p.maxGap }

// ValidityWindow is the largest PeriodsBetween the most recent completion
// and now for which the streak is still alive.
func (p Policy) ValidityWindow() int { return p.window }

// Unit names the policy's period for display ("day", "week", ...).
func (p Policy) Unit() string {
	switch p.frequency {
	case models.FrequencyWeekly:
		return "week"
	case models.FrequencyMonthly:
		return "month"
	case models.FrequencyCustom:
		if p.interval != 1 {
			return fmt.Sprintf("%d-day period", p.interval)
		}
	}
	return "day"
}

func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func dayBucket(t time.Time, _ int) PeriodKey {
	return PeriodKey(civilDay(t))
}

// 1970-01-01 was a Thursday, so shifting by three days aligns week
// boundaries on Mondays.
func isoWeekBucket(t time.Time, _ int) PeriodKey {
	return PeriodKey(floorDiv(civilDay(t)+3, 7))
}

func monthBucket(t time.Time, _ int) PeriodKey {
	return PeriodKey(int64(t.Year())*12 + int64(t.Month()-1))
}

func customBucket(t time.Time, interval int) PeriodKey {
	return PeriodKey(floorDiv(civilDay(t), int64(interval)))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
