package streak

import (
	"errors"
	"testing"
	"time"

	"github.com/julianstephens/habitual/internal/models"
)

func TestNewPolicyUnknownFrequency(t *testing.T) {
	_, err := NewPolicy(Config{Frequency: "FORTNIGHTLY"})
	if err == nil {
		t.Fatal("expected error for unknown frequency")
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %T", err)
	}
	if cfgErr.Frequency != "FORTNIGHTLY" {
		t.Errorf("expected frequency FORTNIGHTLY in error, got %q", cfgErr.Frequency)
	}
}

func TestNewPolicyCustomValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		maxGap  int
		window  int
	}{
		{"defaults", Config{Frequency: models.FrequencyCustom}, false, 1, 1},
		{"interval 3", Config{Frequency: models.FrequencyCustom, IntervalDays: 3}, false, 1, 1},
		{"gap 2", Config{Frequency: models.FrequencyCustom, IntervalDays: 1, MaxGap: 2}, false, 2, 2},
		{"negative interval", Config{Frequency: models.FrequencyCustom, IntervalDays: -1}, true, 0, 0},
		{"interval too large", Config{Frequency: models.FrequencyCustom, IntervalDays: 400}, true, 0, 0},
		{"gap too large", Config{Frequency: models.FrequencyCustom, MaxGap: 31}, true, 0, 0},
		{"daily ignores custom fields", Config{Frequency: models.FrequencyDaily, IntervalDays: 999, MaxGap: 999}, false, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.MaxGap() != tt.maxGap {
				t.Errorf("MaxGap() = %d, want %d", p.MaxGap(), tt.maxGap)
			}
			if p.ValidityWindow() != tt.window {
				t.Errorf("ValidityWindow() = %d, want %d", p.ValidityWindow(), tt.window)
			}
		})
	}
}

func TestPeriodOfDaily(t *testing.T) {
	p := MustPolicy(Config{Frequency: models.FrequencyDaily, Location: time.UTC})

	morning := time.Date(2025, 3, 10, 0, 5, 0, 0, time.UTC)
	night := time.Date(2025, 3, 10, 23, 55, 0, 0, time.UTC)
	next := time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC)

	if p.PeriodOf(morning) != p.PeriodOf(night) {
		t.Error("expected same-day timestamps to share a period")
	}
	if got := p.PeriodsBetween(p.PeriodOf(night), p.PeriodOf(next)); got != 1 {
		t.Errorf("expected 1 day between 23:55 and 00:01 next day, got %d", got)
	}
}

func TestPeriodOfDailyUsesPolicyLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	p := MustPolicy(Config{Frequency: models.FrequencyDaily, Location: loc})

	// 02:00 UTC on the 11th is still the evening of the 10th in New York.
	utcEarly := time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC)
	localEvening := time.Date(2025, 3, 10, 20, 0, 0, 0, loc)

	if p.PeriodOf(utcEarly) != p.PeriodOf(localEvening) {
		t.Error("expected both timestamps to fall on March 10 in New York")
	}
}

func TestPeriodOfWeeklyStartsMonday(t *testing.T) {
	p := MustPolicy(Config{Frequency: models.FrequencyWeekly, Location: time.UTC})

	sunday := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	nextSunday := time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC)

	if got := p.PeriodsBetween(p.PeriodOf(sunday), p.PeriodOf(monday)); got != 1 {
		t.Errorf("expected Sunday and Monday to be one week apart, got %d", got)
	}
	if p.PeriodOf(monday) != p.PeriodOf(nextSunday) {
		t.Error("expected Monday and the following Sunday to share an ISO week")
	}
}

func TestPeriodOfWeeklyBeforeEpoch(t *testing.T) {
	p := MustPolicy(Config{Frequency: models.FrequencyWeekly, Location: time.UTC})

	// 1969-12-29 was a Monday; 1970-01-04 a Sunday in the same ISO week.
	monday := time.Date(1969, 12, 29, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(1970, 1, 4, 0, 0, 0, 0, time.UTC)
	if p.PeriodOf(monday) != p.PeriodOf(sunday) {
		t.Error("expected week bucketing to be continuous across the epoch")
	}
}

func TestPeriodOfMonthly(t *testing.T) {
	p := MustPolicy(Config{Frequency: models.FrequencyMonthly, Location: time.UTC})

	jan31 := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	feb1 := time.Date(2025, 2, 1, 1, 0, 0, 0, time.UTC)
	dec := time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)

	if got := p.PeriodsBetween(p.PeriodOf(jan31), p.PeriodOf(feb1)); got != 1 {
		t.Errorf("expected 1 month between Jan 31 and Feb 1, got %d", got)
	}
	if got := p.PeriodsBetween(p.PeriodOf(dec), p.PeriodOf(feb1)); got != 2 {
		t.Errorf("expected 2 months between Dec and Feb, got %d", got)
	}
	if got := p.PeriodsBetween(p.PeriodOf(feb1), p.PeriodOf(dec)); got != -2 {
		t.Errorf("expected signed distance -2, got %d", got)
	}
}

func TestPeriodOfCustomInterval(t *testing.T) {
	p := MustPolicy(Config{Frequency: models.FrequencyCustom, IntervalDays: 3, Location: time.UTC})

	base := time.Date(1970, 1, 1, 12, 0, 0, 0, time.UTC)
	if p.PeriodOf(base) != p.PeriodOf(base.AddDate(0, 0, 2)) {
		t.Error("expected days 0 and 2 to share a 3-day bucket")
	}
	if got := p.PeriodsBetween(p.PeriodOf(base), p.PeriodOf(base.AddDate(0, 0, 3))); got != 1 {
		t.Errorf("expected day 3 to be the next bucket, got distance %d", got)
	}
}

func TestPolicyUnit(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Frequency: models.FrequencyDaily}, "day"},
		{Config{Frequency: models.FrequencyWeekly}, "week"},
		{Config{Frequency: models.FrequencyMonthly}, "month"},
		{Config{Frequency: models.FrequencyCustom}, "day"},
		{Config{Frequency: models.FrequencyCustom, IntervalDays: 3}, "3-day period"},
	}
	for _, tt := range tests {
		if got := MustPolicy(tt.cfg).Unit(); got != tt.want {
			t.Errorf("Unit() for %+v = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
