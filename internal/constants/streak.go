package constants

// Milestone thresholds. Beyond MilestoneStepStart every multiple of
// MilestoneStep is also a milestone.
var MilestoneThresholds = []int{7, 30, 100, 365}

const (
	MilestoneStepStart = 100
	MilestoneStep      = 50
)

// Frequency policy defaults
const (
	DefaultMaxGap         = 1
	DefaultValidityWindow = 1
	DefaultIntervalDays   = 1
	MaxIntervalDays       = 365
	MaxCustomGap          = 30
)
