package constants

// Input limits
const (
	MaxHabitNameLength   = 100
	MaxDescriptionLength = 500
	MaxNotesLength       = 1000
	MaxTargetUnitLength  = 50
	MaxRewardLength      = 200
	MinUsernameLength    = 3
	MaxUsernameLength    = 32
	MinPasswordLength    = 8
	MaxPasswordLength    = 72 // bcrypt ignores anything longer
)
