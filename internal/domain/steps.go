package domain

import "time"

// Period selects the interval an aggregate step count covers.
type Period string

const (
	PeriodHour Period = "hour"
	PeriodDay  Period = "day"
	PeriodAll  Period = "all"
)

// ParsePeriod returns the window a period name selects. Names other than
// hour and all, including the empty name, select PeriodDay.
func ParsePeriod(s string) Period {
	switch p := Period(s); p {
	case PeriodHour, PeriodAll:
		return p
	default:
		return PeriodDay
	}
}

// Duration is the trailing interval a windowed period spans; zero for PeriodAll.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodHour:
		return time.Hour
	case PeriodDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// StepCount is the result of an aggregate query. Start is nil when the
// period has no known beginning (PeriodAll counts since the device reset).
type StepCount struct {
	Count  int64
	Period Period
	Start  *time.Time
	End    time.Time
}

// PermissionResult is the outcome of a runtime permission request.
type PermissionResult struct {
	Granted bool `json:"granted"`
}

// PermissionState is what the host reports for a single permission.
type PermissionState int

const (
	PermissionPrompt PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (s PermissionState) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "prompt"
	}
}

// ActivityRecognition is the runtime permission guarding step data.
const ActivityRecognition = "android.permission.ACTIVITY_RECOGNITION"

// PermissionRequest is a pending prompt the host has to show to the user.
type PermissionRequest struct {
	RequestCode int      `json:"requestCode"`
	Permissions []string `json:"permissions"`
}
