package runlog

import "time"

// Status is the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusAborted Status = "aborted"
)

// ParseStatus maps user input to a Status.
func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusRunning, StatusDone, StatusAborted:
		return Status(value), true
	default:
		return "", false
	}
}

// Run is one ledger row. A row is inserted when the pipeline starts and
// updated once when it finishes, so a row with StatusRunning and a process
// that is gone marks an interrupted run.
type Run struct {
	ID                string
	Title             string
	ScriptPath        string
	TimelinePath      string
	OutputDir         string
	RequestedStrategy string
	UsedStrategy      string
	FellBack          bool
	Status            Status
	Stage             string
	ExpectedFrames    int
	FrameCount        int
	Verified          bool
	ErrorKind         string
	ErrorMessage      string
	EngineExitCode    *int
	LogPath           string
	StartedAt         time.Time
	FinishedAt        *time.Time
	DurationSeconds   float64
}
