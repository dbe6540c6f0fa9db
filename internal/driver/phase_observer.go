package driver

import "time"

// PhaseStatus tells whether a stage started or finished.
type PhaseStatus int

const (
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// Stage names reported to observers, trace spans and timings.
const (
	StageValidate         = "validate"
	StageInit             = "init"
	StageInvoke           = "invoke"
	StageDrainDiagnostics = "drain_diagnostics"
	StageDrainArtifacts   = "drain_artifacts"
)

// PhaseEvent is a stage boundary.
type PhaseEvent struct {
	CallID  string
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
}

// PhaseObserver receives stage boundaries of every call. It runs on the
// calling goroutine and must not block.
type PhaseObserver func(PhaseEvent)
