// internal/models/validation.go
package models

// ValidationState is the pipeline's state machine position.
// Terminal states are PASS and HEDGE.
type ValidationState string

const (
	ValidationPending ValidationState = "PENDING"
	ValidationPass    ValidationState = "PASS"
	ValidationFail    ValidationState = "FAIL"
	ValidationRetry   ValidationState = "RETRY"
	ValidationHedge   ValidationState = "HEDGE"
	// ValidationSkipped marks the control path, which bypasses the
	// pipeline entirely.
	ValidationSkipped ValidationState = "SKIPPED"
)

// ValidationLayer names one of the ordered checks.
type ValidationLayer string

const (
	LayerShape         ValidationLayer = "shape"
	LayerUnsupported   ValidationLayer = "unsupported_claims"
	LayerCrossRef      ValidationLayer = "evidence_crossref"
	LayerSecondOpinion ValidationLayer = "second_opinion"
)

// LayerResult records one layer's outcome.
type LayerResult struct {
	Layer  ValidationLayer `json:"layer"`
	Passed bool            `json:"passed"`
	Reason string          `json:"reason,omitempty"`
}

// ValidationVerdict is the pipeline's final output for one answer.
type ValidationVerdict struct {
	State             ValidationState `json:"state"`
	Layers            []LayerResult   `json:"layers"`
	FinalAnswer       string          `json:"finalAnswer"`
	UncertaintyMarked bool            `json:"uncertaintyMarked"`
	Retries           int             `json:"retries"`
}

// Passed reports whether the verdict reached a terminal accepting state.
func (v *ValidationVerdict) Passed() bool {
	return v.State == ValidationPass
}
