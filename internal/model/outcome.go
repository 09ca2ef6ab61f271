package model

import "time"

type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeFailed    OutcomeKind = "failed"
)

// Reason classifies an item-level failure.
type Reason string

const (
	ReasonTransfer       Reason = "transfer_error"
	ReasonExtraction     Reason = "extraction_error"
	ReasonPostProcessing Reason = "post_processing_error"
	ReasonUnexpected     Reason = "unexpected_error"
)

// ItemOutcome is emitted exactly once per item per run.
type ItemOutcome struct {
	ItemID   string        `json:"item_id"`
	Kind     OutcomeKind   `json:"kind"`
	Reason   Reason        `json:"reason,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

func Completed(id string, d time.Duration) ItemOutcome {
	return ItemOutcome{ItemID: id, Kind: OutcomeCompleted, Duration: d}
}

func Skipped(id string) ItemOutcome {
	return ItemOutcome{ItemID: id, Kind: OutcomeSkipped}
}

func Failed(id string, reason Reason, err error, d time.Duration) ItemOutcome {
	if reason == "" {
		reason = ReasonUnexpected
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return ItemOutcome{ItemID: id, Kind: OutcomeFailed, Reason: reason, Detail: detail, Duration: d}
}

func (o ItemOutcome) IsFailed() bool {
	return o.Kind == OutcomeFailed
}
