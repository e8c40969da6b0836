package models

import "time"

// LinkStatus is a persisted LinkCheckResult together with the time it was committed.
type LinkStatus struct {
	LinkCheckResult
	StatusName string    `json:"status_name"`
	CheckedAt  time.Time `json:"checked_at"`
}

// LinkStatusEvent is the payload written to the status topic after a batch commits.
type LinkStatusEvent struct {
	RunID string `json:"run_id"`
	LinkStatus
}

// NewLinkStatusEvent stamps a committed result with the run and check time.
func NewLinkStatusEvent(runID string, result LinkCheckResult, checkedAt time.Time) LinkStatusEvent {
	return LinkStatusEvent{
		RunID: runID,
		LinkStatus: LinkStatus{
			LinkCheckResult: result,
			StatusName:      result.Status.String(),
			CheckedAt:       checkedAt,
		},
	}
}
