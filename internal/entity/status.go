package entity

import "fmt"

// ReviewStatus is the moderation outcome of a record. The zero value is Unset.
type ReviewStatus string

const (
	StatusUnset  ReviewStatus = ""
	StatusPass   ReviewStatus = "Pass"
	StatusReject ReviewStatus = "Reject"
)

func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch ReviewStatus(s) {
	case StatusPass:
		return StatusPass, nil
	case StatusReject:
		return StatusReject, nil
	default:
		return StatusUnset, fmt.Errorf("unknown review status %q", s)
	}
}

// OutboxStatus tracks delivery of a change-feed row.
type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
	Failed     OutboxStatus = "failed"
)
