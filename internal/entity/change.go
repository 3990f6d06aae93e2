package entity

import "time"

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeModify ChangeType = "MODIFY"
	ChangeRemove ChangeType = "REMOVE"
)

type ChangeKeys struct {
	ID string `json:"id"`
}

// RecordChange is one change-feed entry with the record before and after.
type RecordChange struct {
	EventName ChangeType `json:"eventName"`
	Keys      ChangeKeys `json:"keys"`
	OldImage  *Image     `json:"oldImage,omitempty"`
	NewImage  *Image     `json:"newImage,omitempty"`
	Fields    []Field    `json:"fields,omitempty"`
	CreatedAt time.Time  `json:"approximateCreationTime"`
}

// StatusChanged reports a modification whose new status is set and differs
// from the old one.
func (c RecordChange) StatusChanged() bool {
	if c.EventName != ChangeModify || c.NewImage == nil {
		return false
	}
	if c.NewImage.Status == StatusUnset {
		return false
	}
	if c.OldImage == nil {
		return true
	}

	return c.OldImage.Status != c.NewImage.Status
}
