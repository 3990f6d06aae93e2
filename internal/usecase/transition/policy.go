package transition

import "fmt"

// MissingRecordPolicy says what an update does when its record does not exist.
type MissingRecordPolicy string

const (
	PolicyCreate MissingRecordPolicy = "create"
	PolicySkip   MissingRecordPolicy = "skip"
)

func ParseMissingRecordPolicy(s string) (MissingRecordPolicy, error) {
	switch p := MissingRecordPolicy(s); p {
	case PolicyCreate, PolicySkip:
		return p, nil
	default:
		return "", fmt.Errorf("unknown missing-record policy %q", s)
	}
}
