package entity

// Kind discriminates inbound events.
type Kind string

const (
	KindBlobCreated    Kind = "BlobCreated"
	KindMetadataUpdate Kind = "MetadataUpdateRequested"
	KindStatusUpdate   Kind = "StatusUpdateRequested"
	KindCleanup        Kind = "CleanupRequested"
)

// Event is a classified inbound message. Exactly one payload matches Kind.
type Event struct {
	Kind Kind

	Blob     *BlobCreated
	Metadata *MetadataUpdate
	Status   *StatusUpdate
	Cleanup  *CleanupRequest
}

type BlobCreated struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	EventName string `json:"eventName,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

type MetadataUpdate struct {
	ID    string `json:"id"`
	Name  string `json:"field"`
	Value string `json:"value"`

	// Field is resolved by the validation gate.
	Field Field `json:"-"`
}

type StatusUpdate struct {
	ID         string `json:"id"`
	Value      string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	ReviewDate string `json:"date,omitempty"`

	// Status is resolved by the validation gate.
	Status ReviewStatus `json:"-"`
}

// CleanupRequest carries a dead-lettered message as received.
type CleanupRequest struct {
	Body       []byte
	Attributes map[string]string
}

// ID returns the record id the event targets, if any.
func (e Event) ID() string {
	switch {
	case e.Blob != nil:
		return e.Blob.Key
	case e.Metadata != nil:
		return e.Metadata.ID
	case e.Status != nil:
		return e.Status.ID
	default:
		return ""
	}
}
