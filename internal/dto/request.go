package dto

// MetadataUpdateRequest is the body published for a metadata change.
type MetadataUpdateRequest struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type StatusUpdateBody struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// StatusUpdateRequest is the body published for a moderation decision.
type StatusUpdateRequest struct {
	ID     string           `json:"id"`
	Date   string           `json:"date,omitempty"`
	Update StatusUpdateBody `json:"update"`
}

// BlobCreatedNotice is the compact body for a new upload or an escalated blob.
type BlobCreatedNotice struct {
	Kind   string `json:"kind"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size,omitempty"`
}

// Mail is one outbound notification.
type Mail struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}
