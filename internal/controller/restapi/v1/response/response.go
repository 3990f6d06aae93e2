package response

type Error struct {
	Error string `json:"error" example:"message"`
}

type Upload struct {
	ID          string `json:"id"`
	Bucket      string `json:"bucket"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type Accepted struct {
	ID     string `json:"id"`
	Status string `json:"status" example:"queued"`
}
