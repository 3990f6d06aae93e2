package v1

type metadataRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Date   string `json:"date"`
}
