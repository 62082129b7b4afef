package handler

// ActivityQuery holds the query parameters of the activity listing
type ActivityQuery struct {
	Limit      int    `form:"limit"`
	EntityType string `form:"entity_type"`
}

// TimelineQuery holds the query parameters of the activity timeline
type TimelineQuery struct {
	Days int `form:"days"`
}

// SyncAllRequest is the optional body of the bulk sync trigger
type SyncAllRequest struct {
	Full bool `json:"full"`
}

// RetryFailedRequest is the optional body of the retry trigger
type RetryFailedRequest struct {
	EntityType string `json:"entity_type"`
}

// SyncOneRequest asks for a single record to be reconciled
type SyncOneRequest struct {
	EntityType string `json:"entity_type" binding:"required"`
	Origin     string `json:"origin" binding:"required"`
	ID         string `json:"id" binding:"required"`
}

// TriggerAckResponse acknowledges an asynchronous trigger. Completion is
// observed through the status and activity endpoints.
type TriggerAckResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// RetryAckResponse acknowledges a retry trigger with the re-enqueued count
type RetryAckResponse struct {
	Accepted bool   `json:"accepted"`
	Enqueued int    `json:"enqueued"`
	Message  string `json:"message"`
}

// MappingListQuery holds the query parameters of the mapping listing
type MappingListQuery struct {
	EntityType string `form:"entity_type"`
	State      string `form:"state"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}
