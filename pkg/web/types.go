package web

// IngestEventRequest is the body of POST /events: one normalized platform
// event ready for trigger matching.
type IngestEventRequest struct {
	AccountID      string `json:"account_id"   validate:"required"`
	TriggerType    string `json:"trigger_type" validate:"required,oneof=dm comment keyword story_reply story_mention new_follower"`
	SenderID       string `json:"sender_id"    validate:"required"`
	SenderUsername string `json:"sender_username"`
	Text           string `json:"text"`
	PostID         string `json:"post_id"`
	CommentText    string `json:"comment_text"`
	StoryID        string `json:"story_id"`
}

// IngestEventResponse acknowledges an accepted event.
type IngestEventResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// ValidateFlowResponse reports every problem found in a candidate flow
// document, schema and semantic checks combined.
type ValidateFlowResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}
