package types

// Envelope is the body of every 2xx JSON response.
type Envelope struct {
	Data any `json:"data"`
}

// PageEnvelope adds keyset paging. HasMore is false on the last page, where
// NextCursor is omitted.
type PageEnvelope struct {
	Data       any    `json:"data"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
