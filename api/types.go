package api

import "time"

// QueryResponse represents the standard query response format
type QueryResponse struct {
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChainResult is one chain's outcome in a refresh response.
type ChainResult struct {
	Chain      string `json:"chain"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// RefreshResponse is returned by POST /api/v1/refresh/{operation}.
type RefreshResponse struct {
	Operation string        `json:"operation"`
	Results   []ChainResult `json:"results"`
	Failed    []string      `json:"failed"`
}
