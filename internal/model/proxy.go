// Package model defines shared types for the proxy and the chat backend.
package model

// InboundRequest is a single function invocation event as delivered by the
// hosting environment. Header names arrive lowercase.
type InboundRequest struct {
	Method          string   `json:"httpMethod"`
	Path            string   `json:"path"`
	RawQuery        string   `json:"rawQuery,omitempty"`
	Headers         *Headers `json:"headers,omitempty"`
	Body            string   `json:"body,omitempty"`
	IsBase64Encoded bool     `json:"isBase64Encoded,omitempty"`
}

// OutboundResponse is the normalized response handed back to the hosting
// environment. Body is base64 text when IsBase64Encoded is set.
type OutboundResponse struct {
	StatusCode      int      `json:"statusCode"`
	Headers         *Headers `json:"headers,omitempty"`
	Body            string   `json:"body"`
	IsBase64Encoded bool     `json:"isBase64Encoded,omitempty"`
}
