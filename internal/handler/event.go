package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"voice-chat-proxy/internal/model"
	"voice-chat-proxy/internal/service"
)

// Invoke handles a single function event. It decodes an InboundRequest from
// r, forwards it and encodes the OutboundResponse to w. Proxy failures are
// reported in the encoded response; only malformed events and write failures
// return an error.
func Invoke(ctx context.Context, svc *service.ProxyService, r io.Reader, w io.Writer) error {
	var in model.InboundRequest
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if in.Method == "" {
		return fmt.Errorf("decode event: httpMethod is required")
	}

	resp, err := svc.Handle(ctx, &in)
	out := service.Respond(resp, err)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}
