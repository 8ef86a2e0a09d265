// Raw access to the Web API for debugging
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs an authenticated GET request to path and returns the raw response whatever its status.
//
// Session checks still apply: an expired token fails with [shared.ErrTokenExpired].
func (s *SpotifyService) Get(ctx context.Context, path string) (*APIResponse, error) {
	resp, body, err := s.send(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// Pretty returns the body indented when it is JSON, otherwise unchanged.
func (r *APIResponse) Pretty() []byte {
	if !r.IsJSON {
		return r.Body
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Body, "", "  "); err != nil {
		return r.Body
	}
	return buf.Bytes()
}
