package errors

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens the extension fields into the problem document.
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{}, 5+len(pd.Extensions))
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	for k, v := range pd.Extensions {
		data[k] = v
	}
	return json.Marshal(data)
}

// NewProblemDetails creates an RFC 7807 compliant error document.
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension member to the problem document.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// problemTitles maps error kinds to human-readable titles.
var problemTitles = map[string]string{
	"invalid_format":       "Invalid Activation Code",
	"checksum_mismatch":    "Voucher Checksum Mismatch",
	"signature_invalid":    "License Signature Invalid",
	"fingerprint_mismatch": "License Bound To Another Device",
	"expired":              "License Expired",
	"store_io":             "Activation Storage Failure",
	"not_activated":        "Activation Required",
	"internal":             "Internal Server Error",
}

// Problem converts an activation error into its RFC 7807 representation.
// traceID correlates the response with the server logs.
func Problem(err error, instance, traceID string) *ProblemDetails {
	kind := Kind(err)
	title, ok := problemTitles[kind]
	if !ok {
		title = problemTitles["internal"]
	}

	pd := NewProblemDetails(
		StatusCode(err),
		"/errors/"+kind,
		title,
		err.Error(),
		instance,
	)
	pd.WithExtension("error_kind", kind)
	if traceID != "" {
		pd.WithExtension("trace_id", traceID)
	}
	pd.WithExtension("timestamp", time.Now().UTC().Format(time.RFC3339))
	return pd
}
