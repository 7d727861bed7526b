package types

// Reflection is one posted entry under a perspective.
type Reflection struct {
	ReflectionID       string `json:"reflection_id"`
	PerspectiveID      string `json:"perspective_id"`
	ParentReflectionID string `json:"parent_reflection_id,omitempty"`
	Body               string `json:"body"`
	CreatedAtMs        int64  `json:"created_at_ms"`
}

// NewReflectionRequest is the validated consumer payload for posting a
// reflection.  The charge authorizing the write travels in the write-token
// cookie, never in the body.
type NewReflectionRequest struct {
	Body               string `json:"body"`
	ParentReflectionID string `json:"parent_reflection_id,omitempty"`
}

// VerifyRequest is the payload for the post-payment verify call.
type VerifyRequest struct {
	ChargeID string `json:"charge_id"`
}

// VerifyResponse reports token issuance.  The tokens themselves are set as
// cookies; the body only confirms the outcome.
type VerifyResponse struct {
	OK            bool   `json:"ok"`
	PerspectiveID string `json:"perspective_id"`
	ServerTime    string `json:"server_time"`
}
