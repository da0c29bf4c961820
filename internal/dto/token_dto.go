package dto

// RTCTokenResponse carries the join credential for the external video
// transport. Insecure is set when the service is running without a configured
// signing secret and the credential is empty.
type RTCTokenResponse struct {
	Token     string `json:"token"`
	ChannelID string `json:"channel_id"`
	UID       string `json:"uid"`
	Role      string `json:"role"`
	ExpiresIn int    `json:"expires_in,omitempty"`
	Insecure  bool   `json:"insecure,omitempty"`
}

// TriageSuggestionResponse is the advisory urgency suggestion produced from
// a presenting complaint.
type TriageSuggestionResponse struct {
	Urgency   string `json:"urgency"`
	Rationale string `json:"rationale,omitempty"`
	Model     string `json:"model,omitempty"`
}
