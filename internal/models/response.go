package models

// APIResponse is the envelope shared by every endpoint. Endpoint-specific
// responses embed it so their fields sit next to "success".
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// OK is an empty success envelope.
func OK() APIResponse {
	return APIResponse{Success: true}
}

// NewSuccessResponse creates a success response carrying data.
func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response with a stable reason code.
func NewErrorResponse(message, reason string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
		Reason:  reason,
	}
}

// NewValidationErrorResponse creates a validation error response
func NewValidationErrorResponse(errors map[string]string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   "Validation failed",
		Reason:  "validation_failed",
		Errors:  errors,
	}
}
