package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// State errors
	ErrCodeIllegalState    = "illegal_state"
	ErrCodeAlreadyAnswered = "already_answered"
	ErrCodeGameNotStarted  = "game_not_started"
	ErrCodeNoCurrentQuestion = "no_current_question"

	// Game errors
	ErrCodeGameFailed       = "game_failed"
	ErrCodeGenerationFailed = "generation_failed"
	ErrCodeNoMoreQuestions  = "no_more_questions"

	// Instance errors
	ErrCodeInstanceNotFound       = "instance_not_found"
	ErrCodeInstanceCreationFailed = "instance_creation_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeHistoryUnavailable = "history_unavailable"
)
