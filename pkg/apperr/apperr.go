package apperr

import (
	"errors"
	"net/http"
)

// Pipeline failures. Wrap at the call site with fmt.Errorf("...: %w", Err...)
// so errors.Is keeps working.
var (
	ErrUnauthenticated    = errors.New("no authenticated user")
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrInvalidTransition  = errors.New("invalid recording state transition")
	ErrArtifactMissing    = errors.New("recording artifact missing")
	ErrUploadFailed       = errors.New("upload failed")
	ErrUploadConflict     = errors.New("upload conflict")
	ErrPersistenceFailed  = errors.New("persistence failed")
	ErrNotificationFailed = errors.New("processor notification failed")
	ErrNotFound           = errors.New("not found")
)

// Message returns the notice shown to the user for a pipeline error.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in to record meetings."
	case errors.Is(err, ErrCaptureUnavailable):
		return "Recording failed: the microphone could not be started."
	case errors.Is(err, ErrInvalidTransition):
		return "That action is not available right now."
	case errors.Is(err, ErrArtifactMissing):
		return "Recording failed: no audio was saved."
	case errors.Is(err, ErrUploadConflict):
		return "Upload failed: a recording with the same name already exists."
	case errors.Is(err, ErrUploadFailed):
		return "Upload failed. Please try again."
	case errors.Is(err, ErrPersistenceFailed):
		return "Your recording was uploaded but the meeting could not be saved."
	case errors.Is(err, ErrNotFound):
		return "Meeting not found."
	}
	return err.Error()
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrCaptureUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrUploadConflict):
		return http.StatusConflict
	case errors.Is(err, ErrArtifactMissing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUploadFailed), errors.Is(err, ErrPersistenceFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
