package dto

import "github.com/google/uuid"

// ProcessMeetingRequest is the body posted to the processing service.
type ProcessMeetingRequest struct {
	AudioUrl  string    `json:"audio_url"`
	MeetingId uuid.UUID `json:"meeting_id"`
	PushToken *string   `json:"push_token"`
}

// MeetingStatusMessage is published by the processing service whenever a
// meeting changes state.
type MeetingStatusMessage struct {
	MeetingId  uuid.UUID `json:"meetingId"`
	Status     string    `json:"status"`
	Title      *string   `json:"title,omitempty"`
	Summary    *string   `json:"summary,omitempty"`
	Transcript *string   `json:"transcript,omitempty"`
}

type SessionStatus struct {
	State          string `json:"state"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	Elapsed        string `json:"elapsed"`
	OwnerId        string `json:"owner_id,omitempty"`
}

type StopResponse struct {
	MeetingId       *uuid.UUID `json:"meeting_id"`
	DurationSeconds int        `json:"duration_seconds"`
	AudioUrl        string     `json:"audio_url,omitempty"`
	Status          string     `json:"status,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
