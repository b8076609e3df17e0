// Package models defines the data structures shared across the relay
// and the analysis pipeline.
package models

// EventTypeTranscript is the outbound message type for transcript
// events on the client-facing websocket.
const EventTypeTranscript = "TRANSCRIPT"

// TranscriptEvent is a text fragment emitted by the recognition engine
// for one session. Only events with IsFinal=true represent committed
// utterances; partials are advisory and may be superseded by a
// following final for the same utterance.
type TranscriptEvent struct {
	Type       string `json:"type"`
	SessionKey string `json:"-"`
	Text       string `json:"text"`
	IsFinal    bool   `json:"isFinal"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

// NewTranscriptEvent builds a client-facing transcript event.
func NewTranscriptEvent(sessionKey, text string, isFinal bool, ts int64) TranscriptEvent {
	return TranscriptEvent{
		Type:       EventTypeTranscript,
		SessionKey: sessionKey,
		Text:       text,
		IsFinal:    isFinal,
		Timestamp:  ts,
	}
}
