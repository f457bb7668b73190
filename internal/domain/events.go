package domain

// EventKind names one entry of the session's observable surface.
type EventKind string

const (
	EventImagesChanged   EventKind = "images_changed"
	EventSettingsChanged EventKind = "settings_changed"
	EventResultsChanged  EventKind = "results_changed"
	EventProgress        EventKind = "progress"
	EventHealthChanged   EventKind = "health_changed"
	EventErrorReported   EventKind = "error_reported"
)

// Event is one notification pushed to the presentation layer. Payload is
// kind-specific and already JSON-marshalable.
type Event struct {
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload,omitempty"`
}

// EventPublisher delivers session events to whatever presentation layer is
// attached. Publish must not block the caller; slow consumers are the
// publisher's problem.
type EventPublisher interface {
	Publish(event Event)
}
