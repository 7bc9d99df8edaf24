package session

import "go.uber.org/zap/zapcore"

// Status names a session lifecycle step as it appears in logs.
type Status string

const (
	StatusCreating   Status = "SESSION_CREATING"
	StatusCreated    Status = "SESSION_CREATED"
	StatusDeleting   Status = "SESSION_DELETING"
	StatusRunCommand Status = "SESSION_RUN_COMMAND"
)

// Event is an immutable record of one inspected request.
type Event interface {
	zapcore.ObjectMarshaler
	Status() Status
}

// CreateEvent is a POST to the collection route.
type CreateEvent struct {
	Capabilities DesiredCapabilities
}

// Status implements Event.
func (CreateEvent) Status() Status { return StatusCreating }

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e CreateEvent) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("status", string(StatusCreating))
	return e.Capabilities.MarshalLogObject(enc)
}

// DeleteEvent is a DELETE on any path. SessionID is empty when the path
// carries none.
type DeleteEvent struct {
	SessionID string
}

// Status implements Event.
func (DeleteEvent) Status() Status { return StatusDeleting }

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e DeleteEvent) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("status", string(StatusDeleting))
	enc.AddString("session_id", e.SessionID)
	return nil
}

// CommandEvent is a POST whose final segment is "url", i.e. a navigation.
type CommandEvent struct {
	SessionID string
	URL       string
}

// CommandURL is the only command the proxy inspects.
const CommandURL = "url"

// Status implements Event.
func (CommandEvent) Status() Status { return StatusRunCommand }

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e CommandEvent) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("status", string(StatusRunCommand))
	enc.AddString("session_id", e.SessionID)
	enc.AddString("command", CommandURL)
	enc.AddString("url", e.URL)
	return nil
}

// CreatedEvent records the session id the hub assigned to a new session.
type CreatedEvent struct {
	SessionID string
	SodaUser  string
}

// Status implements Event.
func (CreatedEvent) Status() Status { return StatusCreated }

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e CreatedEvent) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("status", string(StatusCreated))
	enc.AddString("session_id", e.SessionID)
	enc.AddString("soda_user", e.SodaUser)
	return nil
}
