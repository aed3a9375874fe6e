// Package qrlink defines the wire contract of the QR login handoff channel:
// the named events exchanged with the backend and their payload shapes.
package qrlink

// Outbound request events (desktop or mobile -> backend).
const (
	EventGenerate = "generate-qr"
	EventValidate = "validate-qr"
	EventConfirm  = "confirm-login"
	EventCancel   = "cancel-qr"
)

// Inbound push events (backend -> desktop).
const (
	PushScanned      = "qr-scanned"
	PushLoginSuccess = "login-success"
	PushExpired      = "qr-expired"
	PushCancelled    = "qr-cancelled"
)

// Ack is the common prefix of every acknowledgment payload.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// GenerateAck is the acknowledgment for EventGenerate.
type GenerateAck struct {
	Ack
	QRCodeData string `json:"qrCodeData,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}

// Credentials carries the secondary device's login data for EventValidate.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidateRequest is the EventValidate payload sent by the scanning device.
type ValidateRequest struct {
	QRData          string      `json:"qrData"`
	UserCredentials Credentials `json:"userCredentials"`
}

// ConfirmRequest is the EventConfirm payload.
type ConfirmRequest struct {
	SessionID string `json:"sessionId"`
}

// CancelRequest is the EventCancel payload.
type CancelRequest struct {
	SessionID string `json:"sessionId"`
}

// User is the identity shape shared by the channel and the REST auth API.
type User struct {
	ID      uint   `json:"id"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email"`
	Profile string `json:"profile,omitempty"`
	Active  bool   `json:"active"`
}

// LoginSuccess is the PushLoginSuccess payload.
type LoginSuccess struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
