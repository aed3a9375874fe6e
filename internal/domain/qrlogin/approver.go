package qrlogin

import (
	"context"

	"scc-link-go/internal/contracts/qrlink"
)

// Approver is the scanning-device counterpart of the coordinator: it submits
// the decoded QR payload with the user's credentials and confirms the login.
type Approver struct {
	channel Channel
}

// NewApprover builds an approver on top of the shared channel.
func NewApprover(ch Channel) *Approver {
	return &Approver{channel: ch}
}

// Validate submits the scanned QR payload together with credentials.
func (a *Approver) Validate(ctx context.Context, qrData string, creds qrlink.Credentials) error {
	_, err := a.channel.Call(ctx, qrlink.EventValidate, qrlink.ValidateRequest{
		QRData:          qrData,
		UserCredentials: creds,
	}, validateTimeout)
	return err
}

// Confirm finalizes the handoff for a previously validated session.
func (a *Approver) Confirm(ctx context.Context, sessionID string) error {
	_, err := a.channel.Call(ctx, qrlink.EventConfirm, qrlink.ConfirmRequest{
		SessionID: sessionID,
	}, confirmTimeout)
	return err
}
