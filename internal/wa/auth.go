package wa

import (
	"context"

	"go.mau.fi/whatsmeow/types"
)

// AuthEventType enumerates auth event types.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventAuthFailed    AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent represents an auth lifecycle event.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	Message string
}

// StartQRAuth begins the QR auth flow and streams events to the bus.
// Returns a channel of AuthEvents. The caller should read until the channel closes.
func (a *Adapter) StartQRAuth(ctx context.Context) (<-chan AuthEvent, error) {
	qrChan, err := a.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan AuthEvent, 10)

	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := a.Connect(); err != nil {
			out <- AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()}
			a.bus.Emit("session.auth_failed", err.Error())
			return
		}

		for item := range qrChan {
			switch item.Event {
			case "code":
				out <- AuthEvent{Type: AuthEventQRCode, QRCode: item.Code}
				a.bus.Emit("session.qr_generated", item.Code)
			case "success":
				out <- AuthEvent{Type: AuthEventAuthenticated, Message: "authenticated"}
				a.bus.Emit("session.authenticated", nil)
				return
			case "timeout":
				out <- AuthEvent{Type: AuthEventTimeout, Message: "QR code timeout"}
				a.bus.Emit("session.auth_failed", "timeout")
				return
			default:
				if item.Error != nil {
					out <- AuthEvent{Type: AuthEventAuthFailed, Message: item.Error.Error()}
					a.bus.Emit("session.auth_failed", item.Error.Error())
					return
				}
			}
		}
	}()

	return out, nil
}

func parseJIDString(s string) (types.JID, error) {
	return types.ParseJID(s)
}
