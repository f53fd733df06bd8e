package out_ws

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/shared/ws"
)

// WsNotifier доставляет уведомления подключенным дашбордам через WebSocket.
// Доставка best-effort: отключенный пользователь получит уведомление
// по основному каналу (push/email коллаборатор).
type WsNotifier struct {
	hub *ws.Hub
	log zerolog.Logger
}

// NewWsNotifier создает новый notifier.
func NewWsNotifier(hub *ws.Hub, log zerolog.Logger) *WsNotifier {
	return &WsNotifier{hub: hub, log: log}
}

// Notify отправляет уведомление каждому подключенному получателю.
func (n *WsNotifier) Notify(ctx context.Context, userIDs []string, kind string, rideID string) error {
	message := map[string]string{
		"type":    kind,
		"ride_id": rideID,
	}

	for _, userID := range userIDs {
		if !n.hub.IsUserConnected(userID) {
			continue
		}
		if err := n.hub.SendToUserJSON(userID, message); err != nil {
			n.log.Warn().Err(err).
				Str("user_id", userID).
				Str("ride_id", rideID).
				Str("kind", kind).
				Msg("ws notification failed")
		}
	}
	return nil
}
