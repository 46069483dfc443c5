package server

import (
	"context"
	"encoding/json"

	"mainq/internal/middleware"
	"mainq/internal/notifications"
	"mainq/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler returns a websocket handler that registers connections with the Hub.
// Signed-in clients (ticket) receive their notifications and catalog changes;
// anonymous clients receive catalog changes only.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		if s.hub == nil {
			_ = conn.Close()
			return
		}

		sess, _ := conn.Locals(localSession).(*session.Session)
		userID := ""
		if sess.Authenticated() {
			userID = sess.UserID
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed", "user_id", userID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		client.TrySend(s.hello(sess))

		go client.WritePump()
		client.ReadPump()
	})
}

// hello is the first frame on every live connection.
func (s *Server) hello(sess *session.Session) []byte {
	info := fiber.Map{"authenticated": sess.Authenticated()}
	if sess.Authenticated() {
		if n, err := s.notificationService.UnreadCount(context.Background(), sess); err == nil {
			info["unread"] = n
		}
	}
	payload, _ := json.Marshal(notifications.Event{Type: notifications.EventHello, Payload: info})
	return payload
}
