package chat

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/auth"
	"github.com/autogenius/autogenius/internal/recommend"
)

// The default origin check only admits same-host pages and non-browser clients.
var upgrader = websocket.Upgrader{}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Type      string `json:"type"` // "message"
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type      string              `json:"type"` // "typing", "response" or "error"
	SessionID string              `json:"session_id"`
	Content   string              `json:"content,omitempty"`
	Products  []recommend.Product `json:"products,omitempty"`
	Status    int                 `json:"status,omitempty"`
}

func handleWebSocket(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			svc.logger.Warn("websocket upgrade", zap.Error(err))
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					svc.logger.Warn("websocket read", zap.Error(err))
				}
				return
			}

			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				svc.send(conn, wsResponse{Type: "error", Content: "invalid message format", Status: http.StatusBadRequest})
				continue
			}
			if req.Type != "message" {
				svc.send(conn, wsResponse{Type: "error", SessionID: req.SessionID, Content: "unknown message type: " + req.Type, Status: http.StatusBadRequest})
				continue
			}

			svc.send(conn, wsResponse{Type: "typing", SessionID: req.SessionID})
			reply, err := svc.Send(r.Context(), user.ID, req.SessionID, req.Content)
			if err != nil {
				status, detail := StatusFor(err)
				if status == http.StatusInternalServerError {
					svc.logger.Error("websocket chat failed", zap.Error(err))
				}
				svc.send(conn, wsResponse{Type: "error", SessionID: req.SessionID, Content: detail, Status: status})
				continue
			}
			svc.send(conn, wsResponse{
				Type:      "response",
				SessionID: req.SessionID,
				Content:   reply.Message,
				Products:  reply.Products,
			})
		}
	}
}

func (s *Service) send(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write", zap.Error(err))
	}
}
