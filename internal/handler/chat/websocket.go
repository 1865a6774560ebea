package chat

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/GrSkiy/psycho-backend/internal/auth"
	"github.com/GrSkiy/psycho-backend/internal/config"
	chatmodel "github.com/GrSkiy/psycho-backend/internal/model/chat"
	"github.com/GrSkiy/psycho-backend/internal/model/persona"
	chatservice "github.com/GrSkiy/psycho-backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
)

// UserProvisioner creates the caller's user row on first contact.
type UserProvisioner interface {
	GetOrCreate(ctx context.Context, id int64) (chatmodel.User, error)
}

// Handler upgrades the live connection and runs one session per socket.
// Each connection is served by its own read goroutine, so a slow completion
// on one connection never stalls the others.
type Handler struct {
	users      UserProvisioner
	store      chatservice.Store
	completer  chatservice.Completer
	dispatcher chatservice.Dispatcher
	identity   auth.IdentityResolver
	persona    persona.Persona
	cfg        config.ChatConfig
	upgrader   websocket.Upgrader
}

// New wires the session collaborators for the websocket endpoint.
func New(users UserProvisioner, store chatservice.Store, completer chatservice.Completer, dispatcher chatservice.Dispatcher, identity auth.IdentityResolver, p persona.Persona, cfg config.ChatConfig) *Handler {
	return &Handler{
		users:      users,
		store:      store,
		completer:  completer,
		dispatcher: dispatcher,
		identity:   identity,
		persona:    p,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := h.identity(r)
	if err != nil {
		http.Error(w, "caller identity required", http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetOrCreate(r.Context(), userID)
	if err != nil {
		slog.Error("user provisioning failed", "user_id", userID, "error", err)
		http.Error(w, "failed to prepare user", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "user_id", user.ID, "error", err)
		return
	}
	defer conn.Close()

	log := slog.With("conn_id", uuid.NewString(), "user_id", user.ID, "persona", h.persona.ID)
	log.Info("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	go pingLoop(ctx, conn)

	sessionCtx := chatservice.NewContext(h.persona.SystemPrompt(), h.cfg.ContextMaxTurns)
	session := chatservice.NewSession(user.ID, h.store, h.completer, h.dispatcher,
		wsSender{conn: conn}, sessionCtx, h.cfg.HistoryLimit, log)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("session panicked", "panic", rec)
			session.NotifyFatal("internal server error")
		}
		session.Close()
		log.Info("client disconnected")
	}()

	// Frames for this connection are read and handled strictly in order; a
	// turn finishes before the next frame is picked up.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error("websocket read failed", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		session.HandleFrame(ctx, data)
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// wsSender adapts the socket to the session's Sender interface.
type wsSender struct {
	conn *websocket.Conn
}

func (s wsSender) Send(v any) error {
	return s.conn.WriteJSON(v)
}
