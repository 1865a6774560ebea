package chats

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	chatmodel "github.com/GrSkiy/psycho-backend/internal/model/chat"
	"github.com/GrSkiy/psycho-backend/pkg/utils"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// ChatLister provides the per-user chat listing with previews.
type ChatLister interface {
	ListChatsByUser(ctx context.Context, userID int64, offset, limit int) ([]chatmodel.ChatInfo, error)
}

// Handler serves the companion read endpoint for a user's chats.
type Handler struct {
	chats ChatLister
}

func New(chats ChatLister) *Handler {
	return &Handler{chats: chats}
}

// RegisterRoutes mounts the chats listing.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{userID}/chats", h.handleListChats)
}

func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	offset, limit := parsePage(r)

	infos, err := h.chats.ListChatsByUser(r.Context(), userID, offset, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}

	utils.RespondJSON(w, http.StatusOK, infos)
}

func parsePage(r *http.Request) (offset, limit int) {
	limit = defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	return offset, limit
}
