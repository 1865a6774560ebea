package diary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	chatmodel "github.com/GrSkiy/psycho-backend/internal/model/chat"
	diarymodel "github.com/GrSkiy/psycho-backend/internal/model/diary"
	"github.com/GrSkiy/psycho-backend/pkg/utils"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// EntryStore is the diary persistence surface the handler needs.
type EntryStore interface {
	CreateEntry(ctx context.Context, entry diarymodel.NewEntry) (diarymodel.Entry, error)
	ListByUser(ctx context.Context, userID int64, offset, limit int) ([]diarymodel.Entry, error)
}

// Handler serves the diary entries API.
type Handler struct {
	entries EntryStore
}

func New(entries EntryStore) *Handler {
	return &Handler{entries: entries}
}

// RegisterRoutes mounts the diary endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/diary/{userID}/entries", h.handleListEntries)
	r.Post("/diary/{userID}/entries", h.handleCreateEntry)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	offset, limit := parsePage(r)

	entries, err := h.entries.ListByUser(r.Context(), userID, offset, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list diary entries")
		return
	}

	utils.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var payload struct {
		Title           string   `json:"title"`
		Content         string   `json:"content"`
		EventType       *string  `json:"event_type"`
		EmotionTags     []string `json:"emotion_tags"`
		ImportanceScore *float64 `json:"importance_score"`
		RelatedChatID   *int64   `json:"related_chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Title == "" || payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	entry, err := h.entries.CreateEntry(r.Context(), diarymodel.NewEntry{
		UserID:          userID,
		Title:           payload.Title,
		Content:         payload.Content,
		EventType:       payload.EventType,
		EmotionTags:     payload.EmotionTags,
		ImportanceScore: payload.ImportanceScore,
		RelatedChatID:   payload.RelatedChatID,
	})
	if err != nil {
		if errors.Is(err, chatmodel.ErrUserNotFound) {
			utils.RespondError(w, http.StatusNotFound, "user not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to create diary entry")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, entry)
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return userID, true
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
