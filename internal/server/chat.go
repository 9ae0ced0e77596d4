package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stylebot/server/internal/agent/model"
	"github.com/stylebot/server/internal/fallback"
	"github.com/stylebot/server/internal/services"
	"github.com/stylebot/server/internal/session"
	logx "github.com/stylebot/server/pkg/logger"
)

type chatRequest struct {
	UserID    int64  `json:"user_id"`
	Text      string `json:"text"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type chatResponse struct {
	Messages []string `json:"messages"`
}

// Chat handles one conversational turn. The reply is always a usable chat
// message; failures inside the turn surface as catalog messages, not errors.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID <= 0 || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "user_id and text are required")
		return
	}

	ctx := r.Context()

	allowed, count := h.sessions.CheckRateLimit(ctx, req.UserID,
		h.rateCfg.RateLimit.MaxRequests, h.rateCfg.RateLimit.WindowSeconds)
	if !allowed {
		resp := fallback.Lookup(fallback.RateLimited,
			map[string]any{"user_id": req.UserID, "request_count": count}, nil)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"messages":            []string{resp.Message},
			"retry_after_seconds": resp.RetryAfterSeconds,
		})
		return
	}

	if req.FirstName != "" || req.Username != "" {
		h.sessions.UpdateUserInfo(ctx, req.UserID, req.FirstName, req.Username, "")
	}

	reply := fallback.WithFallback(ctx, func(ctx context.Context) (string, error) {
		return h.runner.Invoke(ctx, model.TurnInput{UserID: req.UserID, Text: req.Text})
	}, fallback.UnknownError, map[string]any{"user_id": req.UserID})

	writeJSON(w, http.StatusOK, chatResponse{Messages: ChunkMessage(reply, MaxMessageLength)})
}

type photoRequest struct {
	UserID      int64  `json:"user_id"`
	PhotoBase64 string `json:"photo_base64"`
	MimeType    string `json:"mime_type"`
	Caption     string `json:"caption,omitempty"`
}

type photoResponse struct {
	Messages []string                 `json:"messages"`
	Analysis *services.OutfitAnalysis `json:"analysis,omitempty"`
}

// ChatPhoto analyzes an outfit photo and folds the result into the user's
// style profile and wardrobe. Accepts either a multipart form (photo,
// user_id, caption) or a JSON body with base64 photo data.
func (h *Handler) ChatPhoto(w http.ResponseWriter, r *http.Request) {
	userID, data, mimeType, caption, err := decodePhotoRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	logCtx := map[string]any{"user_id": userID, "photo_bytes": len(data)}

	if err := services.ValidatePhoto(data, mimeType); err != nil {
		kind := fallback.PhotoInvalidFormat
		if errors.Is(err, services.ErrPhotoTooLarge) {
			kind = fallback.PhotoTooLarge
		}
		writeJSON(w, http.StatusBadRequest, photoResponse{
			Messages: []string{fallback.Message(kind, logCtx, err)},
		})
		return
	}

	if h.vision == nil {
		writeJSON(w, http.StatusOK, photoResponse{
			Messages: []string{fallback.Message(fallback.FeatureDisabled, map[string]any{"feature": "photo analysis"}, nil)},
		})
		return
	}

	analysis, err := h.vision.AnalyzeOutfit(ctx, data, mimeType, caption)
	if err != nil {
		writeJSON(w, http.StatusOK, photoResponse{
			Messages: []string{fallback.VisionMessage(err)},
		})
		return
	}

	reply := h.recordOutfit(ctx, userID, caption, analysis)

	writeJSON(w, http.StatusOK, photoResponse{
		Messages: ChunkMessage(reply, MaxMessageLength),
		Analysis: analysis,
	})
}

// recordOutfit merges the analysis into the session and returns the chat
// reply. A failed save only degrades persistence, never the reply.
func (h *Handler) recordOutfit(ctx context.Context, userID int64, caption string, analysis *services.OutfitAnalysis) string {
	s := h.sessions.GetSession(ctx, userID)

	now := time.Now().UTC()
	for _, item := range analysis.Items {
		s.Wardrobe = append(s.Wardrobe, session.WardrobeItem{
			Name:     item.Name,
			Category: item.Category,
			Color:    item.Color,
			AddedAt:  now,
		})
	}
	if s.StyleProfile == nil {
		s.StyleProfile = map[string]any{}
	}
	if analysis.ColorSeason != "" {
		s.StyleProfile["color_season"] = analysis.ColorSeason
	}
	if analysis.StyleNotes != "" {
		s.StyleProfile["style_notes"] = analysis.StyleNotes
	}
	s.StyleProfile["last_outfit"] = analysis.Description

	reply := analysis.Description
	if analysis.StyleNotes != "" {
		reply += "\n\n" + analysis.StyleNotes
	}

	userText := "[photo]"
	if caption != "" {
		userText = "[photo] " + caption
	}
	s.AddMessage(session.RoleUser, userText)
	s.AddMessage(session.RoleAssistant, reply)

	if !h.sessions.SaveSession(ctx, s) {
		logx.Warn().Int64("user_id", userID).Msg("Outfit analysis not persisted")
	}
	return reply
}

func decodePhotoRequest(r *http.Request) (userID int64, data []byte, mimeType, caption string, err error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(services.MaxPhotoBytes + 1024); err != nil {
			return 0, nil, "", "", fmt.Errorf("invalid multipart form: %w", err)
		}
		userID, err = strconv.ParseInt(r.FormValue("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			return 0, nil, "", "", fmt.Errorf("user_id is required")
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			return 0, nil, "", "", fmt.Errorf("photo file is required")
		}
		defer file.Close()
		data, err = io.ReadAll(io.LimitReader(file, services.MaxPhotoBytes+1))
		if err != nil {
			return 0, nil, "", "", fmt.Errorf("read photo: %w", err)
		}
		mimeType = header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		return userID, data, mimeType, r.FormValue("caption"), nil
	}

	var req photoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, nil, "", "", fmt.Errorf("invalid JSON body")
	}
	if req.UserID <= 0 || req.PhotoBase64 == "" {
		return 0, nil, "", "", fmt.Errorf("user_id and photo_base64 are required")
	}
	data, err = base64.StdEncoding.DecodeString(req.PhotoBase64)
	if err != nil {
		return 0, nil, "", "", fmt.Errorf("photo_base64 is not valid base64")
	}
	mimeType = req.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return req.UserID, data, mimeType, req.Caption, nil
}

// ClearSession wipes the conversation history while preserving learned
// preferences.
func (h *Handler) ClearSession(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	ctx := r.Context()
	s := h.sessions.GetSession(ctx, userID)
	s.ClearHistory()
	if !h.sessions.SaveSession(ctx, s) {
		writeError(w, http.StatusBadGateway, "history cleared but not persisted")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ChunkMessage splits text into pieces of at most maxLen runes, preferring
// to break on newlines, then spaces.
func ChunkMessage(text string, maxLen int) []string {
	if maxLen <= 0 || text == "" {
		return []string{text}
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(runes) > maxLen {
		cut := maxLen
		for i := maxLen; i > maxLen/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		if cut == maxLen {
			for i := maxLen; i > maxLen/2; i-- {
				if runes[i-1] == ' ' {
					cut = i
					break
				}
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), " \n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
