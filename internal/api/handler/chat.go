package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/gaminghub/internal/api/middleware"
	"github.com/mcoot/gaminghub/internal/api/request"
	"github.com/mcoot/gaminghub/internal/api/response"
	"github.com/mcoot/gaminghub/internal/model"
	"github.com/mcoot/gaminghub/internal/services/chatbot"
	"github.com/mcoot/gaminghub/internal/services/moderation"
)

// ChatHandler handles chat moderation checks and the chat bot's question
type ChatHandler struct {
	moderation *moderation.Service
	bot        *chatbot.Service
}

// NewChatHandler creates a new chat handler. bot may be nil to run without the chat bot.
func NewChatHandler(moderation *moderation.Service, bot *chatbot.Service) *ChatHandler {
	return &ChatHandler{moderation: moderation, bot: bot}
}

// Check handles POST /api/v1/chat/check
func (h *ChatHandler) Check(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.MustGetPlayerID(r.Context())

	var req request.ChatCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	verdict, err := h.moderation.Check(r.Context(), playerID, req.Message)
	if err != nil {
		WriteError(w, err)
		return
	}

	// Only messages that may be posted can answer the bot
	var win *chatbot.Win
	if verdict.Allowed && h.bot != nil {
		win, err = h.bot.Answer(r.Context(), playerID, req.Message)
		if err != nil {
			WriteError(w, err)
			return
		}
	}

	response.JSON(w, http.StatusOK, response.ChatCheckFromResult(verdict, win))
}

// Question handles GET /api/v1/chat/question
func (h *ChatHandler) Question(w http.ResponseWriter, r *http.Request) {
	if h.bot == nil {
		WriteError(w, model.ErrBotSessionNotFound)
		return
	}

	session, err := h.bot.Current(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.BotQuestionFromModel(session))
}
