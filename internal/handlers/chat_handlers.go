package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/insurance-marketplace/internal/models"
	"github.com/senyabanana/insurance-marketplace/internal/services"
	"github.com/senyabanana/insurance-marketplace/internal/utils"
)

// ChatHandler - структура для обработки HTTP-запросов по чату.
type ChatHandler struct {
	Service *services.ChatService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewChatHandler создает новый экземпляр ChatHandler.
func NewChatHandler(service *services.ChatService, logger *log.Logger, timeout time.Duration) *ChatHandler {
	return &ChatHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// CreateRoom обрабатывает запросы на создание или поиск комнаты.
func (h *ChatHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var roomReq models.RoomRequest
	if err := json.NewDecoder(r.Body).Decode(&roomReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.Service.FindOrCreateRoom(ctx, utils.GetUserID(r), roomReq)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to open chat room")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(room); err != nil {
		h.Logger.Println(err)
	}
}

// GetRooms обрабатывает запросы на получение комнат пользователя.
func (h *ChatHandler) GetRooms(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	rooms, err := h.Service.GetRooms(ctx, utils.GetUserID(r), limitStr, offsetStr)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to retrieve chat rooms")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(rooms); err != nil {
		h.Logger.Println(err)
	}
}

// GetMessages обрабатывает запросы на получение сообщений комнаты.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	roomId := r.PathValue("roomId")
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	messages, err := h.Service.GetMessages(ctx, roomId, utils.GetUserID(r), limitStr, offsetStr)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to retrieve messages")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(messages); err != nil {
		h.Logger.Println(err)
	}
}

// SendMessage обрабатывает запросы на отправку сообщения.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var msgReq models.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&msgReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.Service.SendMessage(ctx, r.PathValue("roomId"), utils.GetUserID(r), msgReq)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(message); err != nil {
		h.Logger.Println(err)
	}
}

// MarkRoomRead обрабатывает запросы на прочтение комнаты.
func (h *ChatHandler) MarkRoomRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	room, err := h.Service.MarkRead(ctx, r.PathValue("roomId"), utils.GetUserID(r))
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to mark room as read")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(room); err != nil {
		h.Logger.Println(err)
	}
}
