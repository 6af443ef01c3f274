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

// RequestHandler - структура для обработки HTTP-запросов по заявкам.
type RequestHandler struct {
	Service *services.RequestService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewRequestHandler создает новый экземпляр RequestHandler.
func NewRequestHandler(service *services.RequestService, logger *log.Logger, timeout time.Duration) *RequestHandler {
	return &RequestHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// CreateRequest обрабатывает запросы на создание страховой заявки.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var reqCreate models.RequestCreate
	if err := json.NewDecoder(r.Body).Decode(&reqCreate); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newRequest, err := h.Service.CreateRequest(ctx, utils.GetUserID(r), reqCreate)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to create insurance request")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(newRequest); err != nil {
		h.Logger.Println(err)
	}
}

// GetRequests обрабатывает запросы на получение списка заявок.
func (h *RequestHandler) GetRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	status := r.URL.Query().Get("status")
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	requests, err := h.Service.GetRequests(ctx, status, limitStr, offsetStr)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to retrieve insurance requests")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(requests); err != nil {
		h.Logger.Println(err)
	}
}

// GetUserRequests обрабатывает запросы на получение заявок клиента.
func (h *RequestHandler) GetUserRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	requests, err := h.Service.GetClientRequests(ctx, utils.GetUserID(r), limitStr, offsetStr)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to retrieve insurance requests")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(requests); err != nil {
		h.Logger.Println(err)
	}
}

// GetRequest обрабатывает запросы на получение заявки по ID.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	request, err := h.Service.GetRequest(ctx, r.PathValue("requestId"))
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to retrieve insurance request")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(request); err != nil {
		h.Logger.Println(err)
	}
}

// UpdateRequestStatus обрабатывает запросы на смену статуса заявки.
func (h *RequestHandler) UpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	requestId := r.PathValue("requestId")
	status := r.URL.Query().Get("status")

	request, err := h.Service.UpdateRequestStatus(ctx, requestId, utils.GetUserID(r), status)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to update request status")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(request); err != nil {
		h.Logger.Println(err)
	}
}

// DeleteRequest обрабатывает запросы на удаление заявки.
func (h *RequestHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if err := h.Service.DeleteRequest(ctx, r.PathValue("requestId"), utils.GetUserID(r)); err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to delete insurance request")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FinalizeRequest обрабатывает запросы на подтверждение собранного покрытия.
func (h *RequestHandler) FinalizeRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	request, err := h.Service.FinalizeRequest(ctx, r.PathValue("requestId"), utils.GetUserID(r))
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to finalize insurance request")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(request); err != nil {
		h.Logger.Println(err)
	}
}
