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

// BidHandler - структура для обработки HTTP-запросов по предложениям.
type BidHandler struct {
	Service *services.BidService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewBidHandler создает новый экземпляр BidHandler.
func NewBidHandler(service *services.BidService, logger *log.Logger, timeout time.Duration) *BidHandler {
	return &BidHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// bidResponse - ответ операций над предложением: само предложение и
// актуальное состояние заявки.
type bidResponse struct {
	Bid     *models.Bid              `json:"bid"`
	Request *models.InsuranceRequest `json:"request"`
}

// CreateBid обрабатывает запросы на подачу предложения.
func (h *BidHandler) CreateBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var bidReq models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&bidReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newBid, request, err := h.Service.SubmitBid(ctx, utils.GetUserID(r), bidReq)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to submit bid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(bidResponse{Bid: newBid, Request: request}); err != nil {
		h.Logger.Println(err)
	}
}

// GetUserBids обрабатывает запросы на получение предложений поставщика.
func (h *BidHandler) GetUserBids(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	bids, err := h.Service.GetProviderBids(ctx, utils.GetUserID(r), limitStr, offsetStr)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to retrieve bids")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bids); err != nil {
		h.Logger.Println(err)
	}
}

// GetRequestBids обрабатывает запросы на получение предложений по заявке.
func (h *BidHandler) GetRequestBids(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bids, err := h.Service.GetRequestBids(ctx, r.PathValue("requestId"))
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to retrieve bids for request")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bids); err != nil {
		h.Logger.Println(err)
	}
}

// respond - общий путь решения по предложению для всех входов.
func (h *BidHandler) respond(w http.ResponseWriter, r *http.Request, requestId, bidId string, decision models.BidDecision, note string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, request, err := h.Service.RespondToBid(ctx, requestId, bidId, utils.GetUserID(r), decision, note)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to respond to bid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bidResponse{Bid: bid, Request: request}); err != nil {
		h.Logger.Println(err)
	}
}

// AcceptBid обрабатывает запросы на принятие предложения.
func (h *BidHandler) AcceptBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}
	h.respond(w, r, "", r.PathValue("bidId"), models.AcceptBid, r.URL.Query().Get("note"))
}

// RejectBid обрабатывает запросы на отклонение предложения.
func (h *BidHandler) RejectBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}
	h.respond(w, r, "", r.PathValue("bidId"), models.RejectBid, r.URL.Query().Get("note"))
}

// RespondToBid обрабатывает комбинированный запрос решения по предложению.
// Функционально эквивалентен AcceptBid/RejectBid и сохранен для
// совместимости с существующими вызывающими сторонами.
func (h *BidHandler) RespondToBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}

	var decisionReq models.BidDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&decisionReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.respond(w, r, r.PathValue("requestId"), r.PathValue("bidId"), decisionReq.Action, decisionReq.Note)
}

// WithdrawBid обрабатывает запросы на отзыв предложения поставщиком.
func (h *BidHandler) WithdrawBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, request, err := h.Service.WithdrawBid(ctx, r.PathValue("bidId"), utils.GetUserID(r))
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			h.Logger.Println(err)
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return
		}
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to withdraw bid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bidResponse{Bid: bid, Request: request}); err != nil {
		h.Logger.Println(err)
	}
}
