package services

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/insurance-marketplace/internal/models"
	"github.com/senyabanana/insurance-marketplace/internal/repository"
	"github.com/senyabanana/insurance-marketplace/internal/utils"
)

// RequestService - операции над жизненным циклом страховой заявки.
type RequestService struct {
	Repo          repository.RequestRepository
	Notifications *NotificationService
	Logger        *log.Logger
}

// NewRequestService создает новый экземпляр RequestService.
func NewRequestService(repo repository.RequestRepository, notifications *NotificationService, logger *log.Logger) *RequestService {
	return &RequestService{Repo: repo, Notifications: notifications, Logger: logger}
}

func (s *RequestService) notify(ctx context.Context, event models.NotificationEvent) {
	if s.Notifications == nil {
		return
	}
	if _, err := s.Notifications.Dispatch(ctx, event); err != nil {
		s.Logger.Printf("notification dispatch failed for %s: %v", event.Type, err)
	}
}

// CreateRequest создает новую страховую заявку.
func (s *RequestService) CreateRequest(ctx context.Context, clientId string, reqCreate models.RequestCreate) (*models.InsuranceRequest, error) {
	if clientId == "" || reqCreate.Title == "" || reqCreate.InsuranceDetails.RequestedAmount == 0 {
		return nil, models.ErrMissingRequiredFields
	}
	if reqCreate.InsuranceDetails.RequestedAmount < 0 {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "requested amount must be positive")
	}
	if !reqCreate.BiddingDetails.Deadline.After(time.Now().UTC()) {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "bidding deadline must be in the future")
	}
	if reqCreate.BiddingDetails.MinimumBidPercentage < 0 || reqCreate.BiddingDetails.MinimumBidPercentage > models.FullCoverage {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "minimum bid percentage must be within [0:100]")
	}
	return s.Repo.CreateRequest(ctx, clientId, reqCreate)
}

// GetRequest возвращает заявку по ID.
func (s *RequestService) GetRequest(ctx context.Context, requestId string) (*models.InsuranceRequest, error) {
	if requestId == "" {
		return nil, models.ErrMissingRequiredFields
	}
	return s.Repo.GetRequest(ctx, requestId)
}

// GetRequests возвращает список заявок с фильтром по статусу.
func (s *RequestService) GetRequests(ctx context.Context, status, limitStr, offsetStr string) ([]models.InsuranceRequest, error) {
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	if status != "" && !utils.ContainsRequestStatus(models.RequestStatus(status)) {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "invalid request status filter")
	}
	return s.Repo.ListRequests(ctx, status, limit, offset)
}

// GetClientRequests возвращает список заявок клиента.
func (s *RequestService) GetClientRequests(ctx context.Context, clientId, limitStr, offsetStr string) ([]models.InsuranceRequest, error) {
	if clientId == "" {
		return nil, models.ErrMissingRequiredFields
	}
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	return s.Repo.ListClientRequests(ctx, clientId, limit, offset)
}

// UpdateRequestStatus выполняет явный переход статуса заявки.
// Доступно только владельцу; awarded через этот путь недостижим.
func (s *RequestService) UpdateRequestStatus(ctx context.Context, requestId, userId, status string) (*models.InsuranceRequest, error) {
	if requestId == "" || userId == "" || status == "" {
		return nil, models.ErrMissingRequiredFields
	}
	return s.Repo.MutateRequest(ctx, requestId, func(req *models.InsuranceRequest) error {
		if req.ClientID != userId {
			return models.ErrUnauthorized
		}
		return req.UpdateStatus(models.RequestStatus(status))
	})
}

// DeleteRequest удаляет заявку. Заявка с предложениями неизменяема:
// удаление блокируется, чтобы не менять историю торгов задним числом.
// Проверки выполняются под той же блокировкой, что и удаление: предложение,
// поданное параллельно, либо блокирует удаление, либо получает
// ErrRequestNotFound, но не пропадает каскадом.
func (s *RequestService) DeleteRequest(ctx context.Context, requestId, userId string) error {
	if requestId == "" || userId == "" {
		return models.ErrMissingRequiredFields
	}
	return s.Repo.DeleteRequest(ctx, requestId, func(req *models.InsuranceRequest) error {
		if req.ClientID != userId {
			return models.ErrUnauthorized
		}
		if req.BidCount > 0 {
			return models.ErrRequestHasBids
		}
		return nil
	})
}

// FinalizeRequest подтверждает собранное покрытие вручную.
// Каждый поставщик из awardedBids получает уведомление request_awarded.
func (s *RequestService) FinalizeRequest(ctx context.Context, requestId, userId string) (*models.InsuranceRequest, error) {
	if requestId == "" || userId == "" {
		return nil, models.ErrMissingRequiredFields
	}
	req, err := s.Repo.MutateRequest(ctx, requestId, func(req *models.InsuranceRequest) error {
		if req.ClientID != userId {
			return models.ErrUnauthorized
		}
		return req.Finalize(time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	for _, awarded := range req.AwardedBids {
		s.notify(ctx, models.NotificationEvent{
			Type:        models.RequestAwardedNotification,
			RecipientID: awarded.ProviderID,
			SenderID:    userId,
			Data: map[string]interface{}{
				"requestId": req.ID,
				"bidId":     awarded.BidID,
			},
		})
	}
	return req, nil
}

// ExpireOverdueRequests переводит просроченные заявки в expired.
// Вызывается фоновым тикером из main, ядро домена таймеров не держит.
func (s *RequestService) ExpireOverdueRequests(ctx context.Context) (int64, error) {
	return s.Repo.ExpireOverdueRequests(ctx, time.Now().UTC())
}
