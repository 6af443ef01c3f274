package services

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/insurance-marketplace/internal/models"
	"github.com/senyabanana/insurance-marketplace/internal/repository"
	"github.com/senyabanana/insurance-marketplace/internal/utils"

	"github.com/google/uuid"
)

// BidService - операции над реестром предложений заявки.
type BidService struct {
	Requests      repository.RequestRepository
	Bids          repository.BidRepository
	Notifications *NotificationService
	Logger        *log.Logger
}

// NewBidService создает новый экземпляр BidService.
func NewBidService(requests repository.RequestRepository, bids repository.BidRepository, notifications *NotificationService, logger *log.Logger) *BidService {
	return &BidService{
		Requests:      requests,
		Bids:          bids,
		Notifications: notifications,
		Logger:        logger,
	}
}

// notify отправляет уведомление после фиксации основной операции.
// Ошибка диспетчера логируется и не откатывает уже сохраненную мутацию.
func (s *BidService) notify(ctx context.Context, event models.NotificationEvent) {
	if s.Notifications == nil {
		return
	}
	if _, err := s.Notifications.Dispatch(ctx, event); err != nil {
		s.Logger.Printf("notification dispatch failed for %s: %v", event.Type, err)
	}
}

// SubmitBid подает новое предложение по заявке.
// Первое предложение переводит заявку из open в bidding; клиент заявки
// получает уведомление bid_submitted.
func (s *BidService) SubmitBid(ctx context.Context, providerId string, bidReq models.BidRequest) (*models.Bid, *models.InsuranceRequest, error) {
	if providerId == "" || bidReq.RequestID == "" || bidReq.Amount == 0 || bidReq.Percentage == 0 {
		return nil, nil, models.ErrMissingRequiredFields
	}

	var newBid *models.Bid
	req, err := s.Requests.MutateRequest(ctx, bidReq.RequestID, func(req *models.InsuranceRequest) error {
		if req.ClientID == providerId {
			return models.NewErrorResponse(http.StatusForbidden, "client cannot bid on own request")
		}
		now := time.Now().UTC()
		if err := req.ValidateNewBid(providerId, bidReq.Amount, bidReq.Percentage, now); err != nil {
			return err
		}
		bid := models.Bid{
			ID:          uuid.New().String(),
			RequestID:   req.ID,
			ProviderID:  providerId,
			Amount:      bidReq.Amount,
			Percentage:  bidReq.Percentage,
			Premium:     bidReq.Premium,
			Terms:       bidReq.Terms,
			Conditions:  bidReq.Conditions,
			Status:      models.PendingBid,
			SubmittedAt: now,
		}
		req.AttachBid(bid)
		newBid = req.FindBid(bid.ID)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.notify(ctx, models.NotificationEvent{
		Type:        models.BidSubmittedNotification,
		RecipientID: req.ClientID,
		SenderID:    providerId,
		Data: map[string]interface{}{
			"requestId":  req.ID,
			"bidId":      newBid.ID,
			"amount":     newBid.Amount,
			"percentage": newBid.Percentage,
		},
	})
	return newBid, req, nil
}

// RespondToBid фиксирует решение клиента по предложению. При requestId == ""
// заявка находится по предложению: оба HTTP-входа сходятся сюда.
// Поставщик получает bid_accepted или bid_rejected; если принятие довело
// покрытие до 100%, клиент дополнительно получает request_awarded.
func (s *BidService) RespondToBid(ctx context.Context, requestId, bidId, responderId string, decision models.BidDecision, note string) (*models.Bid, *models.InsuranceRequest, error) {
	if bidId == "" || responderId == "" {
		return nil, nil, models.ErrMissingRequiredFields
	}

	if requestId == "" {
		var err error
		requestId, err = s.Bids.FindRequestIDByBid(ctx, bidId)
		if err != nil {
			return nil, nil, err
		}
	}

	var respondedBid *models.Bid
	var becameAwarded bool
	req, err := s.Requests.MutateRequest(ctx, requestId, func(req *models.InsuranceRequest) error {
		if req.ClientID != responderId {
			return models.ErrUnauthorized
		}
		wasAwarded := req.Status == models.AwardedRequest
		bid, err := req.RespondToBid(bidId, decision, note, time.Now().UTC())
		if err != nil {
			return err
		}
		respondedBid = bid
		becameAwarded = !wasAwarded && req.Status == models.AwardedRequest
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	eventType := models.BidRejectedNotification
	if respondedBid.Status == models.AcceptedBid {
		eventType = models.BidAcceptedNotification
	}
	s.notify(ctx, models.NotificationEvent{
		Type:        eventType,
		RecipientID: respondedBid.ProviderID,
		SenderID:    responderId,
		Data: map[string]interface{}{
			"requestId":  req.ID,
			"bidId":      respondedBid.ID,
			"percentage": respondedBid.Percentage,
		},
	})
	if becameAwarded {
		s.notify(ctx, models.NotificationEvent{
			Type:        models.RequestAwardedNotification,
			RecipientID: req.ClientID,
			Data:        map[string]interface{}{"requestId": req.ID},
		})
	}
	return respondedBid, req, nil
}

// WithdrawBid отзывает собственное ожидающее предложение поставщика.
func (s *BidService) WithdrawBid(ctx context.Context, bidId, providerId string) (*models.Bid, *models.InsuranceRequest, error) {
	if bidId == "" || providerId == "" {
		return nil, nil, models.ErrMissingRequiredFields
	}

	requestId, err := s.Bids.FindRequestIDByBid(ctx, bidId)
	if err != nil {
		return nil, nil, err
	}

	var withdrawnBid *models.Bid
	req, err := s.Requests.MutateRequest(ctx, requestId, func(req *models.InsuranceRequest) error {
		bid, err := req.WithdrawBid(bidId, providerId, time.Now().UTC())
		if err != nil {
			return err
		}
		withdrawnBid = bid
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.notify(ctx, models.NotificationEvent{
		Type:        models.BidWithdrawnNotification,
		RecipientID: req.ClientID,
		SenderID:    providerId,
		Data: map[string]interface{}{
			"requestId": req.ID,
			"bidId":     withdrawnBid.ID,
		},
	})
	return withdrawnBid, req, nil
}

// GetRequestBids возвращает реестр предложений заявки в порядке подачи.
func (s *BidService) GetRequestBids(ctx context.Context, requestId string) ([]models.Bid, error) {
	if requestId == "" {
		return nil, models.ErrMissingRequiredFields
	}
	req, err := s.Requests.GetRequest(ctx, requestId)
	if err != nil {
		return nil, err
	}
	return req.Bids, nil
}

// GetProviderBids возвращает список предложений поставщика.
func (s *BidService) GetProviderBids(ctx context.Context, providerId, limitStr, offsetStr string) ([]models.Bid, error) {
	if providerId == "" {
		return nil, models.ErrMissingRequiredFields
	}
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	return s.Bids.ListProviderBids(ctx, providerId, limit, offset)
}
