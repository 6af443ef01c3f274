package models

import (
	"net/http"
	"time"
)

type RequestStatus string // Статус страховой заявки

const (
	OpenRequest      RequestStatus = "open"      // Заявка открыта, предложений еще нет
	BiddingRequest   RequestStatus = "bidding"   // Идет прием предложений
	ReviewingRequest RequestStatus = "reviewing" // Клиент рассматривает предложения
	AwardedRequest   RequestStatus = "awarded"   // Покрытие собрано и подтверждено
	ClosedRequest    RequestStatus = "closed"    // Заявка закрыта клиентом
	ExpiredRequest   RequestStatus = "expired"   // Срок приема предложений истек
)

const (
	// FullCoverage - доля покрытия, при которой заявка считается закрытой полностью.
	FullCoverage = 100.0
	// CoverageEpsilon - допуск на накопленную ошибку сложения процентов.
	CoverageEpsilon = 1e-6
)

// BiddingDetails описывает условия приема предложений по заявке.
type BiddingDetails struct {
	Deadline              time.Time `json:"deadline"`
	MinimumBidPercentage  float64   `json:"minimumBidPercentage"`
	AllowPartialBids      bool      `json:"allowPartialBids"`
	GroupInsuranceAllowed bool      `json:"groupInsuranceAllowed"`
}

// InsuranceDetails описывает запрашиваемое покрытие.
// RequestedAmount - сумма, относительно которой считаются все проценты.
type InsuranceDetails struct {
	CoverageType    string  `json:"coverageType"`
	RequestedAmount float64 `json:"requestedAmount"`
}

// AwardedBid - снимок принятого предложения на момент принятия.
// Журнал снимков только пополняется и задним числом не пересчитывается.
type AwardedBid struct {
	BidID      string    `json:"bidId"`
	ProviderID string    `json:"providerId"`
	Amount     float64   `json:"amount"`
	Percentage float64   `json:"percentage"`
	Premium    float64   `json:"premium"`
	AwardedAt  time.Time `json:"awardedAt"`
}

// InsuranceRequest представляет модель страховой заявки.
// Заявка - корень агрегата: предложения встроены в нее и мутируются только через нее.
type InsuranceRequest struct {
	ID                     string           `json:"id"`
	ClientID               string           `json:"clientId"`
	Title                  string           `json:"title"`
	InsuranceDetails       InsuranceDetails `json:"insuranceDetails"`
	BiddingDetails         BiddingDetails   `json:"biddingDetails"`
	Bids                   []Bid            `json:"bids"`
	AwardedBids            []AwardedBid     `json:"awardedBids"`
	TotalAwardedAmount     float64          `json:"totalAwardedAmount"`
	TotalAwardedPercentage float64          `json:"totalAwardedPercentage"`
	IsFullyCovered         bool             `json:"isFullyCovered"`
	Status                 RequestStatus    `json:"status"`
	BidCount               int              `json:"bidCount"`
	Version                int              `json:"version"`
	CreatedAt              time.Time        `json:"createdAt"`
}

// RequestCreate представляет структуру запроса для создания заявки.
type RequestCreate struct {
	Title            string           `json:"title"`
	InsuranceDetails InsuranceDetails `json:"insuranceDetails"`
	BiddingDetails   BiddingDetails   `json:"biddingDetails"`
}

// allowedRequestTransitions - переходы статуса, доступные через явное обновление.
// Статус awarded достигается только через принятие предложений или finalize.
var allowedRequestTransitions = map[RequestStatus][]RequestStatus{
	OpenRequest:      {ReviewingRequest, ClosedRequest},
	BiddingRequest:   {ReviewingRequest, ClosedRequest},
	ReviewingRequest: {BiddingRequest, ClosedRequest},
	AwardedRequest:   {},
	ClosedRequest:    {},
	ExpiredRequest:   {},
}

// FindBid возвращает предложение по его ID.
func (r *InsuranceRequest) FindBid(bidID string) *Bid {
	for i := range r.Bids {
		if r.Bids[i].ID == bidID {
			return &r.Bids[i]
		}
	}
	return nil
}

// HasBidFrom сообщает, есть ли у поставщика предложение по этой заявке.
// Учитываются предложения в любом статусе: повторная подача после отзыва
// или отклонения не допускается.
func (r *InsuranceRequest) HasBidFrom(providerID string) bool {
	for i := range r.Bids {
		if r.Bids[i].ProviderID == providerID {
			return true
		}
	}
	return false
}

// ValidateNewBid проверяет предусловия подачи нового предложения.
func (r *InsuranceRequest) ValidateNewBid(providerID string, amount, percentage float64, now time.Time) error {
	if r.Status != OpenRequest && r.Status != BiddingRequest {
		return ErrBiddingClosed
	}
	if now.After(r.BiddingDetails.Deadline) {
		return ErrDeadlinePassed
	}
	if r.HasBidFrom(providerID) {
		return ErrDuplicateBid
	}
	if amount <= 0 || amount > r.InsuranceDetails.RequestedAmount {
		return ErrInvalidBidAmount
	}
	if percentage <= 0 || percentage > FullCoverage || percentage < r.BiddingDetails.MinimumBidPercentage {
		return ErrInvalidBidPercentage
	}
	if !r.BiddingDetails.AllowPartialBids && percentage < FullCoverage {
		return ErrPartialBidNotAllowed
	}
	return nil
}

// AttachBid добавляет предложение в реестр заявки.
// Первое предложение переводит заявку из open в bidding.
func (r *InsuranceRequest) AttachBid(bid Bid) {
	r.Bids = append(r.Bids, bid)
	r.BidCount = len(r.Bids)
	if r.Status == OpenRequest {
		r.Status = BiddingRequest
	}
}

// RespondToBid фиксирует решение клиента по предложению.
// Принятие пополняет суммы покрытия и журнал awardedBids; достижение 100%
// автоматически переводит заявку в awarded. Отклонение сумм не касается.
func (r *InsuranceRequest) RespondToBid(bidID string, decision BidDecision, note string, now time.Time) (*Bid, error) {
	bid := r.FindBid(bidID)
	if bid == nil {
		return nil, ErrBidNotFound
	}
	if bid.IsTerminal() {
		return nil, ErrBidNotPending
	}

	switch decision {
	case AcceptBid:
		if r.TotalAwardedPercentage+bid.Percentage > FullCoverage+CoverageEpsilon {
			return nil, ErrCoverageExceeded
		}
		bid.Status = AcceptedBid
		bid.ResponseAt = &now
		bid.ResponseNote = note

		r.TotalAwardedAmount += bid.Amount
		r.TotalAwardedPercentage += bid.Percentage
		r.AwardedBids = append(r.AwardedBids, AwardedBid{
			BidID:      bid.ID,
			ProviderID: bid.ProviderID,
			Amount:     bid.Amount,
			Percentage: bid.Percentage,
			Premium:    bid.Premium,
			AwardedAt:  now,
		})
		r.IsFullyCovered = r.TotalAwardedPercentage >= FullCoverage-CoverageEpsilon
		if r.IsFullyCovered && (r.Status == BiddingRequest || r.Status == ReviewingRequest) {
			r.Status = AwardedRequest
		}
	case RejectBid:
		bid.Status = RejectedBid
		bid.ResponseAt = &now
		bid.ResponseNote = note
	default:
		return nil, NewErrorResponse(http.StatusBadRequest, "invalid decision, must be either 'accept' or 'reject'")
	}
	return bid, nil
}

// WithdrawBid отзывает предложение по инициативе поставщика.
func (r *InsuranceRequest) WithdrawBid(bidID, providerID string, now time.Time) (*Bid, error) {
	bid := r.FindBid(bidID)
	if bid == nil {
		return nil, ErrBidNotFound
	}
	if bid.ProviderID != providerID {
		return nil, ErrUnauthorized
	}
	if bid.IsTerminal() {
		return nil, ErrBidNotPending
	}
	bid.Status = WithdrawnBid
	bid.ResponseAt = &now
	return bid, nil
}

// Finalize подтверждает собранное покрытие и закрывает заявку как awarded.
// Повторный вызов на уже подтвержденной заявке - ошибка, а не no-op.
func (r *InsuranceRequest) Finalize(now time.Time) error {
	if r.Status == AwardedRequest {
		return ErrAlreadyFinalized
	}
	if r.TotalAwardedPercentage < FullCoverage-CoverageEpsilon {
		return ErrInsufficientCoverage
	}
	r.Status = AwardedRequest
	r.IsFullyCovered = true
	return nil
}

// UpdateStatus выполняет явный переход статуса заявки.
func (r *InsuranceRequest) UpdateStatus(newStatus RequestStatus) error {
	for _, valid := range allowedRequestTransitions[r.Status] {
		if valid == newStatus {
			r.Status = newStatus
			return nil
		}
	}
	return ErrInvalidStatusTransition
}
