package models

import "time"

type (
	BidStatus   string // Статус предложения
	BidDecision string // Решение клиента по предложению
)

const (
	PendingBid   BidStatus = "pending"   // Предложение ожидает решения
	AcceptedBid  BidStatus = "accepted"  // Предложение принято
	RejectedBid  BidStatus = "rejected"  // Предложение отклонено
	WithdrawnBid BidStatus = "withdrawn" // Предложение отозвано поставщиком
	ExpiredBid   BidStatus = "expired"   // Предложение просрочено

	AcceptBid BidDecision = "accept" // Принять предложение
	RejectBid BidDecision = "reject" // Отклонить предложение
)

// Bid представляет модель предложения страхового покрытия.
// Предложение принадлежит ровно одной заявке и не живет вне нее.
type Bid struct {
	ID           string     `json:"id"`
	RequestID    string     `json:"requestId"`
	ProviderID   string     `json:"providerId"`
	Amount       float64    `json:"amount"`
	Percentage   float64    `json:"percentage"`
	Premium      float64    `json:"premium"`
	Terms        string     `json:"terms"`
	Conditions   string     `json:"conditions,omitempty"`
	Status       BidStatus  `json:"status"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	ResponseAt   *time.Time `json:"responseAt,omitempty"`
	ResponseNote string     `json:"responseNote,omitempty"`
}

// IsTerminal сообщает, находится ли предложение в конечном статусе.
// Из конечного статуса переходов нет.
func (b *Bid) IsTerminal() bool {
	return b.Status != PendingBid
}

// BidRequest представляет структуру запроса для подачи предложения.
type BidRequest struct {
	RequestID  string  `json:"requestId"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
	Premium    float64 `json:"premium"`
	Terms      string  `json:"terms"`
	Conditions string  `json:"conditions,omitempty"`
}

// BidDecisionRequest представляет структуру запроса с решением по предложению.
type BidDecisionRequest struct {
	Action BidDecision `json:"action"`
	Note   string      `json:"note,omitempty"`
}
