package models

import "net/http"

// ErrorResponse описывает ошибку с кодом и сообщением.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Message    string `json:"reason"`
}

// NewErrorResponse создает новую ошибку с кодом и сообщением.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Message:    message}
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	return e.Message
}

// Именованные ошибки предметной области. Каждая возвращается ровно в одной
// ситуации, чтобы вызывающая сторона могла показать осмысленное сообщение.
var (
	ErrRequestNotFound         = NewErrorResponse(http.StatusNotFound, "insurance request not found")
	ErrBidNotFound             = NewErrorResponse(http.StatusNotFound, "bid not found")
	ErrBiddingClosed           = NewErrorResponse(http.StatusConflict, "bidding is closed for this request")
	ErrDeadlinePassed          = NewErrorResponse(http.StatusConflict, "bidding deadline has passed")
	ErrDuplicateBid            = NewErrorResponse(http.StatusConflict, "provider already has a bid on this request")
	ErrInvalidBidAmount        = NewErrorResponse(http.StatusBadRequest, "bid amount must be positive and not exceed the requested amount")
	ErrInvalidBidPercentage    = NewErrorResponse(http.StatusBadRequest, "bid percentage is outside the allowed range for this request")
	ErrPartialBidNotAllowed    = NewErrorResponse(http.StatusBadRequest, "this request does not allow partial coverage bids")
	ErrBidNotPending           = NewErrorResponse(http.StatusConflict, "bid is no longer pending")
	ErrCoverageExceeded        = NewErrorResponse(http.StatusConflict, "acceptance would push awarded coverage past 100 percent")
	ErrInsufficientCoverage    = NewErrorResponse(http.StatusConflict, "awarded coverage is below 100 percent")
	ErrAlreadyFinalized        = NewErrorResponse(http.StatusConflict, "request is already awarded")
	ErrInvalidStatusTransition = NewErrorResponse(http.StatusBadRequest, "invalid request status transition")
	ErrRequestHasBids          = NewErrorResponse(http.StatusConflict, "request cannot be changed after bids were submitted")
	ErrUnauthorized            = NewErrorResponse(http.StatusForbidden, "user is not allowed to perform this action")
	ErrMissingRequiredFields   = NewErrorResponse(http.StatusBadRequest, "missing required fields")
	ErrNotificationNotFound    = NewErrorResponse(http.StatusNotFound, "notification not found")
	ErrRoomNotFound            = NewErrorResponse(http.StatusNotFound, "chat room not found")
	ErrNotParticipant          = NewErrorResponse(http.StatusForbidden, "user is not a participant of this chat room")
)
