package services

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/insurance-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type bidServiceFixture struct {
	requests      *fakeRequestRepository
	notifications *fakeNotificationRepository
	notifier      *fakeNotifier
	service       *BidService
}

func newBidServiceFixture(t *testing.T) *bidServiceFixture {
	t.Helper()
	requests := newFakeRequestRepository()
	notifications := &fakeNotificationRepository{}
	notifier := &fakeNotifier{}
	service := NewBidService(
		requests,
		&fakeBidRepository{requests: requests},
		NewNotificationService(notifications, notifier),
		testLogger(),
	)
	return &bidServiceFixture{
		requests:      requests,
		notifications: notifications,
		notifier:      notifier,
		service:       service,
	}
}

func (f *bidServiceFixture) seedRequest(t *testing.T, clientId string) *models.InsuranceRequest {
	t.Helper()
	req, err := f.requests.CreateRequest(context.Background(), clientId, models.RequestCreate{
		Title: "Warehouse coverage",
		InsuranceDetails: models.InsuranceDetails{
			CoverageType:    "property",
			RequestedAmount: 100000,
		},
		BiddingDetails: models.BiddingDetails{
			Deadline:         time.Now().UTC().Add(24 * time.Hour),
			AllowPartialBids: true,
		},
	})
	require.NoError(t, err)
	return req
}

func (f *bidServiceFixture) seedBid(t *testing.T, requestId, providerId string, amount, percentage float64) *models.Bid {
	t.Helper()
	bid, _, err := f.service.SubmitBid(context.Background(), providerId, models.BidRequest{
		RequestID:  requestId,
		Amount:     amount,
		Percentage: percentage,
	})
	require.NoError(t, err)
	return bid
}

func TestSubmitBid(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")

	bid, updated, err := f.service.SubmitBid(context.Background(), "provider-1", models.BidRequest{
		RequestID:  req.ID,
		Amount:     50000,
		Percentage: 50,
		Premium:    1200,
		Terms:      "net 30",
	})
	require.NoError(t, err)

	assert.Equal(t, models.PendingBid, bid.Status)
	assert.Equal(t, "provider-1", bid.ProviderID)
	assert.Equal(t, models.BiddingRequest, updated.Status)
	assert.Equal(t, 1, updated.BidCount)

	// Клиент заявки получает bid_submitted и realtime-зеркало.
	created := f.notifications.byType(models.BidSubmittedNotification)
	require.Len(t, created, 1)
	assert.Equal(t, "client-1", created[0].RecipientID)
	assert.Equal(t, "provider-1", created[0].SenderID)

	events := f.notifier.events()
	require.Len(t, events, 1)
	assert.Equal(t, UserRoom("client-1"), events[0].Room)
	assert.Equal(t, "notification", events[0].Event)
}

func TestSubmitBidOnOwnRequest(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")

	_, _, err := f.service.SubmitBid(context.Background(), "client-1", models.BidRequest{
		RequestID:  req.ID,
		Amount:     50000,
		Percentage: 50,
	})
	require.Error(t, err)
	errorResponse, ok := err.(*models.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, 403, errorResponse.StatusCode)
	assert.Empty(t, f.notifier.events())
}

func TestSubmitBidValidation(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")
	f.seedBid(t, req.ID, "provider-1", 50000, 50)

	_, _, err := f.service.SubmitBid(context.Background(), "provider-1", models.BidRequest{
		RequestID:  req.ID,
		Amount:     40000,
		Percentage: 40,
	})
	assert.ErrorIs(t, err, models.ErrDuplicateBid)

	_, _, err = f.service.SubmitBid(context.Background(), "", models.BidRequest{RequestID: req.ID, Amount: 1, Percentage: 1})
	assert.ErrorIs(t, err, models.ErrMissingRequiredFields)

	_, _, err = f.service.SubmitBid(context.Background(), "provider-2", models.BidRequest{
		RequestID:  "missing",
		Amount:     40000,
		Percentage: 40,
	})
	assert.ErrorIs(t, err, models.ErrRequestNotFound)
}

func TestRespondToBidAcceptFlow(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")
	bid := f.seedBid(t, req.ID, "provider-1", 60000, 60)

	// requestId пуст: заявка находится по предложению.
	responded, updated, err := f.service.RespondToBid(context.Background(), "", bid.ID, "client-1", models.AcceptBid, "good terms")
	require.NoError(t, err)

	assert.Equal(t, models.AcceptedBid, responded.Status)
	assert.Equal(t, 60.0, updated.TotalAwardedPercentage)
	assert.False(t, updated.IsFullyCovered)

	accepted := f.notifications.byType(models.BidAcceptedNotification)
	require.Len(t, accepted, 1)
	assert.Equal(t, "provider-1", accepted[0].RecipientID)
	assert.Empty(t, f.notifications.byType(models.RequestAwardedNotification))
}

func TestRespondToBidCompletingCoverageNotifiesClient(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")
	first := f.seedBid(t, req.ID, "provider-1", 60000, 60)
	second := f.seedBid(t, req.ID, "provider-2", 40000, 40)

	_, _, err := f.service.RespondToBid(context.Background(), req.ID, first.ID, "client-1", models.AcceptBid, "")
	require.NoError(t, err)
	_, updated, err := f.service.RespondToBid(context.Background(), req.ID, second.ID, "client-1", models.AcceptBid, "")
	require.NoError(t, err)

	assert.Equal(t, models.AwardedRequest, updated.Status)

	// request_awarded уходит клиенту ровно один раз, на закрывшем покрытие принятии.
	awarded := f.notifications.byType(models.RequestAwardedNotification)
	require.Len(t, awarded, 1)
	assert.Equal(t, "client-1", awarded[0].RecipientID)
	assert.Len(t, f.notifications.byType(models.BidAcceptedNotification), 2)
}

func TestRespondToBidUnauthorized(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")
	bid := f.seedBid(t, req.ID, "provider-1", 60000, 60)

	_, _, err := f.service.RespondToBid(context.Background(), req.ID, bid.ID, "provider-2", models.AcceptBid, "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, _, err = f.service.RespondToBid(context.Background(), "", "missing", "client-1", models.AcceptBid, "")
	assert.ErrorIs(t, err, models.ErrBidNotFound)
}

func TestRespondToBidConcurrentAccepts(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")
	first := f.seedBid(t, req.ID, "provider-1", 50000, 50)
	second := f.seedBid(t, req.ID, "provider-2", 50000, 50)

	var wg sync.WaitGroup
	for _, bidId := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := f.service.RespondToBid(context.Background(), req.ID, id, "client-1", models.AcceptBid, "")
			assert.NoError(t, err)
		}(bidId)
	}
	wg.Wait()

	// Оба принятия отражены: lost update исключен сериализацией мутаций.
	updated, err := f.requests.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, updated.TotalAwardedPercentage)
	assert.Equal(t, models.AwardedRequest, updated.Status)
	assert.Len(t, updated.AwardedBids, 2)
	assert.Len(t, f.notifications.byType(models.RequestAwardedNotification), 1)
}

func TestRespondToBidConcurrentOverCap(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")
	first := f.seedBid(t, req.ID, "provider-1", 70000, 70)
	second := f.seedBid(t, req.ID, "provider-2", 40000, 40)

	results := make(chan error, 2)
	for _, bidId := range []string{first.ID, second.ID} {
		go func(id string) {
			_, _, err := f.service.RespondToBid(context.Background(), req.ID, id, "client-1", models.AcceptBid, "")
			results <- err
		}(bidId)
	}
	var failures int
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			assert.ErrorIs(t, err, models.ErrCoverageExceeded)
			failures++
		}
	}

	// 70% + 40% не помещаются: ровно одно принятие прошло.
	require.Equal(t, 1, failures)
	updated, err := f.requests.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, updated.TotalAwardedPercentage, 100.0)
	assert.Len(t, updated.AwardedBids, 1)
}

func TestRespondToBidNotificationFailureDoesNotUndoDecision(t *testing.T) {
	f := newBidServiceFixture(t)
	f.notifications.failCreate = true
	req := f.seedRequest(t, "client-1")
	bid := f.seedBid(t, req.ID, "provider-1", 60000, 60)

	responded, _, err := f.service.RespondToBid(context.Background(), req.ID, bid.ID, "client-1", models.AcceptBid, "")
	require.NoError(t, err)
	assert.Equal(t, models.AcceptedBid, responded.Status)

	updated, err := f.requests.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, updated.TotalAwardedPercentage)
	assert.Empty(t, f.notifier.events())
}

func TestBidServiceWithoutNotifications(t *testing.T) {
	requests := newFakeRequestRepository()
	service := NewBidService(requests, &fakeBidRepository{requests: requests}, nil, testLogger())

	req, err := requests.CreateRequest(context.Background(), "client-1", models.RequestCreate{
		Title:            "No notifier",
		InsuranceDetails: models.InsuranceDetails{CoverageType: "auto", RequestedAmount: 1000},
		BiddingDetails: models.BiddingDetails{
			Deadline:         time.Now().UTC().Add(time.Hour),
			AllowPartialBids: true,
		},
	})
	require.NoError(t, err)

	bid, _, err := service.SubmitBid(context.Background(), "provider-1", models.BidRequest{
		RequestID:  req.ID,
		Amount:     1000,
		Percentage: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PendingBid, bid.Status)
}

func TestWithdrawBidFlow(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")
	bid := f.seedBid(t, req.ID, "provider-1", 50000, 50)

	withdrawn, updated, err := f.service.WithdrawBid(context.Background(), bid.ID, "provider-1")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawnBid, withdrawn.Status)
	assert.Equal(t, 1, updated.BidCount)

	created := f.notifications.byType(models.BidWithdrawnNotification)
	require.Len(t, created, 1)
	assert.Equal(t, "client-1", created[0].RecipientID)

	_, _, err = f.service.WithdrawBid(context.Background(), bid.ID, "provider-1")
	assert.ErrorIs(t, err, models.ErrBidNotPending)
}

func TestGetRequestBids(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")
	f.seedBid(t, req.ID, "provider-1", 50000, 50)
	f.seedBid(t, req.ID, "provider-2", 30000, 30)

	bids, err := f.service.GetRequestBids(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 2)

	_, err = f.service.GetRequestBids(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrRequestNotFound)
}

func TestGetProviderBids(t *testing.T) {
	f := newBidServiceFixture(t)
	req := f.seedRequest(t, "client-1")
	other := f.seedRequest(t, "client-2")
	f.seedBid(t, req.ID, "provider-1", 50000, 50)
	f.seedBid(t, other.ID, "provider-1", 20000, 20)
	f.seedBid(t, req.ID, "provider-2", 30000, 30)

	bids, err := f.service.GetProviderBids(context.Background(), "provider-1", "", "")
	require.NoError(t, err)
	assert.Len(t, bids, 2)

	_, err = f.service.GetProviderBids(context.Background(), "provider-1", "abc", "")
	require.Error(t, err)
}
