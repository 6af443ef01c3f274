package services

import (
	"context"
	"testing"
	"time"

	"github.com/senyabanana/insurance-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestServiceFixture struct {
	requests      *fakeRequestRepository
	notifications *fakeNotificationRepository
	service       *RequestService
}

func newRequestServiceFixture(t *testing.T) *requestServiceFixture {
	t.Helper()
	requests := newFakeRequestRepository()
	notifications := &fakeNotificationRepository{}
	return &requestServiceFixture{
		requests:      requests,
		notifications: notifications,
		service:       NewRequestService(requests, NewNotificationService(notifications, nil), testLogger()),
	}
}

func validRequestCreate() models.RequestCreate {
	return models.RequestCreate{
		Title:            "Office liability",
		InsuranceDetails: models.InsuranceDetails{CoverageType: "liability", RequestedAmount: 100000},
		BiddingDetails: models.BiddingDetails{
			Deadline:         time.Now().UTC().Add(24 * time.Hour),
			AllowPartialBids: true,
		},
	}
}

func TestCreateRequest(t *testing.T) {
	f := newRequestServiceFixture(t)

	req, err := f.service.CreateRequest(context.Background(), "client-1", validRequestCreate())
	require.NoError(t, err)
	assert.Equal(t, models.OpenRequest, req.Status)
	assert.Equal(t, 1, req.Version)
	assert.Zero(t, req.BidCount)
}

func TestCreateRequestValidation(t *testing.T) {
	f := newRequestServiceFixture(t)

	tests := []struct {
		name   string
		mutate func(*models.RequestCreate)
	}{
		{"missing title", func(r *models.RequestCreate) { r.Title = "" }},
		{"zero amount", func(r *models.RequestCreate) { r.InsuranceDetails.RequestedAmount = 0 }},
		{"past deadline", func(r *models.RequestCreate) { r.BiddingDetails.Deadline = time.Now().UTC().Add(-time.Hour) }},
		{"minimum percentage above 100", func(r *models.RequestCreate) { r.BiddingDetails.MinimumBidPercentage = 150 }},
		{"negative minimum percentage", func(r *models.RequestCreate) { r.BiddingDetails.MinimumBidPercentage = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqCreate := validRequestCreate()
			tt.mutate(&reqCreate)
			_, err := f.service.CreateRequest(context.Background(), "client-1", reqCreate)
			assert.Error(t, err)
		})
	}
}

func TestGetRequests(t *testing.T) {
	f := newRequestServiceFixture(t)
	_, err := f.service.CreateRequest(context.Background(), "client-1", validRequestCreate())
	require.NoError(t, err)

	requests, err := f.service.GetRequests(context.Background(), "open", "", "")
	require.NoError(t, err)
	assert.Len(t, requests, 1)

	_, err = f.service.GetRequests(context.Background(), "pending", "", "")
	require.Error(t, err)

	_, err = f.service.GetRequests(context.Background(), "", "0", "")
	require.Error(t, err)
}

func TestUpdateRequestStatus(t *testing.T) {
	f := newRequestServiceFixture(t)
	req, err := f.service.CreateRequest(context.Background(), "client-1", validRequestCreate())
	require.NoError(t, err)

	_, err = f.service.UpdateRequestStatus(context.Background(), req.ID, "client-2", "closed")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.service.UpdateRequestStatus(context.Background(), req.ID, "client-1", "awarded")
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)

	updated, err := f.service.UpdateRequestStatus(context.Background(), req.ID, "client-1", "closed")
	require.NoError(t, err)
	assert.Equal(t, models.ClosedRequest, updated.Status)
	assert.Equal(t, 2, updated.Version)
}

func TestDeleteRequest(t *testing.T) {
	f := newRequestServiceFixture(t)
	req, err := f.service.CreateRequest(context.Background(), "client-1", validRequestCreate())
	require.NoError(t, err)

	err = f.service.DeleteRequest(context.Background(), req.ID, "client-2")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	require.NoError(t, f.service.DeleteRequest(context.Background(), req.ID, "client-1"))
	_, err = f.service.GetRequest(context.Background(), req.ID)
	assert.ErrorIs(t, err, models.ErrRequestNotFound)
}

func TestDeleteRequestWithBids(t *testing.T) {
	f := newRequestServiceFixture(t)
	req, err := f.service.CreateRequest(context.Background(), "client-1", validRequestCreate())
	require.NoError(t, err)

	_, err = f.requests.MutateRequest(context.Background(), req.ID, func(r *models.InsuranceRequest) error {
		r.AttachBid(models.Bid{ID: "bid-1", RequestID: r.ID, ProviderID: "provider-1", Amount: 1, Percentage: 1, Status: models.PendingBid})
		return nil
	})
	require.NoError(t, err)

	err = f.service.DeleteRequest(context.Background(), req.ID, "client-1")
	assert.ErrorIs(t, err, models.ErrRequestHasBids)
}

func TestDeleteRequestConcurrentWithSubmit(t *testing.T) {
	f := newRequestServiceFixture(t)
	bidService := NewBidService(f.requests, &fakeBidRepository{requests: f.requests}, nil, testLogger())

	for i := 0; i < 25; i++ {
		req, err := f.service.CreateRequest(context.Background(), "client-1", validRequestCreate())
		require.NoError(t, err)

		deleteErrs := make(chan error, 1)
		submitErrs := make(chan error, 1)
		go func() {
			deleteErrs <- f.service.DeleteRequest(context.Background(), req.ID, "client-1")
		}()
		go func() {
			_, _, err := bidService.SubmitBid(context.Background(), "provider-1", models.BidRequest{
				RequestID:  req.ID,
				Amount:     50000,
				Percentage: 50,
			})
			submitErrs <- err
		}()
		deleteErr := <-deleteErrs
		submitErr := <-submitErrs

		// Побеждает ровно одна сторона. Принятое предложение никогда не
		// пропадает каскадом вместе с заявкой.
		if deleteErr == nil {
			assert.ErrorIs(t, submitErr, models.ErrRequestNotFound)
			_, err := f.requests.GetRequest(context.Background(), req.ID)
			assert.ErrorIs(t, err, models.ErrRequestNotFound)
		} else {
			assert.ErrorIs(t, deleteErr, models.ErrRequestHasBids)
			require.NoError(t, submitErr)
			survived, err := f.requests.GetRequest(context.Background(), req.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, survived.BidCount)
		}
	}
}

func TestFinalizeRequestNotifiesAwardedProviders(t *testing.T) {
	f := newRequestServiceFixture(t)
	req, err := f.service.CreateRequest(context.Background(), "client-1", validRequestCreate())
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = f.requests.MutateRequest(context.Background(), req.ID, func(r *models.InsuranceRequest) error {
		r.AttachBid(models.Bid{ID: "bid-1", RequestID: r.ID, ProviderID: "provider-1", Amount: 60000, Percentage: 60, Status: models.PendingBid})
		r.AttachBid(models.Bid{ID: "bid-2", RequestID: r.ID, ProviderID: "provider-2", Amount: 40000, Percentage: 40, Status: models.PendingBid})
		if _, err := r.RespondToBid("bid-1", models.AcceptBid, "", now); err != nil {
			return err
		}
		if _, err := r.RespondToBid("bid-2", models.AcceptBid, "", now); err != nil {
			return err
		}
		// Возврат в reviewing имитирует заявку, собравшую 100% до автоперехода.
		r.Status = models.ReviewingRequest
		r.IsFullyCovered = false
		return nil
	})
	require.NoError(t, err)

	finalized, err := f.service.FinalizeRequest(context.Background(), req.ID, "client-1")
	require.NoError(t, err)
	assert.Equal(t, models.AwardedRequest, finalized.Status)
	assert.True(t, finalized.IsFullyCovered)

	awarded := f.notifications.byType(models.RequestAwardedNotification)
	require.Len(t, awarded, 2)
	recipients := []string{awarded[0].RecipientID, awarded[1].RecipientID}
	assert.ElementsMatch(t, []string{"provider-1", "provider-2"}, recipients)

	_, err = f.service.FinalizeRequest(context.Background(), req.ID, "client-1")
	assert.ErrorIs(t, err, models.ErrAlreadyFinalized)
}

func TestFinalizeRequestInsufficientCoverage(t *testing.T) {
	f := newRequestServiceFixture(t)
	req, err := f.service.CreateRequest(context.Background(), "client-1", validRequestCreate())
	require.NoError(t, err)

	_, err = f.service.FinalizeRequest(context.Background(), req.ID, "client-1")
	assert.ErrorIs(t, err, models.ErrInsufficientCoverage)

	_, err = f.service.FinalizeRequest(context.Background(), req.ID, "client-2")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestExpireOverdueRequests(t *testing.T) {
	f := newRequestServiceFixture(t)
	req, err := f.service.CreateRequest(context.Background(), "client-1", validRequestCreate())
	require.NoError(t, err)

	_, err = f.requests.MutateRequest(context.Background(), req.ID, func(r *models.InsuranceRequest) error {
		r.BiddingDetails.Deadline = time.Now().UTC().Add(-time.Hour)
		return nil
	})
	require.NoError(t, err)

	count, err := f.service.ExpireOverdueRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	expired, err := f.service.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpiredRequest, expired.Status)
}
