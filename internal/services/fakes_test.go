package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/senyabanana/insurance-marketplace/internal/models"

	"github.com/google/uuid"
)

// fakeRequestRepository - потокобезопасная реализация RequestRepository в памяти.
// MutateRequest держит мьютекс заявки на все время колбэка, воспроизводя
// сериализацию конкурентных мутаций, которую в базе дает SELECT FOR UPDATE.
type fakeRequestRepository struct {
	mu       sync.Mutex
	requests map[string]*models.InsuranceRequest
	locks    map[string]*sync.Mutex
}

func newFakeRequestRepository() *fakeRequestRepository {
	return &fakeRequestRepository{
		requests: make(map[string]*models.InsuranceRequest),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (f *fakeRequestRepository) put(req *models.InsuranceRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[req.ID] = req
	f.locks[req.ID] = &sync.Mutex{}
}

func cloneRequest(req *models.InsuranceRequest) *models.InsuranceRequest {
	clone := *req
	clone.Bids = append([]models.Bid(nil), req.Bids...)
	clone.AwardedBids = append([]models.AwardedBid(nil), req.AwardedBids...)
	return &clone
}

func (f *fakeRequestRepository) CreateRequest(ctx context.Context, clientId string, reqCreate models.RequestCreate) (*models.InsuranceRequest, error) {
	req := &models.InsuranceRequest{
		ID:               uuid.New().String(),
		ClientID:         clientId,
		Title:            reqCreate.Title,
		InsuranceDetails: reqCreate.InsuranceDetails,
		BiddingDetails:   reqCreate.BiddingDetails,
		Status:           models.OpenRequest,
		Version:          1,
		CreatedAt:        time.Now().UTC(),
	}
	f.put(req)
	return cloneRequest(req), nil
}

func (f *fakeRequestRepository) GetRequest(ctx context.Context, requestId string) (*models.InsuranceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestId]
	if !ok {
		return nil, models.ErrRequestNotFound
	}
	return cloneRequest(req), nil
}

func (f *fakeRequestRepository) ListRequests(ctx context.Context, status string, limit, offset int) ([]models.InsuranceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var requests []models.InsuranceRequest
	for _, req := range f.requests {
		if status == "" || string(req.Status) == status {
			requests = append(requests, *cloneRequest(req))
		}
	}
	return requests, nil
}

func (f *fakeRequestRepository) ListClientRequests(ctx context.Context, clientId string, limit, offset int) ([]models.InsuranceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var requests []models.InsuranceRequest
	for _, req := range f.requests {
		if req.ClientID == clientId {
			requests = append(requests, *cloneRequest(req))
		}
	}
	return requests, nil
}

func (f *fakeRequestRepository) MutateRequest(ctx context.Context, requestId string, fn func(*models.InsuranceRequest) error) (*models.InsuranceRequest, error) {
	f.mu.Lock()
	lock, ok := f.locks[requestId]
	f.mu.Unlock()
	if !ok {
		return nil, models.ErrRequestNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	f.mu.Lock()
	req, ok := f.requests[requestId]
	if !ok {
		// Заявку удалили, пока мутация ждала блокировку.
		f.mu.Unlock()
		return nil, models.ErrRequestNotFound
	}
	working := cloneRequest(req)
	f.mu.Unlock()

	if err := fn(working); err != nil {
		return nil, err
	}
	working.Version++

	f.mu.Lock()
	f.requests[requestId] = cloneRequest(working)
	f.mu.Unlock()
	return working, nil
}

// DeleteRequest держит мьютекс заявки на проверку и удаление, как
// MutateRequest на мутацию.
func (f *fakeRequestRepository) DeleteRequest(ctx context.Context, requestId string, fn func(*models.InsuranceRequest) error) error {
	f.mu.Lock()
	lock, ok := f.locks[requestId]
	f.mu.Unlock()
	if !ok {
		return models.ErrRequestNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	f.mu.Lock()
	req, ok := f.requests[requestId]
	if !ok {
		f.mu.Unlock()
		return models.ErrRequestNotFound
	}
	working := cloneRequest(req)
	f.mu.Unlock()

	if err := fn(working); err != nil {
		return err
	}

	f.mu.Lock()
	delete(f.requests, requestId)
	delete(f.locks, requestId)
	f.mu.Unlock()
	return nil
}

func (f *fakeRequestRepository) ExpireOverdueRequests(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, req := range f.requests {
		if (req.Status == models.OpenRequest || req.Status == models.BiddingRequest) && req.BiddingDetails.Deadline.Before(now) {
			req.Status = models.ExpiredRequest
			req.Version++
			count++
		}
	}
	return count, nil
}

// fakeBidRepository отвечает на вопросы чтения по реестру заявок.
type fakeBidRepository struct {
	requests *fakeRequestRepository
}

func (f *fakeBidRepository) ListProviderBids(ctx context.Context, providerId string, limit, offset int) ([]models.Bid, error) {
	f.requests.mu.Lock()
	defer f.requests.mu.Unlock()
	var bids []models.Bid
	for _, req := range f.requests.requests {
		for _, bid := range req.Bids {
			if bid.ProviderID == providerId {
				bids = append(bids, bid)
			}
		}
	}
	return bids, nil
}

func (f *fakeBidRepository) FindRequestIDByBid(ctx context.Context, bidId string) (string, error) {
	f.requests.mu.Lock()
	defer f.requests.mu.Unlock()
	for _, req := range f.requests.requests {
		for _, bid := range req.Bids {
			if bid.ID == bidId {
				return req.ID, nil
			}
		}
	}
	return "", models.ErrBidNotFound
}

// fakeNotificationRepository записывает созданные уведомления.
// failCreate имитирует отказ хранилища уведомлений.
type fakeNotificationRepository struct {
	mu         sync.Mutex
	created    []models.Notification
	failCreate bool
}

func (f *fakeNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("notification storage unavailable")
	}
	f.created = append(f.created, *notification)
	return nil
}

func (f *fakeNotificationRepository) byType(eventType models.NotificationType) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []models.Notification
	for _, notification := range f.created {
		if notification.Type == eventType {
			matched = append(matched, notification)
		}
	}
	return matched
}

func (f *fakeNotificationRepository) ListNotifications(ctx context.Context, recipientId string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var notifications []models.Notification
	for _, notification := range f.created {
		if notification.RecipientID != recipientId || notification.IsDeleted {
			continue
		}
		if unreadOnly && notification.Read {
			continue
		}
		notifications = append(notifications, notification)
	}
	return notifications, nil
}

func (f *fakeNotificationRepository) CountUnread(ctx context.Context, recipientId string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, notification := range f.created {
		if notification.RecipientID == recipientId && !notification.Read && !notification.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepository) MarkAsRead(ctx context.Context, notificationId, recipientId string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.created {
		if f.created[i].ID == notificationId && f.created[i].RecipientID == recipientId && !f.created[i].IsDeleted {
			now := time.Now().UTC()
			f.created[i].Read = true
			f.created[i].ReadAt = &now
			notification := f.created[i]
			return &notification, nil
		}
	}
	return nil, models.ErrNotificationNotFound
}

func (f *fakeNotificationRepository) MarkAllAsRead(ctx context.Context, recipientId string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	now := time.Now().UTC()
	for i := range f.created {
		if f.created[i].RecipientID == recipientId && !f.created[i].Read && !f.created[i].IsDeleted {
			f.created[i].Read = true
			f.created[i].ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepository) DeleteNotification(ctx context.Context, notificationId, recipientId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.created {
		if f.created[i].ID == notificationId && f.created[i].RecipientID == recipientId {
			f.created[i].IsDeleted = true
			return nil
		}
	}
	return models.ErrNotificationNotFound
}

// emittedEvent - один пуш, ушедший в fakeNotifier.
type emittedEvent struct {
	Room    string
	Event   string
	Payload interface{}
}

type fakeNotifier struct {
	mu      sync.Mutex
	emitted []emittedEvent
}

func (f *fakeNotifier) Emit(room, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, emittedEvent{Room: room, Event: event, Payload: payload})
}

func (f *fakeNotifier) events() []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emittedEvent(nil), f.emitted...)
}

// fakeChatRepository - реализация ChatRepository в памяти.
type fakeChatRepository struct {
	mu       sync.Mutex
	rooms    map[string]*models.ChatRoom
	messages map[string][]models.Message
}

func newFakeChatRepository() *fakeChatRepository {
	return &fakeChatRepository{
		rooms:    make(map[string]*models.ChatRoom),
		messages: make(map[string][]models.Message),
	}
}

func (f *fakeChatRepository) FindOrCreateRoom(ctx context.Context, room models.ChatRoom) (*models.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rooms {
		if existing.RequestID == room.RequestID && existing.ParticipantA == room.ParticipantA && existing.ParticipantB == room.ParticipantB {
			clone := *existing
			return &clone, nil
		}
	}
	created := room
	f.rooms[created.ID] = &created
	clone := created
	return &clone, nil
}

func (f *fakeChatRepository) GetRoom(ctx context.Context, roomId string) (*models.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomId]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	clone := *room
	return &clone, nil
}

func (f *fakeChatRepository) ListRooms(ctx context.Context, userId string, limit, offset int) ([]models.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rooms []models.ChatRoom
	for _, room := range f.rooms {
		if room.HasParticipant(userId) {
			rooms = append(rooms, *room)
		}
	}
	return rooms, nil
}

func (f *fakeChatRepository) SendMessage(ctx context.Context, room *models.ChatRoom, message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rooms[room.ID]
	if !ok {
		return models.ErrRoomNotFound
	}
	f.messages[room.ID] = append(f.messages[room.ID], *message)
	stored.LastMessage = message.Content
	sentAt := message.SentAt
	stored.LastMessageAt = &sentAt
	if stored.OtherParticipant(message.SenderID) == stored.ParticipantA {
		stored.UnreadA++
	} else {
		stored.UnreadB++
	}
	return nil
}

func (f *fakeChatRepository) ListMessages(ctx context.Context, roomId string, limit, offset int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.messages[roomId]...), nil
}

func (f *fakeChatRepository) MarkRead(ctx context.Context, room *models.ChatRoom, userId string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rooms[room.ID]
	if !ok {
		return 0, models.ErrRoomNotFound
	}
	var count int64
	messages := f.messages[room.ID]
	for i := range messages {
		if messages[i].SenderID != userId && !messages[i].Read {
			messages[i].Read = true
			readAt := now
			messages[i].ReadAt = &readAt
			count++
		}
	}
	if stored.ParticipantA == userId {
		stored.UnreadA = 0
	} else {
		stored.UnreadB = 0
	}
	return count, nil
}
