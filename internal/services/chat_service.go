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

// ChatService - операции над комнатами и сообщениями переписки по заявке.
type ChatService struct {
	Rooms         repository.ChatRepository
	Requests      repository.RequestRepository
	Notifications *NotificationService
	Logger        *log.Logger
}

// NewChatService создает новый экземпляр ChatService.
func NewChatService(rooms repository.ChatRepository, requests repository.RequestRepository, notifications *NotificationService, logger *log.Logger) *ChatService {
	return &ChatService{
		Rooms:         rooms,
		Requests:      requests,
		Notifications: notifications,
		Logger:        logger,
	}
}

func (s *ChatService) notify(ctx context.Context, event models.NotificationEvent) {
	if s.Notifications == nil {
		return
	}
	if _, err := s.Notifications.Dispatch(ctx, event); err != nil {
		s.Logger.Printf("notification dispatch failed for %s: %v", event.Type, err)
	}
}

// FindOrCreateRoom возвращает комнату пары участников по заявке, создавая ее
// при первом обращении. Переписка ведется между клиентом заявки и
// поставщиком, подавшим по ней предложение.
func (s *ChatService) FindOrCreateRoom(ctx context.Context, userId string, roomReq models.RoomRequest) (*models.ChatRoom, error) {
	if userId == "" || roomReq.RequestID == "" || roomReq.ParticipantID == "" {
		return nil, models.ErrMissingRequiredFields
	}
	if userId == roomReq.ParticipantID {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "cannot open a chat room with yourself")
	}

	req, err := s.Requests.GetRequest(ctx, roomReq.RequestID)
	if err != nil {
		return nil, err
	}
	client, provider := userId, roomReq.ParticipantID
	if client != req.ClientID {
		client, provider = provider, client
	}
	if client != req.ClientID || !req.HasBidFrom(provider) {
		return nil, models.ErrNotParticipant
	}

	participantA, participantB := models.CanonicalParticipants(userId, roomReq.ParticipantID)
	room := models.ChatRoom{
		ID:           uuid.New().String(),
		RequestID:    roomReq.RequestID,
		ParticipantA: participantA,
		ParticipantB: participantB,
		CreatedAt:    time.Now().UTC(),
	}
	return s.Rooms.FindOrCreateRoom(ctx, room)
}

// GetRooms возвращает комнаты пользователя.
func (s *ChatService) GetRooms(ctx context.Context, userId, limitStr, offsetStr string) ([]models.ChatRoom, error) {
	if userId == "" {
		return nil, models.ErrMissingRequiredFields
	}
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	return s.Rooms.ListRooms(ctx, userId, limit, offset)
}

// SendMessage отправляет сообщение в комнату. Побочные эффекты: lastMessage
// и счетчик непрочитанного собеседника в той же транзакции, затем
// уведомление new_message и realtime-пуш.
func (s *ChatService) SendMessage(ctx context.Context, roomId, senderId string, msgReq models.MessageRequest) (*models.Message, error) {
	if roomId == "" || senderId == "" || msgReq.Content == "" {
		return nil, models.ErrMissingRequiredFields
	}

	room, err := s.Rooms.GetRoom(ctx, roomId)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(senderId) {
		return nil, models.ErrNotParticipant
	}

	message := &models.Message{
		ID:       uuid.New().String(),
		RoomID:   room.ID,
		SenderID: senderId,
		Content:  msgReq.Content,
		SentAt:   time.Now().UTC(),
	}
	if err := s.Rooms.SendMessage(ctx, room, message); err != nil {
		return nil, err
	}

	// Превью режется по рунам: срез байтов мог бы разорвать многобайтовый
	// символ и оставить в уведомлении невалидный UTF-8.
	preview := message.Content
	if runes := []rune(preview); len(runes) > 80 {
		preview = string(runes[:80])
	}
	s.notify(ctx, models.NotificationEvent{
		Type:        models.NewMessageNotification,
		RecipientID: room.OtherParticipant(senderId),
		SenderID:    senderId,
		Data: map[string]interface{}{
			"roomId":    room.ID,
			"requestId": room.RequestID,
			"messageId": message.ID,
			"preview":   preview,
		},
	})
	return message, nil
}

// GetMessages возвращает сообщения комнаты для ее участника.
func (s *ChatService) GetMessages(ctx context.Context, roomId, userId, limitStr, offsetStr string) ([]models.Message, error) {
	if roomId == "" || userId == "" {
		return nil, models.ErrMissingRequiredFields
	}
	room, err := s.Rooms.GetRoom(ctx, roomId)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userId) {
		return nil, models.ErrNotParticipant
	}
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	return s.Rooms.ListMessages(ctx, roomId, limit, offset)
}

// MarkRead обнуляет счетчик непрочитанного участника и помечает сообщения
// прочитанными. Собеседник получает эхо-уведомление message_read.
func (s *ChatService) MarkRead(ctx context.Context, roomId, userId string) (*models.ChatRoom, error) {
	if roomId == "" || userId == "" {
		return nil, models.ErrMissingRequiredFields
	}
	room, err := s.Rooms.GetRoom(ctx, roomId)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userId) {
		return nil, models.ErrNotParticipant
	}

	readCount, err := s.Rooms.MarkRead(ctx, room, userId, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if room.ParticipantA == userId {
		room.UnreadA = 0
	} else {
		room.UnreadB = 0
	}

	if readCount > 0 {
		s.notify(ctx, models.NotificationEvent{
			Type:        models.MessageReadNotification,
			RecipientID: room.OtherParticipant(userId),
			SenderID:    userId,
			Data: map[string]interface{}{
				"roomId":    room.ID,
				"readCount": readCount,
			},
		})
	}
	return room, nil
}
