package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/senyabanana/insurance-marketplace/internal/models"
	"github.com/senyabanana/insurance-marketplace/internal/repository"
	"github.com/senyabanana/insurance-marketplace/internal/utils"

	"github.com/google/uuid"
)

// RealtimeNotifier - пуш-канал до подключенных клиентов.
// Канал best-effort: отсутствие подключения или самого канала не влияет
// на результат операции, долговременной записью остается уведомление в базе.
type RealtimeNotifier interface {
	Emit(room, event string, payload interface{})
}

// UserRoom возвращает имя сокет-комнаты пользователя.
func UserRoom(userId string) string {
	return "user_" + userId
}

// notificationTemplate описывает сборку уведомления для одного типа события.
type notificationTemplate struct {
	Category models.NotificationCategory
	Priority models.NotificationPriority
	Build    func(data map[string]interface{}) (title, message, actionUrl string)
}

func dataValue(data map[string]interface{}, key string) interface{} {
	if data == nil {
		return ""
	}
	if v, ok := data[key]; ok {
		return v
	}
	return ""
}

// notificationTemplates - закрытое перечисление типов уведомлений.
// Новый тип требует и константы в models, и ветки здесь; неизвестный тип -
// жесткая ошибка, а не тихий пропуск.
var notificationTemplates = map[models.NotificationType]notificationTemplate{
	models.BidSubmittedNotification: {
		Category: models.BidCategory,
		Priority: models.NormalPriority,
		Build: func(data map[string]interface{}) (string, string, string) {
			return "New bid received",
				fmt.Sprintf("A provider submitted a bid of %v (%v%% coverage) on your request", dataValue(data, "amount"), dataValue(data, "percentage")),
				fmt.Sprintf("/requests/%v", dataValue(data, "requestId"))
		},
	},
	models.BidAcceptedNotification: {
		Category: models.BidCategory,
		Priority: models.HighPriority,
		Build: func(data map[string]interface{}) (string, string, string) {
			return "Bid accepted",
				fmt.Sprintf("Your bid covering %v%% of the request was accepted by the client", dataValue(data, "percentage")),
				fmt.Sprintf("/requests/%v", dataValue(data, "requestId"))
		},
	},
	models.BidRejectedNotification: {
		Category: models.BidCategory,
		Priority: models.NormalPriority,
		Build: func(data map[string]interface{}) (string, string, string) {
			return "Bid rejected",
				"Your bid was rejected by the client",
				fmt.Sprintf("/requests/%v", dataValue(data, "requestId"))
		},
	},
	models.BidWithdrawnNotification: {
		Category: models.BidCategory,
		Priority: models.NormalPriority,
		Build: func(data map[string]interface{}) (string, string, string) {
			return "Bid withdrawn",
				"A provider withdrew their bid from your request",
				fmt.Sprintf("/requests/%v", dataValue(data, "requestId"))
		},
	},
	models.RequestAwardedNotification: {
		Category: models.RequestCategory,
		Priority: models.HighPriority,
		Build: func(data map[string]interface{}) (string, string, string) {
			return "Coverage complete",
				"The insurance request reached full coverage and was awarded",
				fmt.Sprintf("/requests/%v", dataValue(data, "requestId"))
		},
	},
	models.NewMessageNotification: {
		Category: models.ChatCategory,
		Priority: models.NormalPriority,
		Build: func(data map[string]interface{}) (string, string, string) {
			return "New message",
				fmt.Sprintf("%v", dataValue(data, "preview")),
				fmt.Sprintf("/chat/rooms/%v", dataValue(data, "roomId"))
		},
	},
	models.MessageReadNotification: {
		Category: models.ChatCategory,
		Priority: models.LowPriority,
		Build: func(data map[string]interface{}) (string, string, string) {
			return "Messages read",
				"Your messages were read",
				fmt.Sprintf("/chat/rooms/%v", dataValue(data, "roomId"))
		},
	},
	models.SystemNotification: {
		Category: models.SystemCategory,
		Priority: models.NormalPriority,
		Build: func(data map[string]interface{}) (string, string, string) {
			return fmt.Sprintf("%v", dataValue(data, "title")), fmt.Sprintf("%v", dataValue(data, "message")), ""
		},
	},
}

// NotificationService - диспетчер уведомлений и операции над ними.
type NotificationService struct {
	Repo     repository.NotificationRepository
	Notifier RealtimeNotifier
}

// NewNotificationService создает новый экземпляр NotificationService.
func NewNotificationService(repo repository.NotificationRepository, notifier RealtimeNotifier) *NotificationService {
	return &NotificationService{Repo: repo, Notifier: notifier}
}

// Dispatch создает уведомление по доменному событию и зеркалит его в
// realtime-канал. Диспетчер не дедуплицирует: одно событие - один вызов,
// за это отвечает вызывающая сторона.
func (s *NotificationService) Dispatch(ctx context.Context, event models.NotificationEvent) (*models.Notification, error) {
	template, ok := notificationTemplates[event.Type]
	if !ok {
		return nil, fmt.Errorf("unknown notification type: %q", event.Type)
	}
	if event.RecipientID == "" {
		return nil, models.ErrMissingRequiredFields
	}

	title, message, actionUrl := template.Build(event.Data)
	notification := &models.Notification{
		ID:          uuid.New().String(),
		RecipientID: event.RecipientID,
		SenderID:    event.SenderID,
		Type:        event.Type,
		Category:    template.Category,
		Title:       title,
		Message:     message,
		Data:        event.Data,
		Priority:    template.Priority,
		ActionURL:   actionUrl,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Repo.CreateNotification(ctx, notification); err != nil {
		return nil, err
	}

	// Пуш после записи: подключенные клиенты видят уведомление сразу,
	// остальные заберут его из базы при следующем обращении.
	if s.Notifier != nil {
		s.Notifier.Emit(UserRoom(event.RecipientID), "notification", notification)
	}
	return notification, nil
}

// GetNotifications возвращает уведомления пользователя.
func (s *NotificationService) GetNotifications(ctx context.Context, userId, unreadStr, limitStr, offsetStr string) ([]models.Notification, error) {
	if userId == "" {
		return nil, models.ErrMissingRequiredFields
	}
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	return s.Repo.ListNotifications(ctx, userId, unreadStr == "true", limit, offset)
}

// GetUnreadCount возвращает число непрочитанных уведомлений пользователя.
func (s *NotificationService) GetUnreadCount(ctx context.Context, userId string) (int, error) {
	if userId == "" {
		return 0, models.ErrMissingRequiredFields
	}
	return s.Repo.CountUnread(ctx, userId)
}

// MarkAsRead помечает уведомление пользователя прочитанным.
func (s *NotificationService) MarkAsRead(ctx context.Context, notificationId, userId string) (*models.Notification, error) {
	if notificationId == "" || userId == "" {
		return nil, models.ErrMissingRequiredFields
	}
	return s.Repo.MarkAsRead(ctx, notificationId, userId)
}

// MarkAllAsRead помечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userId string) (int64, error) {
	if userId == "" {
		return 0, models.ErrMissingRequiredFields
	}
	return s.Repo.MarkAllAsRead(ctx, userId)
}

// DeleteNotification выполняет мягкое удаление уведомления пользователя.
func (s *NotificationService) DeleteNotification(ctx context.Context, notificationId, userId string) error {
	if notificationId == "" || userId == "" {
		return models.ErrMissingRequiredFields
	}
	return s.Repo.DeleteNotification(ctx, notificationId, userId)
}
