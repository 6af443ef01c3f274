package models

import "time"

type (
	NotificationType     string // Тип события, породившего уведомление
	NotificationCategory string // Категория уведомления
	NotificationPriority string // Приоритет уведомления
)

const (
	BidSubmittedNotification   NotificationType = "bid_submitted"    // Поставщик подал предложение
	BidAcceptedNotification    NotificationType = "bid_accepted"     // Клиент принял предложение
	BidRejectedNotification    NotificationType = "bid_rejected"     // Клиент отклонил предложение
	BidWithdrawnNotification   NotificationType = "bid_withdrawn"    // Поставщик отозвал предложение
	RequestAwardedNotification NotificationType = "request_awarded"  // Покрытие по заявке собрано
	NewMessageNotification     NotificationType = "new_message"      // Новое сообщение в чате
	MessageReadNotification    NotificationType = "message_read"     // Собеседник прочитал сообщения
	SystemNotification         NotificationType = "system_announce"  // Системное уведомление

	BidCategory     NotificationCategory = "bid"
	OfferCategory   NotificationCategory = "offer"
	RequestCategory NotificationCategory = "request"
	ChatCategory    NotificationCategory = "chat"
	SystemCategory  NotificationCategory = "system"

	LowPriority    NotificationPriority = "low"
	NormalPriority NotificationPriority = "normal"
	HighPriority   NotificationPriority = "high"
)

// Notification представляет модель персистентного уведомления.
// Запись создается один раз и после этого меняется только признаками
// прочтения и мягкого удаления.
type Notification struct {
	ID          string                 `json:"id"`
	RecipientID string                 `json:"recipientId"`
	SenderID    string                 `json:"senderId,omitempty"`
	Type        NotificationType       `json:"type"`
	Category    NotificationCategory   `json:"category"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Read        bool                   `json:"read"`
	ReadAt      *time.Time             `json:"readAt,omitempty"`
	Priority    NotificationPriority   `json:"priority"`
	ActionURL   string                 `json:"actionUrl,omitempty"`
	IsDeleted   bool                   `json:"-"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// NotificationEvent описывает доменное событие для диспетчера уведомлений.
// Контракт: одно доменное событие - ровно один вызов диспетчера.
type NotificationEvent struct {
	Type        NotificationType
	RecipientID string
	SenderID    string
	Data        map[string]interface{}
}
