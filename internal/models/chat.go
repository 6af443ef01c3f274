package models

import "time"

// ChatRoom представляет комнату переписки по одной заявке между двумя участниками.
// Участники хранятся в каноническом порядке, чтобы пара (requestId, A, B)
// была уникальна независимо от того, кто создал комнату.
type ChatRoom struct {
	ID            string     `json:"id"`
	RequestID     string     `json:"requestId"`
	ParticipantA  string     `json:"participantA"`
	ParticipantB  string     `json:"participantB"`
	UnreadA       int        `json:"unreadA"`
	UnreadB       int        `json:"unreadB"`
	LastMessage   string     `json:"lastMessage,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// CanonicalParticipants возвращает пару участников в каноническом порядке.
func CanonicalParticipants(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// HasParticipant сообщает, состоит ли пользователь в комнате.
func (r *ChatRoom) HasParticipant(userID string) bool {
	return r.ParticipantA == userID || r.ParticipantB == userID
}

// OtherParticipant возвращает собеседника для указанного участника.
func (r *ChatRoom) OtherParticipant(userID string) string {
	if r.ParticipantA == userID {
		return r.ParticipantB
	}
	return r.ParticipantA
}

// UnreadFor возвращает счетчик непрочитанного для участника.
func (r *ChatRoom) UnreadFor(userID string) int {
	if r.ParticipantA == userID {
		return r.UnreadA
	}
	return r.UnreadB
}

// Message представляет модель сообщения в комнате.
// Содержимое неизменяемо после отправки, меняется только признак прочтения.
type Message struct {
	ID       string     `json:"id"`
	RoomID   string     `json:"roomId"`
	SenderID string     `json:"senderId"`
	Content  string     `json:"content"`
	Read     bool       `json:"read"`
	ReadAt   *time.Time `json:"readAt,omitempty"`
	SentAt   time.Time  `json:"sentAt"`
}

// RoomRequest представляет структуру запроса на создание или поиск комнаты.
type RoomRequest struct {
	RequestID     string `json:"requestId"`
	ParticipantID string `json:"participantId"`
}

// MessageRequest представляет структуру запроса на отправку сообщения.
type MessageRequest struct {
	Content string `json:"content"`
}
