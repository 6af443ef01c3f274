package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/insurance-marketplace/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatRepository - интерфейс для работы с комнатами и сообщениями.
type ChatRepository interface {
	FindOrCreateRoom(ctx context.Context, room models.ChatRoom) (*models.ChatRoom, error)
	GetRoom(ctx context.Context, roomId string) (*models.ChatRoom, error)
	ListRooms(ctx context.Context, userId string, limit, offset int) ([]models.ChatRoom, error)
	SendMessage(ctx context.Context, room *models.ChatRoom, message *models.Message) error
	ListMessages(ctx context.Context, roomId string, limit, offset int) ([]models.Message, error)
	MarkRead(ctx context.Context, room *models.ChatRoom, userId string, now time.Time) (int64, error)
}

// PostgresChatRepository - реализация ChatRepository для базы данных.
type PostgresChatRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresChatRepository создает новый экземпляр PostgresChatRepository.
func NewPostgresChatRepository(db *pgxpool.Pool) *PostgresChatRepository {
	return &PostgresChatRepository{DB: db}
}

const roomColumns = `id, request_id, participant_a, participant_b, unread_a, unread_b, last_message, last_message_at, created_at`

func scanRoom(row pgx.Row) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := row.Scan(
		&room.ID,
		&room.RequestID,
		&room.ParticipantA,
		&room.ParticipantB,
		&room.UnreadA,
		&room.UnreadB,
		&room.LastMessage,
		&room.LastMessageAt,
		&room.CreatedAt); err != nil {
		return nil, err
	}
	return &room, nil
}

// FindOrCreateRoom возвращает комнату пары участников по заявке, создавая ее
// при первом обращении. Уникальный индекс (request_id, participant_a,
// participant_b) гасит гонку двух одновременных созданий: ON CONFLICT
// возвращает уже существующую строку.
func (r *PostgresChatRepository) FindOrCreateRoom(ctx context.Context, room models.ChatRoom) (*models.ChatRoom, error) {
	selectQuery := `SELECT ` + roomColumns + ` FROM chat_room WHERE request_id = $1 AND participant_a = $2 AND participant_b = $3`
	existing, err := scanRoom(r.DB.QueryRow(ctx, selectQuery, room.RequestID, room.ParticipantA, room.ParticipantB))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	insertQuery := `INSERT INTO chat_room (id, request_id, participant_a, participant_b, unread_a, unread_b, created_at)
	                VALUES ($1, $2, $3, $4, 0, 0, $5)
	                ON CONFLICT (request_id, participant_a, participant_b) DO UPDATE SET request_id = EXCLUDED.request_id
	                RETURNING ` + roomColumns
	return scanRoom(r.DB.QueryRow(ctx, insertQuery, room.ID, room.RequestID, room.ParticipantA, room.ParticipantB, room.CreatedAt))
}

// GetRoom возвращает комнату по ID.
func (r *PostgresChatRepository) GetRoom(ctx context.Context, roomId string) (*models.ChatRoom, error) {
	room, err := scanRoom(r.DB.QueryRow(ctx, `SELECT `+roomColumns+` FROM chat_room WHERE id = $1`, roomId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

// ListRooms возвращает комнаты пользователя, недавние сверху.
func (r *PostgresChatRepository) ListRooms(ctx context.Context, userId string, limit, offset int) ([]models.ChatRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_room
	          WHERE participant_a = $1 OR participant_b = $1
	          ORDER BY last_message_at DESC NULLS LAST, created_at DESC
	          LIMIT $2 OFFSET $3`
	rows, err := r.DB.Query(ctx, query, userId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.ChatRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

// SendMessage сохраняет сообщение и в той же транзакции обновляет
// lastMessage комнаты и счетчик непрочитанного собеседника.
func (r *PostgresChatRepository) SendMessage(ctx context.Context, room *models.ChatRoom, message *models.Message) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insertQuery := `INSERT INTO message (id, room_id, sender_id, content, read, sent_at)
	                VALUES ($1, $2, $3, $4, false, $5)`
	if _, err := tx.Exec(ctx, insertQuery, message.ID, message.RoomID, message.SenderID, message.Content, message.SentAt); err != nil {
		return err
	}

	unreadColumn := "unread_b"
	if room.OtherParticipant(message.SenderID) == room.ParticipantA {
		unreadColumn = "unread_a"
	}
	updateQuery := `UPDATE chat_room SET last_message = $1, last_message_at = $2, ` + unreadColumn + ` = ` + unreadColumn + ` + 1 WHERE id = $3`
	if _, err := tx.Exec(ctx, updateQuery, message.Content, message.SentAt, room.ID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListMessages возвращает сообщения комнаты в порядке отправки.
func (r *PostgresChatRepository) ListMessages(ctx context.Context, roomId string, limit, offset int) ([]models.Message, error) {
	query := `SELECT id, room_id, sender_id, content, read, read_at, sent_at
	          FROM message WHERE room_id = $1 ORDER BY sent_at, id LIMIT $2 OFFSET $3`
	rows, err := r.DB.Query(ctx, query, roomId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.RoomID,
			&message.SenderID,
			&message.Content,
			&message.Read,
			&message.ReadAt,
			&message.SentAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

// MarkRead обнуляет счетчик участника и помечает адресованные ему
// непрочитанные сообщения. Возвращает число прочитанных сообщений.
func (r *PostgresChatRepository) MarkRead(ctx context.Context, room *models.ChatRoom, userId string, now time.Time) (int64, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	messagesQuery := `UPDATE message SET read = true, read_at = $1
	                  WHERE room_id = $2 AND sender_id <> $3 AND read = false`
	tag, err := tx.Exec(ctx, messagesQuery, now, room.ID, userId)
	if err != nil {
		return 0, err
	}

	unreadColumn := "unread_b"
	if room.ParticipantA == userId {
		unreadColumn = "unread_a"
	}
	if _, err := tx.Exec(ctx, `UPDATE chat_room SET `+unreadColumn+` = 0 WHERE id = $1`, room.ID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
