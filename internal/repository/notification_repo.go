package repository

import (
	"context"
	"encoding/json"

	"github.com/senyabanana/insurance-marketplace/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationRepository - интерфейс для работы с уведомлениями.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	ListNotifications(ctx context.Context, recipientId string, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientId string) (int, error)
	MarkAsRead(ctx context.Context, notificationId, recipientId string) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, recipientId string) (int64, error)
	DeleteNotification(ctx context.Context, notificationId, recipientId string) error
}

// PostgresNotificationRepository - реализация NotificationRepository для базы данных.
type PostgresNotificationRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresNotificationRepository создает новый экземпляр PostgresNotificationRepository.
func NewPostgresNotificationRepository(db *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{DB: db}
}

// CreateNotification сохраняет новое уведомление.
func (r *PostgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	data, err := json.Marshal(notification.Data)
	if err != nil {
		return err
	}
	insertQuery := `INSERT INTO notification (id, recipient_id, sender_id, type, category, title, message, data, read, priority, action_url, is_deleted, created_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = r.DB.Exec(
		ctx,
		insertQuery,
		notification.ID,
		notification.RecipientID,
		notification.SenderID,
		notification.Type,
		notification.Category,
		notification.Title,
		notification.Message,
		data,
		notification.Read,
		notification.Priority,
		notification.ActionURL,
		notification.IsDeleted,
		notification.CreatedAt)
	return err
}

// ListNotifications возвращает уведомления получателя, новые сверху.
func (r *PostgresNotificationRepository) ListNotifications(ctx context.Context, recipientId string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	query := `SELECT id, recipient_id, sender_id, type, category, title, message, data, read, read_at, priority, action_url, created_at
	          FROM notification WHERE recipient_id = $1 AND is_deleted = false`
	if unreadOnly {
		query += ` AND read = false`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.DB.Query(ctx, query, recipientId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *notification)
	}
	return notifications, rows.Err()
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var notification models.Notification
	var data []byte
	if err := row.Scan(
		&notification.ID,
		&notification.RecipientID,
		&notification.SenderID,
		&notification.Type,
		&notification.Category,
		&notification.Title,
		&notification.Message,
		&data,
		&notification.Read,
		&notification.ReadAt,
		&notification.Priority,
		&notification.ActionURL,
		&notification.CreatedAt); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &notification.Data); err != nil {
			return nil, err
		}
	}
	return &notification, nil
}

// CountUnread возвращает число непрочитанных уведомлений получателя.
func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, recipientId string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notification WHERE recipient_id = $1 AND read = false AND is_deleted = false`
	err := r.DB.QueryRow(ctx, query, recipientId).Scan(&count)
	return count, err
}

// MarkAsRead помечает уведомление прочитанным. Чужие уведомления недоступны.
func (r *PostgresNotificationRepository) MarkAsRead(ctx context.Context, notificationId, recipientId string) (*models.Notification, error) {
	updateQuery := `UPDATE notification SET read = true, read_at = NOW()
	                WHERE id = $1 AND recipient_id = $2 AND is_deleted = false
	                RETURNING id, recipient_id, sender_id, type, category, title, message, data, read, read_at, priority, action_url, created_at`
	notification, err := scanNotification(r.DB.QueryRow(ctx, updateQuery, notificationId, recipientId))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotificationNotFound
		}
		return nil, err
	}
	return notification, nil
}

// MarkAllAsRead помечает все уведомления получателя прочитанными.
func (r *PostgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientId string) (int64, error) {
	updateQuery := `UPDATE notification SET read = true, read_at = NOW()
	                WHERE recipient_id = $1 AND read = false AND is_deleted = false`
	tag, err := r.DB.Exec(ctx, updateQuery, recipientId)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteNotification выполняет мягкое удаление уведомления.
func (r *PostgresNotificationRepository) DeleteNotification(ctx context.Context, notificationId, recipientId string) error {
	tag, err := r.DB.Exec(ctx, `UPDATE notification SET is_deleted = true WHERE id = $1 AND recipient_id = $2`, notificationId, recipientId)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotificationNotFound
	}
	return nil
}
