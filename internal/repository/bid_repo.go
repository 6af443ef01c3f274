package repository

import (
	"context"
	"errors"

	"github.com/senyabanana/insurance-marketplace/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BidRepository - интерфейс для чтения предложений.
// Мутации предложений проходят только через RequestRepository.MutateRequest:
// предложение принадлежит агрегату заявки и отдельно не изменяется.
type BidRepository interface {
	ListProviderBids(ctx context.Context, providerId string, limit, offset int) ([]models.Bid, error)
	FindRequestIDByBid(ctx context.Context, bidId string) (string, error)
}

// PostgresBidRepository - реализация BidRepository для базы данных.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBidRepository создает новый экземпляр PostgresBidRepository.
func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

// ListProviderBids возвращает список предложений поставщика по всем заявкам.
func (r *PostgresBidRepository) ListProviderBids(ctx context.Context, providerId string, limit, offset int) ([]models.Bid, error) {
	query := `SELECT id, request_id, provider_id, amount, percentage, premium, terms, conditions, status, submitted_at, response_at, response_note
	          FROM bid WHERE provider_id = $1 ORDER BY submitted_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.DB.Query(ctx, query, providerId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		var bid models.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.RequestID,
			&bid.ProviderID,
			&bid.Amount,
			&bid.Percentage,
			&bid.Premium,
			&bid.Terms,
			&bid.Conditions,
			&bid.Status,
			&bid.SubmittedAt,
			&bid.ResponseAt,
			&bid.ResponseNote); err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

// FindRequestIDByBid возвращает ID заявки, которой принадлежит предложение.
func (r *PostgresBidRepository) FindRequestIDByBid(ctx context.Context, bidId string) (string, error) {
	var requestId string
	query := `SELECT request_id FROM bid WHERE id = $1`
	err := r.DB.QueryRow(ctx, query, bidId).Scan(&requestId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrBidNotFound
		}
		return "", err
	}
	return requestId, nil
}
