package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/insurance-marketplace/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier - общий интерфейс пула и транзакции pgx.
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// RequestRepository - интерфейс для работы со страховыми заявками.
// Все мутации агрегата проходят через MutateRequest, которая сериализует
// конкурентные изменения одной заявки.
type RequestRepository interface {
	CreateRequest(ctx context.Context, clientId string, reqCreate models.RequestCreate) (*models.InsuranceRequest, error)
	GetRequest(ctx context.Context, requestId string) (*models.InsuranceRequest, error)
	ListRequests(ctx context.Context, status string, limit, offset int) ([]models.InsuranceRequest, error)
	ListClientRequests(ctx context.Context, clientId string, limit, offset int) ([]models.InsuranceRequest, error)
	MutateRequest(ctx context.Context, requestId string, fn func(*models.InsuranceRequest) error) (*models.InsuranceRequest, error)
	DeleteRequest(ctx context.Context, requestId string, fn func(*models.InsuranceRequest) error) error
	ExpireOverdueRequests(ctx context.Context, now time.Time) (int64, error)
}

// PostgresRequestRepository - реализация RequestRepository для базы данных.
type PostgresRequestRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresRequestRepository создает новый экземпляр PostgresRequestRepository.
func NewPostgresRequestRepository(db *pgxpool.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{DB: db}
}

const requestColumns = `id, client_id, title, coverage_type, requested_amount, deadline, minimum_bid_percentage,
       allow_partial_bids, group_insurance_allowed, total_awarded_amount, total_awarded_percentage,
       is_fully_covered, status, bid_count, version, created_at`

func scanRequest(row pgx.Row, req *models.InsuranceRequest) error {
	return row.Scan(
		&req.ID,
		&req.ClientID,
		&req.Title,
		&req.InsuranceDetails.CoverageType,
		&req.InsuranceDetails.RequestedAmount,
		&req.BiddingDetails.Deadline,
		&req.BiddingDetails.MinimumBidPercentage,
		&req.BiddingDetails.AllowPartialBids,
		&req.BiddingDetails.GroupInsuranceAllowed,
		&req.TotalAwardedAmount,
		&req.TotalAwardedPercentage,
		&req.IsFullyCovered,
		&req.Status,
		&req.BidCount,
		&req.Version,
		&req.CreatedAt,
	)
}

// CreateRequest создает новую страховую заявку.
func (r *PostgresRequestRepository) CreateRequest(ctx context.Context, clientId string, reqCreate models.RequestCreate) (*models.InsuranceRequest, error) {
	newRequest := models.InsuranceRequest{
		ID:               uuid.New().String(),
		ClientID:         clientId,
		Title:            reqCreate.Title,
		InsuranceDetails: reqCreate.InsuranceDetails,
		BiddingDetails:   reqCreate.BiddingDetails,
		Status:           models.OpenRequest,
		Version:          1,
		CreatedAt:        time.Now().UTC(),
	}
	insertQuery := `INSERT INTO insurance_request (` + requestColumns + `)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		newRequest.ID,
		newRequest.ClientID,
		newRequest.Title,
		newRequest.InsuranceDetails.CoverageType,
		newRequest.InsuranceDetails.RequestedAmount,
		newRequest.BiddingDetails.Deadline,
		newRequest.BiddingDetails.MinimumBidPercentage,
		newRequest.BiddingDetails.AllowPartialBids,
		newRequest.BiddingDetails.GroupInsuranceAllowed,
		newRequest.TotalAwardedAmount,
		newRequest.TotalAwardedPercentage,
		newRequest.IsFullyCovered,
		newRequest.Status,
		newRequest.BidCount,
		newRequest.Version,
		newRequest.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &newRequest, nil
}

// GetRequest возвращает заявку вместе с реестром предложений.
func (r *PostgresRequestRepository) GetRequest(ctx context.Context, requestId string) (*models.InsuranceRequest, error) {
	return r.loadRequest(ctx, r.DB, requestId, `SELECT `+requestColumns+` FROM insurance_request WHERE id = $1`)
}

func (r *PostgresRequestRepository) loadRequest(ctx context.Context, q querier, requestId, query string) (*models.InsuranceRequest, error) {
	var req models.InsuranceRequest
	if err := scanRequest(q.QueryRow(ctx, query, requestId), &req); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRequestNotFound
		}
		return nil, err
	}

	bids, err := loadRequestBids(ctx, q, requestId)
	if err != nil {
		return nil, err
	}
	req.Bids = bids

	awarded, err := loadAwardedBids(ctx, q, requestId)
	if err != nil {
		return nil, err
	}
	req.AwardedBids = awarded
	return &req, nil
}

func loadRequestBids(ctx context.Context, q querier, requestId string) ([]models.Bid, error) {
	query := `SELECT id, request_id, provider_id, amount, percentage, premium, terms, conditions, status, submitted_at, response_at, response_note
	          FROM bid WHERE request_id = $1 ORDER BY submitted_at, id`
	rows, err := q.Query(ctx, query, requestId)
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

func loadAwardedBids(ctx context.Context, q querier, requestId string) ([]models.AwardedBid, error) {
	query := `SELECT bid_id, provider_id, amount, percentage, premium, awarded_at
	          FROM awarded_bid WHERE request_id = $1 ORDER BY awarded_at, bid_id`
	rows, err := q.Query(ctx, query, requestId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var awarded []models.AwardedBid
	for rows.Next() {
		var ab models.AwardedBid
		if err := rows.Scan(&ab.BidID, &ab.ProviderID, &ab.Amount, &ab.Percentage, &ab.Premium, &ab.AwardedAt); err != nil {
			return nil, err
		}
		awarded = append(awarded, ab)
	}
	return awarded, rows.Err()
}

// ListRequests возвращает список заявок с фильтром по статусу.
func (r *PostgresRequestRepository) ListRequests(ctx context.Context, status string, limit, offset int) ([]models.InsuranceRequest, error) {
	var rows pgx.Rows
	var err error
	if status != "" {
		query := `SELECT ` + requestColumns + ` FROM insurance_request WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = r.DB.Query(ctx, query, status, limit, offset)
	} else {
		query := `SELECT ` + requestColumns + ` FROM insurance_request ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		rows, err = r.DB.Query(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListClientRequests возвращает список заявок клиента.
func (r *PostgresRequestRepository) ListClientRequests(ctx context.Context, clientId string, limit, offset int) ([]models.InsuranceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM insurance_request WHERE client_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.DB.Query(ctx, query, clientId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]models.InsuranceRequest, error) {
	var requests []models.InsuranceRequest
	for rows.Next() {
		var req models.InsuranceRequest
		if err := scanRequest(rows, &req); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// MutateRequest выполняет read-modify-write заявки под блокировкой строки.
// SELECT FOR UPDATE сериализует конкурентные решения по предложениям одной
// заявки: гонка lost-update на суммах покрытия исключается на уровне базы.
func (r *PostgresRequestRepository) MutateRequest(ctx context.Context, requestId string, fn func(*models.InsuranceRequest) error) (*models.InsuranceRequest, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	req, err := r.loadRequest(ctx, tx, requestId, `SELECT `+requestColumns+` FROM insurance_request WHERE id = $1 FOR UPDATE`)
	if err != nil {
		return nil, err
	}

	knownBids := make(map[string]bool, len(req.Bids))
	for i := range req.Bids {
		knownBids[req.Bids[i].ID] = true
	}
	prevAwarded := len(req.AwardedBids)

	if err := fn(req); err != nil {
		return nil, err
	}
	req.Version++

	updateQuery := `UPDATE insurance_request
	                SET total_awarded_amount = $1, total_awarded_percentage = $2, is_fully_covered = $3,
	                    status = $4, bid_count = $5, version = $6
	                WHERE id = $7`
	if _, err := tx.Exec(
		ctx,
		updateQuery,
		req.TotalAwardedAmount,
		req.TotalAwardedPercentage,
		req.IsFullyCovered,
		req.Status,
		req.BidCount,
		req.Version,
		req.ID); err != nil {
		return nil, err
	}

	for i := range req.Bids {
		bid := &req.Bids[i]
		if knownBids[bid.ID] {
			bidUpdateQuery := `UPDATE bid SET status = $1, response_at = $2, response_note = $3 WHERE id = $4`
			if _, err := tx.Exec(ctx, bidUpdateQuery, bid.Status, bid.ResponseAt, bid.ResponseNote, bid.ID); err != nil {
				return nil, err
			}
			continue
		}
		bidInsertQuery := `INSERT INTO bid (id, request_id, provider_id, amount, percentage, premium, terms, conditions, status, submitted_at, response_at, response_note)
		                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		if _, err := tx.Exec(
			ctx,
			bidInsertQuery,
			bid.ID,
			bid.RequestID,
			bid.ProviderID,
			bid.Amount,
			bid.Percentage,
			bid.Premium,
			bid.Terms,
			bid.Conditions,
			bid.Status,
			bid.SubmittedAt,
			bid.ResponseAt,
			bid.ResponseNote); err != nil {
			return nil, err
		}
	}

	for _, ab := range req.AwardedBids[prevAwarded:] {
		awardedInsertQuery := `INSERT INTO awarded_bid (bid_id, request_id, provider_id, amount, percentage, premium, awarded_at)
		                       VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (bid_id) DO NOTHING`
		if _, err := tx.Exec(ctx, awardedInsertQuery, ab.BidID, req.ID, ab.ProviderID, ab.Amount, ab.Percentage, ab.Premium, ab.AwardedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

// DeleteRequest удаляет заявку; предложения удаляются каскадом.
// Проверка fn и удаление идут в одной транзакции под блокировкой строки:
// конкурентная подача предложения не может проскочить между проверкой
// bid_count и удалением.
func (r *PostgresRequestRepository) DeleteRequest(ctx context.Context, requestId string, fn func(*models.InsuranceRequest) error) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	req, err := r.loadRequest(ctx, tx, requestId, `SELECT `+requestColumns+` FROM insurance_request WHERE id = $1 FOR UPDATE`)
	if err != nil {
		return err
	}
	if err := fn(req); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM insurance_request WHERE id = $1`, requestId); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ExpireOverdueRequests переводит просроченные заявки в статус expired.
func (r *PostgresRequestRepository) ExpireOverdueRequests(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE insurance_request SET status = $1, version = version + 1
	          WHERE status IN ($2, $3) AND deadline < $4`
	tag, err := r.DB.Exec(ctx, query, models.ExpiredRequest, models.OpenRequest, models.BiddingRequest, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
