package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"donation-service/internal/domain"
)

const queryTimeout = 5 * time.Second

// uniqueViolation is the Postgres error code for duplicate keys; the
// settlement ledger relies on it to reject redelivered events.
const uniqueViolation = "23505"

type PostgresDonationRepository struct {
	db *sql.DB
}

func NewPostgresDonationRepository(db *sql.DB) *PostgresDonationRepository {
	return &PostgresDonationRepository{db: db}
}

const donationColumns = `
	id, user_id, user_email, user_name, story_id, story_title, ngo_id, ngo_name,
	amount, platform_fee, ngo_amount, currency, status, message, is_anonymous,
	payment_intent_id, failure_reason, receipt_number, receipt_url,
	receipt_generated, receipt_generated_at, receipt_sent, receipt_sent_at,
	created_at, paid_at`

func scanDonation(row *sql.Row) (*domain.Donation, error) {
	var d domain.Donation
	err := row.Scan(
		&d.ID, &d.UserID, &d.UserEmail, &d.UserName, &d.StoryID, &d.StoryTitle,
		&d.NGOID, &d.NGOName, &d.Amount, &d.PlatformFee, &d.NGOAmount,
		&d.Currency, &d.Status, &d.Message, &d.IsAnonymous, &d.PaymentIntentID,
		&d.FailureReason, &d.ReceiptNumber, &d.ReceiptURL, &d.ReceiptGenerated,
		&d.ReceiptGeneratedAt, &d.ReceiptSent, &d.ReceiptSentAt,
		&d.CreatedAt, &d.PaidAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan donation: %w", err)
	}
	return &d, nil
}

func (r *PostgresDonationRepository) Create(ctx context.Context, d *domain.Donation) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		INSERT INTO donations (
			id, user_id, user_email, user_name, story_id, story_title, ngo_id,
			ngo_name, amount, platform_fee, ngo_amount, currency, status,
			message, is_anonymous, payment_intent_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17);
	`

	if _, err := r.db.ExecContext(ctx, query,
		d.ID, d.UserID, d.UserEmail, d.UserName, d.StoryID, d.StoryTitle,
		d.NGOID, d.NGOName, d.Amount, d.PlatformFee, d.NGOAmount, d.Currency,
		d.Status, d.Message, d.IsAnonymous, d.PaymentIntentID, d.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert donation: %w", err)
	}
	return nil
}

func (r *PostgresDonationRepository) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT` + donationColumns + ` FROM donations WHERE id = $1;`
	return scanDonation(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresDonationRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT` + donationColumns + ` FROM donations WHERE payment_intent_id = $1 LIMIT 1;`
	return scanDonation(r.db.QueryRowContext(ctx, query, paymentIntentID))
}

func (r *PostgresDonationRepository) SetReceipt(ctx context.Context, id, receiptNumber, receiptURL string, generatedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		UPDATE donations
		SET receipt_number = $2, receipt_url = $3, receipt_generated = TRUE,
		    receipt_generated_at = $4
		WHERE id = $1;
	`

	res, err := r.db.ExecContext(ctx, query, id, receiptNumber, receiptURL, generatedAt)
	if err != nil {
		return fmt.Errorf("failed to set receipt on donation: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresDonationRepository) MarkReceiptSent(ctx context.Context, id string, sentAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		UPDATE donations SET receipt_sent = TRUE, receipt_sent_at = $2 WHERE id = $1;
	`

	res, err := r.db.ExecContext(ctx, query, id, sentAt)
	if err != nil {
		return fmt.Errorf("failed to mark receipt sent: %w", err)
	}
	return requireRow(res)
}

type PostgresStoryRepository struct {
	db *sql.DB
}

func NewPostgresStoryRepository(db *sql.DB) *PostgresStoryRepository {
	return &PostgresStoryRepository{db: db}
}

func (r *PostgresStoryRepository) Create(ctx context.Context, s *domain.Story) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		INSERT INTO stories (
			id, ngo_id, ngo_name, title, description, status, goal_amount,
			raised_amount, donation_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $8);
	`

	if _, err := r.db.ExecContext(ctx, query,
		s.ID, s.NGOID, s.NGOName, s.Title, s.Description, s.Status,
		s.GoalAmount, s.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert story: %w", err)
	}
	return nil
}

func (r *PostgresStoryRepository) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		SELECT id, ngo_id, ngo_name, title, description, status, goal_amount,
		       raised_amount, donation_count, created_at, updated_at
		FROM stories WHERE id = $1;
	`

	var s domain.Story
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.NGOID, &s.NGOName, &s.Title, &s.Description, &s.Status,
		&s.GoalAmount, &s.RaisedAmount, &s.DonationCount, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan story: %w", err)
	}
	return &s, nil
}

func (r *PostgresStoryRepository) Update(ctx context.Context, id, title, description string, goalAmount int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		UPDATE stories SET title = $2, description = $3, goal_amount = $4,
		    updated_at = NOW()
		WHERE id = $1;
	`

	res, err := r.db.ExecContext(ctx, query, id, title, description, goalAmount)
	if err != nil {
		return fmt.Errorf("failed to update story: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresStoryRepository) SetStatus(ctx context.Context, id string, status domain.StoryStatus) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `UPDATE stories SET status = $2, updated_at = NOW() WHERE id = $1;`

	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to set story status: %w", err)
	}
	return requireRow(res)
}

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		SELECT id, email, display_name, total_donated, donation_count
		FROM users WHERE id = $1;
	`

	var u domain.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.TotalDonated, &u.DonationCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// PostgresSettlementRepository applies terminal donation transitions in a
// single transaction together with the aggregate increments and the
// idempotency ledger row.
type PostgresSettlementRepository struct {
	db *sql.DB
}

func NewPostgresSettlementRepository(db *sql.DB) *PostgresSettlementRepository {
	return &PostgresSettlementRepository{db: db}
}

func (r *PostgresSettlementRepository) ApplySettlement(ctx context.Context, eventID string, d *domain.Donation, paidAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settlement transaction: %w", err)
	}
	defer tx.Rollback()

	if err := recordEvent(ctx, tx, eventID, d.ID, "payment_intent.succeeded"); err != nil {
		return err
	}

	// Status guard: only a pending donation may become succeeded.
	res, err := tx.ExecContext(ctx, `
		UPDATE donations SET status = $2, paid_at = $3
		WHERE id = $1 AND status = $4;
	`, d.ID, domain.DonationSucceeded, paidAt, domain.DonationPending)
	if err != nil {
		return fmt.Errorf("failed to mark donation succeeded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyProcessed
	}

	// Aggregate counters use plain increments so concurrent settlements to
	// the same story or NGO commute.
	res, err = tx.ExecContext(ctx, `
		UPDATE stories SET raised_amount = raised_amount + $2,
		    donation_count = donation_count + 1, updated_at = NOW()
		WHERE id = $1;
	`, d.StoryID, d.Amount)
	if err != nil {
		return fmt.Errorf("failed to update story aggregates: %w", err)
	}
	noteMissingAggregate(res, "stories", d.StoryID, d.ID, eventID)

	res, err = tx.ExecContext(ctx, `
		UPDATE users SET total_donated = total_donated + $2,
		    donation_count = donation_count + 1
		WHERE id = $1;
	`, d.UserID, d.Amount)
	if err != nil {
		return fmt.Errorf("failed to update user aggregates: %w", err)
	}
	noteMissingAggregate(res, "users", d.UserID, d.ID, eventID)

	// total_donors counts settled donations, not unique donors.
	res, err = tx.ExecContext(ctx, `
		UPDATE ngos SET total_donations_received = total_donations_received + $2,
		    total_donors = total_donors + 1
		WHERE id = $1;
	`, d.NGOID, d.NGOAmount)
	if err != nil {
		return fmt.Errorf("failed to update NGO aggregates: %w", err)
	}
	noteMissingAggregate(res, "ngos", d.NGOID, d.ID, eventID)

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	log.WithFields(log.Fields{
		"donation_id": d.ID,
		"event_id":    eventID,
		"amount":      d.Amount,
		"ngo_amount":  d.NGOAmount,
	}).Info("Settlement applied")
	return nil
}

func (r *PostgresSettlementRepository) ApplyFailure(ctx context.Context, eventID, donationID, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin failure transaction: %w", err)
	}
	defer tx.Rollback()

	if err := recordEvent(ctx, tx, eventID, donationID, "payment_intent.payment_failed"); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE donations SET status = $2, failure_reason = $3
		WHERE id = $1 AND status = $4;
	`, donationID, domain.DonationFailed, reason, domain.DonationPending)
	if err != nil {
		return fmt.Errorf("failed to mark donation failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyProcessed
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit failure: %w", err)
	}
	return nil
}

func recordEvent(ctx context.Context, tx *sql.Tx, eventID, donationID, eventType string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, donation_id, event_type, processed_at)
		VALUES ($1, $2, $3, NOW());
	`, eventID, donationID, eventType)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return ErrAlreadyProcessed
	}
	return fmt.Errorf("failed to record processed event: %w", err)
}

// noteMissingAggregate logs when an aggregate increment matched no row. The
// donation transition still commits; the skipped counter needs manual
// reconciliation.
func noteMissingAggregate(res sql.Result, table, rowID, donationID, eventID string) {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return
	}
	log.WithFields(log.Fields{
		"table":       table,
		"row_id":      rowID,
		"donation_id": donationID,
		"event_id":    eventID,
	}).Error("Aggregate row missing, settlement committed without its increment")
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
