package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

const (
	insertTransactionSQL = `
		INSERT INTO transactions (
			id, user_id, round_id, kind, currency, amount,
			original_amount, original_currency, balance_after, sequence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	listTransactionsSQL = `
		SELECT id, user_id, round_id, kind, currency, amount,
			original_amount, original_currency, balance_after, sequence, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY sequence DESC
		LIMIT $2 OFFSET $3`
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	pool db
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create appends a transaction record.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.Transaction) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, insertTransactionSQL,
		record.ID,
		record.UserID,
		record.RoundID,
		string(record.Kind),
		string(record.Currency),
		decimalToNumeric(record.Amount),
		decimalToNumeric(record.OriginalAmount.Amount),
		string(record.OriginalAmount.Currency),
		decimalToNumeric(record.BalanceAfter),
		record.Sequence,
		record.CreatedAt,
	)

	return err
}

// ListByUser returns a user's transactions, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, listTransactionsSQL, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.Transaction
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		record                      domain.Transaction
		kind, currency, originalCcy string
		amount, original, after     pgtype.Numeric
		createdAt                   time.Time
	)

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.RoundID,
		&kind,
		&currency,
		&amount,
		&original,
		&originalCcy,
		&after,
		&record.Sequence,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	record.Kind = domain.TransactionKind(kind)
	record.Currency = domain.Currency(currency)
	record.Amount = numericToDecimal(amount)
	record.OriginalAmount = domain.Money{Amount: numericToDecimal(original), Currency: domain.Currency(originalCcy)}
	record.BalanceAfter = numericToDecimal(after)
	record.CreatedAt = createdAt

	return &record, nil
}
