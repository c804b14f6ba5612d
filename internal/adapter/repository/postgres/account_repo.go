package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

const pgErrUniqueViolation = "23505"

// ErrStaleVersion is returned when an account row changed under a balance update.
var ErrStaleVersion = errors.New("postgres: stale account version")

const (
	insertAccountSQL = `
		INSERT INTO accounts (user_id, currency, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	selectAccountSQL = `
		SELECT user_id, currency, balance, version, created_at, updated_at
		FROM accounts
		WHERE user_id = $1`

	updateBalanceSQL = `
		UPDATE accounts
		SET balance = $2, version = $3, updated_at = $4
		WHERE user_id = $1 AND version = $3 - 1`
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	pool db
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, insertAccountSQL,
		account.UserID,
		string(account.Currency),
		decimalToNumeric(account.Balance),
		account.Version,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAccountExists
	}

	return err
}

// GetByUserID retrieves an account by user ID.
func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, selectAccountSQL, userID))
}

// GetByUserIDForUpdate retrieves an account with a FOR UPDATE lock.
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, tx usecase.Transaction, userID string) (*domain.Account, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}

	return scanAccount(q.QueryRow(ctx, selectAccountSQL+" FOR UPDATE", userID))
}

// UpdateBalance sets the balance if the stored version is one behind version.
func (r *AccountRepository) UpdateBalance(
	ctx context.Context,
	tx usecase.Transaction,
	userID string,
	balance decimal.Decimal,
	version int64,
	updatedAt time.Time,
) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, updateBalanceSQL, userID, decimalToNumeric(balance), version, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s version %d", ErrStaleVersion, userID, version)
	}

	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account  domain.Account
		currency string
		balance  pgtype.Numeric
	)

	err := row.Scan(&account.UserID, &currency, &balance, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	account.Currency = domain.Currency(currency)
	account.Balance = numericToDecimal(balance)

	return &account, nil
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
