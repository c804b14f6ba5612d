package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/usecase"
)

const (
	insertRoundSQL = `
		INSERT INTO game_rounds (
			id, user_id, game_type, bet_amount, bet_currency, win_amount,
			win_currency, multiplier, is_win, suppressed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	listRoundsSQL = `
		SELECT id, user_id, game_type, bet_amount, bet_currency, win_amount,
			win_currency, multiplier, is_win, suppressed, created_at
		FROM game_rounds
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
)

// GameRoundRepository implements usecase.GameRoundRepository.
type GameRoundRepository struct {
	pool db
}

// NewGameRoundRepository creates a new GameRoundRepository.
func NewGameRoundRepository(pool *pgxpool.Pool) *GameRoundRepository {
	return &GameRoundRepository{pool: pool}
}

// Create records a settled round.
func (r *GameRoundRepository) Create(ctx context.Context, tx usecase.Transaction, round *domain.GameRound) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, insertRoundSQL,
		round.ID,
		round.UserID,
		string(round.GameType),
		decimalToNumeric(round.BetAmount.Amount),
		string(round.BetAmount.Currency),
		decimalToNumeric(round.WinAmount.Amount),
		string(round.WinAmount.Currency),
		decimalToNumeric(round.Multiplier),
		round.IsWin,
		round.Suppressed,
		round.CreatedAt,
	)

	return err
}

// ListByUser returns a user's rounds, newest first.
func (r *GameRoundRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.GameRound, error) {
	rows, err := r.pool.Query(ctx, listRoundsSQL, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*domain.GameRound
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}

	return rounds, rows.Err()
}

func scanRound(row pgx.Row) (*domain.GameRound, error) {
	var (
		round                          domain.GameRound
		gameType, betCcy, winCcy       string
		betAmount, winAmount, multiple pgtype.Numeric
	)

	err := row.Scan(
		&round.ID,
		&round.UserID,
		&gameType,
		&betAmount,
		&betCcy,
		&winAmount,
		&winCcy,
		&multiple,
		&round.IsWin,
		&round.Suppressed,
		&round.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	round.GameType = domain.GameType(gameType)
	round.BetAmount = domain.Money{Amount: numericToDecimal(betAmount), Currency: domain.Currency(betCcy)}
	round.WinAmount = domain.Money{Amount: numericToDecimal(winAmount), Currency: domain.Currency(winCcy)}
	round.Multiplier = numericToDecimal(multiple)

	return &round, nil
}
