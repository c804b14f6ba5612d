package predictor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPredictor_Predict(t *testing.T) {
	p := New()

	tentative, err := p.Predict(d("100"), d("10"), false)
	require.NoError(t, err)
	assert.True(t, tentative.Equal(d("90")))
	assert.Equal(t, Predicting, p.State())
	assert.True(t, p.Display().Equal(d("90")))

	_, err = p.Predict(d("90"), d("5"), false)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestPredictor_PredictRejections(t *testing.T) {
	p := New()

	_, err := p.Predict(d("100"), d("0"), false)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = p.Predict(d("5"), d("10"), false)
	assert.ErrorIs(t, err, ErrWouldOverdraw)

	tentative, err := p.Predict(d("5"), d("10"), true)
	require.NoError(t, err)
	assert.True(t, tentative.Equal(d("15")))
}

func TestPredictor_ReconcileServerWins(t *testing.T) {
	var transitions []Transition
	p := New(WithObserver(func(tr Transition) { transitions = append(transitions, tr) }))

	_, err := p.Predict(d("100"), d("10"), false)
	require.NoError(t, err)

	final, err := p.Reconcile(d("87.5"))
	require.NoError(t, err)
	assert.True(t, final.Equal(d("87.5")))
	assert.Equal(t, Idle, p.State())
	assert.True(t, p.Display().Equal(d("87.5")))

	require.Len(t, transitions, 3)
	assert.Equal(t, Predicting, transitions[0].To)
	assert.True(t, transitions[0].Display.Equal(d("90")))
	assert.Equal(t, Reconciled, transitions[1].To)
	assert.Equal(t, Idle, transitions[2].To)

	_, err = p.Reconcile(d("1"))
	assert.ErrorIs(t, err, ErrNotPredicting)
}

func TestPredictor_Rollback(t *testing.T) {
	p := New()

	_, err := p.Rollback()
	assert.ErrorIs(t, err, ErrNotPredicting)

	_, err = p.Predict(d("100"), d("25"), false)
	require.NoError(t, err)

	restored, err := p.Rollback()
	require.NoError(t, err)
	assert.True(t, restored.Equal(d("100")))
	assert.Equal(t, Idle, p.State())
	assert.True(t, p.Display().Equal(d("100")))
}

func TestPredictor_Run(t *testing.T) {
	tests := []struct {
		name      string
		call      Call
		wantState State
		wantFinal string
		corrected bool
		wantErr   error
	}{
		{
			name:      "server confirms prediction",
			call:      func(context.Context) (decimal.Decimal, error) { return d("90"), nil },
			wantState: Reconciled,
			wantFinal: "90",
		},
		{
			name:      "server corrects prediction",
			call:      func(context.Context) (decimal.Decimal, error) { return d("105"), nil },
			wantState: Reconciled,
			wantFinal: "105",
			corrected: true,
		},
		{
			name:      "rejection rolls back",
			call:      func(context.Context) (decimal.Decimal, error) { return decimal.Zero, errTest },
			wantState: RolledBack,
			wantFinal: "100",
			wantErr:   errTest,
		},
		{
			name: "timeout rolls back",
			call: func(ctx context.Context) (decimal.Decimal, error) {
				<-ctx.Done()
				return decimal.Zero, ctx.Err()
			},
			wantState: RolledBack,
			wantFinal: "100",
			wantErr:   context.DeadlineExceeded,
		},
		{
			name:      "panic rolls back",
			call:      func(context.Context) (decimal.Decimal, error) { panic("boom") },
			wantState: RolledBack,
			wantFinal: "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(WithTimeout(20 * time.Millisecond))

			out, err := p.Run(context.Background(), d("100"), d("10"), false, tt.call)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantState == RolledBack:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantState, out.State)
			assert.True(t, out.Tentative.Equal(d("90")))
			assert.True(t, out.Final.Equal(d(tt.wantFinal)), "final %s", out.Final)
			assert.Equal(t, tt.corrected, out.Corrected)
			assert.Equal(t, Idle, p.State())
			assert.True(t, p.Display().Equal(d(tt.wantFinal)))
		})
	}
}

func TestPredictor_RunIgnoresCallThatOutlivesTimeout(t *testing.T) {
	p := New(WithTimeout(10 * time.Millisecond))
	release := make(chan struct{})

	out, err := p.Run(context.Background(), d("50"), d("5"), true, func(context.Context) (decimal.Decimal, error) {
		<-release
		return d("999"), nil
	})
	close(release)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, out.Final.Equal(d("50")))
	assert.True(t, p.Display().Equal(d("50")))
}

func TestPredictor_ConcurrentRunsAreExclusive(t *testing.T) {
	p := New()
	gate := make(chan struct{})

	var (
		wg   sync.WaitGroup
		busy int
		mu   sync.Mutex
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Run(context.Background(), d("100"), d("1"), false, func(context.Context) (decimal.Decimal, error) {
				<-gate
				return d("99"), nil
			})
			if errors.Is(err, ErrBusy) {
				mu.Lock()
				busy++
				mu.Unlock()
			}
		}()
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return busy == 4
	}, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, Idle, p.State())
}

var errTest = errors.New("insufficient funds")

func TestState_String(t *testing.T) {
	assert.Equal(t, "rolled_back", RolledBack.String())
	assert.Equal(t, "state(9)", State(9).String())
}
