// Package predictor keeps a displayed balance responsive while a wager is in flight.
//
// A Predictor applies the expected effect of an action immediately, then either
// replaces it with the server's balance or restores the last confirmed value. The
// server is always authoritative.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds a Run call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

var (
	// ErrBusy is returned when a prediction is already in flight.
	ErrBusy = errors.New("predictor: prediction already in flight")
	// ErrNotPredicting is returned by Reconcile and Rollback outside a prediction.
	ErrNotPredicting = errors.New("predictor: no prediction in flight")
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("predictor: amount must be positive")
	// ErrWouldOverdraw is returned when a stake exceeds the displayed balance.
	ErrWouldOverdraw = errors.New("predictor: stake exceeds displayed balance")
)

// State is a step of the prediction cycle.
type State int

const (
	Idle State = iota
	Predicting
	Reconciled
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Predicting:
		return "predicting"
	case Reconciled:
		return "reconciled"
	case RolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition is reported to the observer on every state change.
type Transition struct {
	From    State
	To      State
	Display decimal.Decimal
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithTimeout bounds the server call made by Run.
func WithTimeout(d time.Duration) Option {
	return func(p *Predictor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithObserver registers fn to receive every transition. fn runs without the
// predictor's lock held.
func WithObserver(fn func(Transition)) Option {
	return func(p *Predictor) {
		p.observer = fn
	}
}

// Predictor runs one prediction at a time. It is safe for concurrent use.
type Predictor struct {
	mu        sync.Mutex
	state     State
	display   decimal.Decimal
	confirmed decimal.Decimal
	timeout   time.Duration
	observer  func(Transition)
}

// New creates an idle Predictor.
func New(opts ...Option) *Predictor {
	p := &Predictor{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state.
func (p *Predictor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Display returns the balance currently shown.
func (p *Predictor) Display() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.display
}

// Predict shows display minus a stake, or plus a payout when isWin, and remembers
// display as the last confirmed balance.
func (p *Predictor) Predict(display, amount decimal.Decimal, isWin bool) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	tentative := display.Add(amount)
	if !isWin {
		tentative = display.Sub(amount)
		if tentative.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: %s > %s", ErrWouldOverdraw, amount, display)
		}
	}

	p.mu.Lock()
	if p.state != Idle {
		p.mu.Unlock()
		return decimal.Zero, ErrBusy
	}
	p.confirmed = display
	p.display = tentative
	p.state = Predicting
	p.mu.Unlock()

	p.notify(Transition{From: Idle, To: Predicting, Display: tentative})

	return tentative, nil
}

// Reconcile replaces the tentative balance with the server's and returns to Idle.
func (p *Predictor) Reconcile(server decimal.Decimal) (decimal.Decimal, error) {
	return p.finish(Reconciled, &server)
}

// Rollback restores the last confirmed balance and returns to Idle.
func (p *Predictor) Rollback() (decimal.Decimal, error) {
	return p.finish(RolledBack, nil)
}

func (p *Predictor) finish(outcome State, server *decimal.Decimal) (decimal.Decimal, error) {
	p.mu.Lock()
	if p.state != Predicting {
		p.mu.Unlock()
		return decimal.Zero, ErrNotPredicting
	}
	if server != nil {
		p.confirmed = *server
	}
	p.display = p.confirmed
	p.state = Idle
	display := p.display
	p.mu.Unlock()

	p.notify(Transition{From: Predicting, To: outcome, Display: display})
	p.notify(Transition{From: outcome, To: Idle, Display: display})

	return display, nil
}

func (p *Predictor) notify(t Transition) {
	if p.observer != nil {
		p.observer(t)
	}
}

// Call performs the authoritative request and returns the server balance.
type Call func(ctx context.Context) (decimal.Decimal, error)

// Outcome describes one completed cycle.
type Outcome struct {
	Tentative decimal.Decimal
	Final     decimal.Decimal
	State     State
	// Corrected is set when the server balance differed from the prediction.
	Corrected bool
}

// Run predicts, performs call under the configured timeout and reconciles with its
// result. Errors, timeouts and panics in call roll the display back; the returned
// error then wraps the cause.
func (p *Predictor) Run(ctx context.Context, display, amount decimal.Decimal, isWin bool, call Call) (Outcome, error) {
	tentative, err := p.Predict(display, amount, isWin)
	if err != nil {
		return Outcome{Final: display, State: Idle}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		balance decimal.Decimal
		err     error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("predictor: call panicked: %v", r)}
			}
		}()
		balance, err := call(callCtx)
		done <- result{balance: balance, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = result{err: callCtx.Err()}
	}

	if res.err != nil {
		restored, rbErr := p.Rollback()
		if rbErr != nil {
			return Outcome{Tentative: tentative, Final: p.Display(), State: RolledBack}, errors.Join(res.err, rbErr)
		}
		return Outcome{Tentative: tentative, Final: restored, State: RolledBack}, res.err
	}

	final, err := p.Reconcile(res.balance)
	if err != nil {
		return Outcome{Tentative: tentative, Final: p.Display(), State: Reconciled}, err
	}

	return Outcome{
		Tentative: tentative,
		Final:     final,
		State:     Reconciled,
		Corrected: !final.Equal(tentative),
	}, nil
}
