// Package points awards point events to accounts.
package points

import (
	"context"
	"fmt"

	"github.com/ashureev/classmate/internal/domain"
)

// Values is the point value of each event type.
var Values = map[domain.EventType]int{
	domain.EventQuizCompleted:               10,
	domain.EventBiteCompleted:               5,
	domain.EventDailyStreakCompleted:        15,
	domain.EventMilestoneAchieved:           20,
	domain.EventQuestionAnsweredCorrectly:   2,
	domain.EventQuestionAnsweredIncorrectly: 0,
}

// Ledger is the storage a Keeper writes to.
type Ledger interface {
	AppendPoint(ctx context.Context, rec *domain.PointRecord) error
	TotalPoints(ctx context.Context, accountID int64) (int, error)
}

// Keeper awards points against a ledger. A Keeper is bound to one ledger,
// which may be a transaction.
type Keeper struct {
	ledger Ledger
}

// NewKeeper returns a Keeper writing to ledger.
func NewKeeper(ledger Ledger) *Keeper {
	return &Keeper{ledger: ledger}
}

// Award appends a record for event. Zero-value events are recorded too.
func (k *Keeper) Award(ctx context.Context, accountID int64, event domain.EventType) (*domain.PointRecord, error) {
	value, ok := Values[event]
	if !ok {
		return nil, fmt.Errorf("award points: unknown event type %q", event)
	}
	rec := &domain.PointRecord{AccountID: accountID, EventType: event, Points: value}
	if err := k.ledger.AppendPoint(ctx, rec); err != nil {
		return nil, fmt.Errorf("award %s: %w", event, err)
	}
	return rec, nil
}

// Total returns the sum of all points awarded to an account.
func (k *Keeper) Total(ctx context.Context, accountID int64) (int, error) {
	return k.ledger.TotalPoints(ctx, accountID)
}
