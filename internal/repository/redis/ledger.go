// Package redis provides a slot ledger kept in Redis sets, one set per doctor and date.
package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const keyPrefix = "clinic:slots"

type slotLedger struct {
	client redis.UniversalClient
}

// NewSlotLedger returns a ledger where SADD decides the single winner of a reservation.
// Doctor existence is not checked here; callers resolve the doctor first.
func NewSlotLedger(client redis.UniversalClient) repository.SlotLedger {
	return &slotLedger{client: client}
}

func dateKey(doctorID uuid.UUID, date string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, doctorID, date)
}

func indexKey(doctorID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:dates", keyPrefix, doctorID)
}

func (l *slotLedger) IsBooked(ctx context.Context, doctorID uuid.UUID, date, label string) (bool, error) {
	booked, err := l.client.SIsMember(ctx, dateKey(doctorID, date), label).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return booked, nil
}

func (l *slotLedger) Reserve(ctx context.Context, doctorID uuid.UUID, date, label string) error {
	var added *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SAdd(ctx, dateKey(doctorID, date), label)
		pipe.SAdd(ctx, indexKey(doctorID), date)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reserve slot: %w", err)
	}
	if added.Val() == 0 {
		return repository.ErrSlotConflict
	}
	return nil
}

func (l *slotLedger) Release(ctx context.Context, doctorID uuid.UUID, date, label string) error {
	removed, err := l.client.SRem(ctx, dateKey(doctorID, date), label).Result()
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	if removed == 0 {
		return repository.ErrSlotNotFound
	}
	return nil
}

func (l *slotLedger) Booked(ctx context.Context, doctorID uuid.UUID) (model.SlotLedger, error) {
	dates, err := l.client.SMembers(ctx, indexKey(doctorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger dates: %w", err)
	}

	cmds := make(map[string]*redis.StringSliceCmd, len(dates))
	_, err = l.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, date := range dates {
			cmds[date] = pipe.SMembers(ctx, dateKey(doctorID, date))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	ledger := make(model.SlotLedger, len(dates))
	for date, cmd := range cmds {
		ledger[date] = append([]string{}, cmd.Val()...)
	}
	return ledger, nil
}
