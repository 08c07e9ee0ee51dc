package redis

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/repository"
)

func newTestLedger(t *testing.T) repository.SlotLedger {
	url := os.Getenv("CLINIC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CLINIC_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return NewSlotLedger(client)
}

func TestReserveIsExclusive(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	doctorID := uuid.New()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.Reserve(ctx, doctorID, "10_05_2024", "10:00 AM"); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, repository.ErrSlotConflict)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	booked, err := ledger.Booked(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00 AM"}, booked["10_05_2024"])
}

func TestReleaseMissingSlot(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	doctorID := uuid.New()

	err := ledger.Release(ctx, doctorID, "10_05_2024", "10:00 AM")
	assert.ErrorIs(t, err, repository.ErrSlotNotFound)

	require.NoError(t, ledger.Reserve(ctx, doctorID, "10_05_2024", "10:00 AM"))
	require.NoError(t, ledger.Release(ctx, doctorID, "10_05_2024", "10:00 AM"))

	booked, err := ledger.IsBooked(ctx, doctorID, "10_05_2024", "10:00 AM")
	require.NoError(t, err)
	assert.False(t, booked)
}
