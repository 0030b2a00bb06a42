package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsbook-betting-core/internal/domain/market"
)

func TestRecord_FailureDegradesStatus(t *testing.T) {
	r := NewRecord(KindMarket, uuid.New(), nil)
	assert.Equal(t, StatusSettled, r.Status)

	r.RecordOutcome(uuid.New(), market.SelectionWinner)
	assert.Equal(t, StatusSettled, r.Status)

	r.RecordFailure(uuid.New(), market.SelectionLoser, "bet 42: postgres unavailable")
	assert.Equal(t, StatusCompletedWithErrors, r.Status)
	assert.Len(t, r.Outcomes, 1)
	assert.Len(t, r.Failures, 1)
}

func TestRecord_ResetForRetry(t *testing.T) {
	r := NewRecord(KindEvent, uuid.New(), &uuid.UUID{})
	failedSelection := uuid.New()
	r.RecordFailure(failedSelection, market.SelectionWinner, "ledger timeout")

	failed := r.ResetForRetry()

	require.Len(t, failed, 1)
	assert.Equal(t, failedSelection, failed[0].SelectionID)
	assert.Equal(t, market.SelectionWinner, failed[0].Result)
	assert.Empty(t, r.Failures)
	assert.Equal(t, StatusSettled, r.Status)

	// A failure during the retry degrades the record again.
	r.RecordFailure(failedSelection, market.SelectionWinner, "ledger timeout")
	assert.Equal(t, StatusCompletedWithErrors, r.Status)
}
