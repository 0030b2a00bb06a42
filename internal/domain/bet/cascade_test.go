package bet

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func betWithLegStatuses(t *testing.T, stake string, legs ...struct {
	Odds   string
	Status SelectionStatus
}) *Bet {
	t.Helper()
	specs := make([]Leg, 0, len(legs))
	for _, l := range legs {
		specs = append(specs, legWithOdds(l.Odds))
	}
	b := New(uuid.New(), TypeAccumulator, dec(stake), uuid.New(), specs)
	for i, l := range legs {
		b.Selections[i].Status = l.Status
	}
	return b
}

type leg = struct {
	Odds   string
	Status SelectionStatus
}

func TestCascade(t *testing.T) {
	t.Run("one lost leg loses the bet immediately", func(t *testing.T) {
		b := betWithLegStatuses(t, "10.00",
			leg{"2.00", SelectionWon},
			leg{"3.00", SelectionLost},
			leg{"1.50", SelectionPending},
		)

		outcome := b.Cascade()
		require.True(t, outcome.Settle)
		assert.Equal(t, StatusLost, outcome.Status)
		assert.True(t, outcome.Amount.IsZero())
	})

	t.Run("pending legs keep the bet open", func(t *testing.T) {
		b := betWithLegStatuses(t, "10.00",
			leg{"2.00", SelectionWon},
			leg{"1.50", SelectionPending},
		)

		outcome := b.Cascade()
		assert.False(t, outcome.Settle)
		assert.Equal(t, StatusOpen, outcome.Status)
	})

	t.Run("all won pays stake times placement odds", func(t *testing.T) {
		b := betWithLegStatuses(t, "10.00",
			leg{"2.00", SelectionWon},
			leg{"1.50", SelectionWon},
			leg{"3.00", SelectionWon},
		)

		outcome := b.Cascade()
		require.True(t, outcome.Settle)
		assert.Equal(t, StatusWon, outcome.Status)
		assert.True(t, outcome.Amount.Equal(dec("90.00")), "got %s", outcome.Amount)
	})

	t.Run("void and push legs drop out at odds one", func(t *testing.T) {
		b := betWithLegStatuses(t, "10.00",
			leg{"2.00", SelectionWon},
			leg{"3.00", SelectionVoid},
			leg{"1.80", SelectionPush},
		)

		outcome := b.Cascade()
		require.True(t, outcome.Settle)
		assert.Equal(t, StatusWon, outcome.Status)
		assert.True(t, outcome.Amount.Equal(dec("20.00")), "got %s", outcome.Amount)
	})

	t.Run("all void refunds the stake", func(t *testing.T) {
		b := betWithLegStatuses(t, "25.00",
			leg{"2.00", SelectionVoid},
			leg{"1.50", SelectionPush},
		)

		outcome := b.Cascade()
		require.True(t, outcome.Settle)
		assert.Equal(t, StatusVoid, outcome.Status)
		assert.True(t, outcome.Amount.Equal(dec("25.00")))
	})
}

func TestCashoutValue(t *testing.T) {
	margin := dec("0.10")

	t.Run("prices won progress with margin", func(t *testing.T) {
		b := betWithLegStatuses(t, "10.00",
			leg{"2.00", SelectionWon},
			leg{"1.50", SelectionPending},
		)

		// 10 x 2.00 x 0.90
		value := b.CashoutValue(margin)
		assert.True(t, value.Equal(dec("18.00")), "got %s", value)
	})

	t.Run("zero when a leg lost", func(t *testing.T) {
		b := betWithLegStatuses(t, "10.00",
			leg{"2.00", SelectionLost},
			leg{"1.50", SelectionPending},
		)
		assert.True(t, b.CashoutValue(margin).IsZero())
	})

	t.Run("zero when nothing pending", func(t *testing.T) {
		b := betWithLegStatuses(t, "10.00",
			leg{"2.00", SelectionWon},
			leg{"1.50", SelectionWon},
		)
		assert.True(t, b.CashoutValue(margin).IsZero())
	})

	t.Run("zero when bet not open", func(t *testing.T) {
		b := betWithLegStatuses(t, "10.00",
			leg{"2.00", SelectionWon},
			leg{"1.50", SelectionPending},
		)
		require.NoError(t, b.MarkCashedOut(decimal.NewFromInt(18)))
		assert.True(t, b.CashoutValue(margin).IsZero())
	})
}
