package bet

import (
	"github.com/shopspring/decimal"
)

// Outcome is the cascade's verdict for a bet after a selection resolved.
type Outcome struct {
	// Settle is false while pending legs remain and no leg has lost.
	Settle bool
	Status Status
	// Amount is the payout to credit: the recomputed winnings for won, the
	// full stake for void, zero for lost.
	Amount decimal.Decimal
}

// Cascade partitions the bet's legs and decides the bet-level outcome:
//
//  1. any lost leg settles the bet lost immediately, without waiting for the
//     remaining legs of an accumulator;
//  2. otherwise, once no pending legs remain: all-void settles void with a
//     full stake refund; anything else settles won, paying stake times the
//     product of the non-void, non-push legs' placement odds (voided and
//     pushed legs drop out at odds 1);
//  3. otherwise the bet stays open.
func (b *Bet) Cascade() Outcome {
	pending := 0
	voidOrPush := 0
	finalOdds := decimal.NewFromInt(1)

	for _, sel := range b.Selections {
		switch sel.Status {
		case SelectionLost:
			return Outcome{Settle: true, Status: StatusLost, Amount: decimal.Zero}
		case SelectionPending:
			pending++
		case SelectionVoid, SelectionPush:
			voidOrPush++
		case SelectionWon:
			finalOdds = finalOdds.Mul(sel.OddsAtPlacement)
		}
	}

	if pending > 0 {
		return Outcome{Settle: false, Status: StatusOpen}
	}

	if voidOrPush == len(b.Selections) {
		return Outcome{Settle: true, Status: StatusVoid, Amount: b.Stake}
	}

	return Outcome{
		Settle: true,
		Status: StatusWon,
		Amount: b.Stake.Mul(finalOdds).Round(2),
	}
}

// CashoutValue prices an early exit from an open bet: the locked-in partial
// progress over the won legs, discounted by the house margin, ignoring
// pending legs entirely. Zero means cash-out is unavailable: the bet is not
// open, a leg already lost, or nothing is pending and the bet should settle
// instead.
func (b *Bet) CashoutValue(margin decimal.Decimal) decimal.Decimal {
	if b.Status != StatusOpen {
		return decimal.Zero
	}

	pending := 0
	wonOdds := decimal.NewFromInt(1)
	for _, sel := range b.Selections {
		switch sel.Status {
		case SelectionLost:
			return decimal.Zero
		case SelectionPending:
			pending++
		case SelectionWon:
			wonOdds = wonOdds.Mul(sel.OddsAtPlacement)
		}
	}
	if pending == 0 {
		return decimal.Zero
	}

	factor := decimal.NewFromInt(1).Sub(margin)
	return b.Stake.Mul(wonOdds).Mul(factor).Round(2)
}
