package market

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SelectionResult pairs a selection with its derived final result.
type SelectionResult struct {
	SelectionID uuid.UUID
	Result      SelectionStatus
}

// Score is the final score of an event.
type Score struct {
	Home int `json:"home" bson:"home"`
	Away int `json:"away" bson:"away"`
}

// Total returns the combined score, used by over/under settlement.
func (s Score) Total() decimal.Decimal {
	return decimal.NewFromInt(int64(s.Home + s.Away))
}

// DeriveResults applies the market-type rules to a final score and returns
// one result per selection. Selections already resolved still get a derived
// result; the cascade ignores re-resolution attempts.
func DeriveResults(m *Market, selections []*Selection, score Score) ([]SelectionResult, error) {
	switch m.Type {
	case TypeWinDrawWin:
		return deriveWinDrawWin(selections, score), nil
	case TypeOverUnder:
		return deriveOverUnder(m, selections, score), nil
	case TypeSpread:
		return deriveSpread(m, selections, score), nil
	}
	return nil, fmt.Errorf("market %s has unsupported type %q", m.ID, m.Type)
}

// deriveWinDrawWin marks the selection matching the winning side (or the
// draw) as winner and the rest as losers.
func deriveWinDrawWin(selections []*Selection, score Score) []SelectionResult {
	var winning Side
	switch {
	case score.Home > score.Away:
		winning = SideHome
	case score.Away > score.Home:
		winning = SideAway
	default:
		winning = SideDraw
	}

	results := make([]SelectionResult, 0, len(selections))
	for _, sel := range selections {
		result := SelectionLoser
		if sel.Side == winning {
			result = SelectionWinner
		}
		results = append(results, SelectionResult{SelectionID: sel.ID, Result: result})
	}
	return results
}

// deriveOverUnder compares the combined score against the market line. A
// total exactly on the line is a push for both sides, refunding the stake.
func deriveOverUnder(m *Market, selections []*Selection, score Score) []SelectionResult {
	total := score.Total()

	results := make([]SelectionResult, 0, len(selections))
	for _, sel := range selections {
		var result SelectionStatus
		switch {
		case total.Equal(m.Line):
			result = SelectionPush
		case sel.Side == SideOver && total.GreaterThan(m.Line):
			result = SelectionWinner
		case sel.Side == SideUnder && total.LessThan(m.Line):
			result = SelectionWinner
		default:
			result = SelectionLoser
		}
		results = append(results, SelectionResult{SelectionID: sel.ID, Result: result})
	}
	return results
}

// deriveSpread settles each side on its adjusted score difference: the
// side's score plus its point spread minus the opponent's score. Zero is a
// push.
func deriveSpread(m *Market, selections []*Selection, score Score) []SelectionResult {
	home := decimal.NewFromInt(int64(score.Home))
	away := decimal.NewFromInt(int64(score.Away))

	results := make([]SelectionResult, 0, len(selections))
	for _, sel := range selections {
		var adjustedDiff decimal.Decimal
		if sel.Side == SideHome {
			adjustedDiff = home.Add(m.HomeSpread).Sub(away)
		} else {
			adjustedDiff = away.Add(m.AwaySpread).Sub(home)
		}

		var result SelectionStatus
		switch adjustedDiff.Sign() {
		case 0:
			result = SelectionPush
		case 1:
			result = SelectionWinner
		default:
			result = SelectionLoser
		}
		results = append(results, SelectionResult{SelectionID: sel.ID, Result: result})
	}
	return results
}
