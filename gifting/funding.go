package gifting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/smartgifter/giftledger/generic"
)

type FundingStatus string

const (
	Unfunded        FundingStatus = "unfunded"
	PartiallyFunded FundingStatus = "partially_funded"
	FullyFunded     FundingStatus = "fully_funded"
)

// nearlyCompleteAt is the percentage from which a gift is highlighted as
// almost there.
var nearlyCompleteAt = decimal.NewFromInt(85)

var hundred = decimal.NewFromInt(100)

// FundingState is derived from a gift's contribution log. It is never stored.
type FundingState struct {
	Price            generic.Amount
	TotalContributed generic.Amount
	Remaining        generic.Amount
	PercentComplete  decimal.Decimal
	Status           FundingStatus
	Contributors     int
	NearlyComplete   bool
}

func (s FundingState) IsFullyFunded() bool { return s.Status == FullyFunded }

// TotalContributed sums the contribution log.
func TotalContributed(g *GiftItem) generic.Amount {
	total := generic.ZeroAmount(g.Price.Currency)
	for _, c := range g.Contributors {
		total = total.Add(c.Amount)
	}
	return total
}

// Remaining is max(0, price - total).
func Remaining(g *GiftItem) generic.Amount {
	remaining := g.Price.Sub(TotalContributed(g))
	return remaining.Max(remaining.Zero())
}

func IsFullyFunded(g *GiftItem) bool {
	return Remaining(g).IsZero()
}

// PercentComplete is min(100, 100 * total / price), rounded to two places.
func PercentComplete(g *GiftItem) (decimal.Decimal, error) {
	if !g.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: gift %s has price %s", ErrInvalidGift, g.ID, g.Price)
	}
	pct := TotalContributed(g).Value.Mul(hundred).Div(g.Price.Value)
	return decimal.Min(pct, hundred).Round(2), nil
}

// Status places the gift in the funding state machine.
func Status(g *GiftItem) FundingStatus {
	switch {
	case IsFullyFunded(g):
		return FullyFunded
	case TotalContributed(g).IsPositive():
		return PartiallyFunded
	default:
		return Unfunded
	}
}

// Funding computes the full derived state of a gift.
func Funding(g *GiftItem) (FundingState, error) {
	pct, err := PercentComplete(g)
	if err != nil {
		return FundingState{}, err
	}
	return FundingState{
		Price:            g.Price,
		TotalContributed: TotalContributed(g),
		Remaining:        Remaining(g),
		PercentComplete:  pct,
		Status:           Status(g),
		Contributors:     len(g.Contributors),
		NearlyComplete:   pct.GreaterThanOrEqual(nearlyCompleteAt) && pct.LessThan(hundred),
	}, nil
}
