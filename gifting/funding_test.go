package gifting_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
)

func usd(s string) generic.Amount {
	return generic.MustAmount(s, generic.USD)
}

func giftWith(price string, contributions ...string) *gifting.GiftItem {
	g := &gifting.GiftItem{ID: "g1", Price: usd(price)}
	for _, c := range contributions {
		g.Contributors = append(g.Contributors, gifting.Contribution{Amount: usd(c)})
	}
	return g
}

func TestFunding_StateMachine(t *testing.T) {
	tests := []struct {
		name          string
		gift          *gifting.GiftItem
		wantTotal     string
		wantRemaining string
		wantPercent   string
		wantStatus    gifting.FundingStatus
		wantNearly    bool
	}{
		{"no contributions", giftWith("100.00"), "0", "100.00", "0", gifting.Unfunded, false},
		{"partial", giftWith("100.00", "40.00"), "40.00", "60.00", "40", gifting.PartiallyFunded, false},
		{"nearly", giftWith("100.00", "60.00", "25.00"), "85.00", "15.00", "85", gifting.PartiallyFunded, true},
		{"exact", giftWith("100.00", "40.00", "60.00"), "100.00", "0", "100", gifting.FullyFunded, false},
		{"over", giftWith("100.00", "70.00", "50.00"), "120.00", "0", "100", gifting.FullyFunded, false},
		{"thirds", giftWith("30.00", "10.00"), "10.00", "20.00", "33.33", gifting.PartiallyFunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := gifting.Funding(tt.gift)
			require.NoError(t, err)

			assert.True(t, state.TotalContributed.Equal(usd(tt.wantTotal)), "total %s", state.TotalContributed)
			assert.True(t, state.Remaining.Equal(usd(tt.wantRemaining)), "remaining %s", state.Remaining)
			assert.True(t, state.PercentComplete.Equal(decimal.RequireFromString(tt.wantPercent)),
				"percent %s", state.PercentComplete)
			assert.Equal(t, tt.wantStatus, state.Status)
			assert.Equal(t, tt.wantNearly, state.NearlyComplete)
			assert.Equal(t, len(tt.gift.Contributors), state.Contributors)
			assert.Equal(t, tt.wantStatus == gifting.FullyFunded, gifting.IsFullyFunded(tt.gift))
		})
	}
}

func TestPercentComplete_RejectsNonPositivePrice(t *testing.T) {
	_, err := gifting.PercentComplete(giftWith("0"))
	assert.ErrorIs(t, err, gifting.ErrInvalidGift)

	_, err = gifting.Funding(giftWith("-5.00"))
	assert.ErrorIs(t, err, gifting.ErrInvalidGift)
}

func TestRemaining_NeverNegative(t *testing.T) {
	g := giftWith("10.00", "15.00")
	assert.True(t, gifting.Remaining(g).IsZero())
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, gifting.CategorySmall, gifting.CategoryFor(usd("49.99")))
	assert.Equal(t, gifting.CategoryMedium, gifting.CategoryFor(usd("50.00")))
	assert.Equal(t, gifting.CategoryMedium, gifting.CategoryFor(usd("200.00")))
	assert.Equal(t, gifting.CategoryLarge, gifting.CategoryFor(usd("200.01")))
}
