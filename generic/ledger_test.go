package generic_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func usd(s string) generic.Amount {
	return generic.MustAmount(s, generic.USD)
}

func tx(account, key string, delta generic.Amount, typ generic.TransactionType) generic.Transaction {
	return generic.Transaction{
		ID:             generic.TransactionID("tx-" + key),
		AccountID:      generic.AccountID(account),
		Delta:          delta,
		Type:           typ,
		IdempotencyKey: key,
	}
}

// =============================================================================
// AMOUNT TESTS
// =============================================================================

func TestAmount_ValidatePositive(t *testing.T) {
	tests := []struct {
		name    string
		amount  generic.Amount
		wantErr bool
	}{
		{"whole", usd("40"), false},
		{"cents", usd("0.01"), false},
		{"trailing zeros", usd("12.500"), false},
		{"zero", usd("0"), true},
		{"negative", usd("-5.00"), true},
		{"sub-cent", usd("0.005"), true},
		{"no currency", generic.MustAmount("1.00", ""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.amount.ValidatePositive()
			if tt.wantErr {
				assert.ErrorIs(t, err, generic.ErrInvalidAmount)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAmount_RejectsGarbage(t *testing.T) {
	_, err := generic.ParseAmount("forty", generic.USD)
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)
}

func TestAmount_DecimalArithmeticIsExact(t *testing.T) {
	// 0.1 + 0.2 is the classic float trap
	sum := usd("0.10").Add(usd("0.20"))
	assert.True(t, sum.Equal(usd("0.30")))
	assert.Equal(t, "0.30 USD", sum.String())
}

// =============================================================================
// BALANCE TESTS
// =============================================================================

func TestSummarize_Breakdown(t *testing.T) {
	// GIVEN: A wallet with every kind of movement
	txs := []generic.Transaction{
		tx("u1", "k1", usd("100.00"), generic.TxGrant),
		tx("u1", "k2", usd("50.00"), generic.TxTopUp),
		tx("u1", "k3", usd("-40.00"), generic.TxContribution),
		tx("u1", "k4", usd("-10.00"), generic.TxContribution),
		tx("u1", "k5", usd("10.00"), generic.TxReversal),
		tx("u1", "k6", usd("-5.00"), generic.TxAdjustment),
	}

	// WHEN: Summarizing
	b := generic.Summarize("u1", txs, generic.USD)

	// THEN: Each bucket holds its share and Available is the sum of deltas
	assert.True(t, b.Granted.Equal(usd("95.00")), "granted: %s", b.Granted)
	assert.True(t, b.ToppedUp.Equal(usd("50.00")), "topped up: %s", b.ToppedUp)
	assert.True(t, b.Contributed.Equal(usd("50.00")), "contributed: %s", b.Contributed)
	assert.True(t, b.Reversed.Equal(usd("10.00")), "reversed: %s", b.Reversed)
	assert.True(t, b.Available.Equal(usd("105.00")), "available: %s", b.Available)
	assert.Equal(t, 6, b.Count)
}

func TestSummarize_IgnoresOtherCurrencies(t *testing.T) {
	txs := []generic.Transaction{
		tx("u1", "k1", usd("10.00"), generic.TxGrant),
		tx("u1", "k2", generic.MustAmount("99.00", generic.EUR), generic.TxGrant),
	}

	b := generic.Summarize("u1", txs, generic.USD)

	assert.True(t, b.Available.Equal(usd("10.00")))
	assert.Equal(t, 1, b.Count)
}

func TestBalance_CanDebit(t *testing.T) {
	b := generic.Balance{Available: usd("40.00")}

	assert.True(t, b.CanDebit(usd("40.00")), "exact balance")
	assert.False(t, b.CanDebit(usd("40.01")), "one cent over")
}

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestLedger_AppendAndBalance(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(store.NewMemory())

	require.NoError(t, ledger.Append(ctx, tx("u1", "grant", usd("100.00"), generic.TxGrant)))
	require.NoError(t, ledger.Append(ctx, tx("u1", "c1", usd("-40.00"), generic.TxContribution)))
	require.NoError(t, ledger.Append(ctx, tx("u2", "grant-2", usd("7.00"), generic.TxGrant)))

	balance, err := ledger.Balance(ctx, "u1", generic.USD)
	require.NoError(t, err)
	assert.True(t, balance.Equal(usd("60.00")), "got %s", balance)

	txs, err := ledger.Transactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "grant", txs[0].IdempotencyKey, "commit order is preserved")
	assert.Equal(t, "c1", txs[1].IdempotencyKey)
}

func TestLedger_DuplicateIdempotencyKeyRejected(t *testing.T) {
	// GIVEN: A debit already recorded under a key
	ctx := context.Background()
	ledger := generic.NewLedger(store.NewMemory())
	require.NoError(t, ledger.Append(ctx, tx("u1", "grant", usd("100.00"), generic.TxGrant)))
	require.NoError(t, ledger.Append(ctx, tx("u1", "debit-1", usd("-40.00"), generic.TxContribution)))

	// WHEN: The same key is appended again (client retry)
	err := ledger.Append(ctx, tx("u1", "debit-1", usd("-40.00"), generic.TxContribution))

	// THEN: It is rejected and the balance is debited once
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
	balance, err := ledger.Balance(ctx, "u1", generic.USD)
	require.NoError(t, err)
	assert.True(t, balance.Equal(usd("60.00")), "got %s", balance)
}

func TestLedger_AppendBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(store.NewMemory())
	require.NoError(t, ledger.Append(ctx, tx("u1", "taken", usd("1.00"), generic.TxGrant)))

	err := ledger.AppendBatch(ctx, []generic.Transaction{
		tx("u1", "fresh", usd("5.00"), generic.TxGrant),
		tx("u1", "taken", usd("5.00"), generic.TxGrant),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	txs, err := ledger.Transactions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, txs, 1, "nothing from the failed batch is visible")
}

func TestLedger_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A transactional store with a funded account
	ctx := context.Background()
	ledger := generic.NewLedger(store.NewTxMemory())
	require.NoError(t, ledger.Append(ctx, tx("u1", "grant", usd("100.00"), generic.TxGrant)))

	// WHEN: A unit of work appends and then fails
	boom := errors.New("boom")
	err := ledger.WithTx(ctx, func(l generic.Ledger) error {
		if err := l.Append(ctx, tx("u1", "debit", usd("-30.00"), generic.TxContribution)); err != nil {
			return err
		}
		return boom
	})

	// THEN: The append is rolled back
	assert.ErrorIs(t, err, boom)
	balance, err := ledger.Balance(ctx, "u1", generic.USD)
	require.NoError(t, err)
	assert.True(t, balance.Equal(usd("100.00")), "got %s", balance)

	exists, err := ledger.Store.Exists(ctx, "debit")
	require.NoError(t, err)
	assert.False(t, exists, "idempotency key is released on rollback")
}

func TestLedger_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(store.NewTxMemory())

	err := ledger.WithTx(ctx, func(l generic.Ledger) error {
		return l.Append(ctx, tx("u1", "grant", usd("12.34"), generic.TxGrant))
	})
	require.NoError(t, err)

	balance, err := ledger.Balance(ctx, "u1", generic.USD)
	require.NoError(t, err)
	assert.True(t, balance.Equal(usd("12.34")))
}

func TestLedger_WithTxWithoutTxStoreRunsDirectly(t *testing.T) {
	ctx := context.Background()
	ledger := generic.NewLedger(store.NewMemory())

	err := ledger.WithTx(ctx, func(l generic.Ledger) error {
		return l.Append(ctx, tx("u1", "grant", usd("1.00"), generic.TxGrant))
	})
	require.NoError(t, err)

	txs, err := ledger.Transactions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Append(ctx, tx("u1", "grant", usd("1.00"), generic.TxGrant)))

	mem.Reset()

	txs, err := mem.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, txs)
	exists, err := mem.Exists(ctx, "grant")
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestInsufficientFundsError(t *testing.T) {
	err := error(&generic.InsufficientFundsError{
		AccountID: "u1",
		Available: usd("25.00"),
		Requested: usd("40.00"),
		Shortfall: usd("15.00"),
	})

	assert.ErrorIs(t, err, generic.ErrInsufficientFunds)
	assert.Equal(t, "insufficient funds: available 25.00, requested 40.00, shortfall 15.00", err.Error())
	assert.True(t, generic.IsClientError(err))
	assert.False(t, generic.IsRetryable(err))
}
