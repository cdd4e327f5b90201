package gifting_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
	"github.com/smartgifter/giftledger/wallet"
)

func TestAuditor_CleanLedger(t *testing.T) {
	// GIVEN: Contributions made through the engine, including a compensated one
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	f.user(t, "bob", "100.00")
	gift := f.gift(t, f.party(t, "alice", "bob"), "g1", "100.00")

	_, err := f.contribute("alice", gift, "40.00", "")
	require.NoError(t, err)
	_, err = f.contribute("bob", gift, "60.00", "")
	require.NoError(t, err)

	// WHEN: Auditing
	report, err := gifting.NewAuditor(f.store, f.wallets).Run(context.Background())

	// THEN: Nothing is flagged
	require.NoError(t, err)
	assert.True(t, report.OK(), "findings: %+v", report.Findings)
	assert.Equal(t, 3, report.Accounts)
	assert.Equal(t, 1, report.Gifts)
	assert.Equal(t, 2, report.Contributions)
}

func TestAuditor_CompensatedDebitIsNotAnOrphan(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "100.00")
	f.engine.Gifts = failingGifts{f.store}

	_, err := f.contribute("alice", gift, "40.00", "")
	require.Error(t, err)

	report, err := gifting.NewAuditor(f.store, f.wallets).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK(), "findings: %+v", report.Findings)
}

func TestAuditor_FlagsInconsistencies(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	f.user(t, "bob", "100.00")
	gift := f.gift(t, f.party(t, "alice", "bob"), "g1", "100.00")
	ctx := context.Background()

	// A contribution with no debit behind it
	require.NoError(t, f.store.AppendContribution(ctx, gifting.Contribution{
		ID: "c-free", GiftID: gift, UserID: "bob", Amount: usd("10.00"),
	}))

	// A debit with no contribution
	_, err := f.wallets.Debit(ctx, "alice", usd("5.00"), wallet.Entry{
		Type:        generic.TxContribution,
		ReferenceID: string(gift),
		Metadata:    map[string]string{"contribution_id": "c-lost"},
	})
	require.NoError(t, err)

	// An account pushed below zero behind the wallet's back
	require.NoError(t, f.store.Append(ctx, generic.Transaction{
		ID: "adj-1", AccountID: "host", Delta: usd("-1.00"), Type: generic.TxAdjustment,
	}))

	auditor := gifting.NewAuditor(f.store, f.wallets)
	auditor.Now = func() time.Time { return time.Now().Add(time.Hour) }
	report, err := auditor.Run(ctx)
	require.NoError(t, err)

	kinds := map[gifting.FindingKind]gifting.Finding{}
	for _, finding := range report.Findings {
		kinds[finding.Kind] = finding
	}
	require.Len(t, report.Findings, 3, "findings: %+v", report.Findings)
	assert.Equal(t, "c-free", kinds[gifting.FindingMissingDebit].ContributionID)
	assert.Equal(t, "c-lost", kinds[gifting.FindingOrphanDebit].ContributionID)
	assert.Equal(t, generic.AccountID("host"), kinds[gifting.FindingNegativeBalance].AccountID)
}

func TestAuditor_VisibleContributionWithReversedDebit(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "100.00")
	ctx := context.Background()

	res, err := f.contribute("alice", gift, "40.00", "")
	require.NoError(t, err)
	_, err = f.wallets.Credit(ctx, "alice", usd("40.00"), wallet.Entry{
		Type:        generic.TxReversal,
		ReferenceID: res.Contribution.ID,
	})
	require.NoError(t, err)

	report, err := gifting.NewAuditor(f.store, f.wallets).Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, gifting.FindingReversedDebit, report.Findings[0].Kind)
}

func TestAuditor_InFlightContributionIsNotFlagged(t *testing.T) {
	// GIVEN: A debit whose contribution has not been appended yet
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "100.00")
	ctx := context.Background()

	_, err := f.wallets.Debit(ctx, "alice", usd("5.00"), wallet.Entry{
		Type:        generic.TxContribution,
		ReferenceID: string(gift),
		Metadata:    map[string]string{"contribution_id": "c-pending"},
	})
	require.NoError(t, err)

	// And: A contribution whose debit the run did not see
	require.NoError(t, f.store.AppendContribution(ctx, gifting.Contribution{
		ID: "c-racing", GiftID: gift, UserID: "alice", Amount: usd("7.00"), Date: time.Now().UTC(),
	}))

	auditor := gifting.NewAuditor(f.store, f.wallets)
	now := time.Now()
	auditor.Now = func() time.Time { return now }

	// WHEN: A run starts inside the grace window
	report, err := auditor.Run(ctx)

	// THEN: Neither is judged yet
	require.NoError(t, err)
	assert.True(t, report.OK(), "findings: %+v", report.Findings)
	assert.Equal(t, 1, report.Contributions)

	// WHEN: A later run starts after the grace window
	now = now.Add(auditor.Grace + time.Second)
	report, err = auditor.Run(ctx)

	// THEN: Both are flagged
	require.NoError(t, err)
	kinds := map[gifting.FindingKind]string{}
	for _, finding := range report.Findings {
		kinds[finding.Kind] = finding.ContributionID
	}
	assert.Equal(t, map[gifting.FindingKind]string{
		gifting.FindingOrphanDebit:  "c-pending",
		gifting.FindingMissingDebit: "c-racing",
	}, kinds)
}

func TestNewAuditor_GraceCoversLockTimeout(t *testing.T) {
	short := newFixture(t, time.Second)
	assert.Equal(t, gifting.DefaultAuditGrace, gifting.NewAuditor(short.store, short.wallets).Grace)

	long := newFixture(t, time.Minute)
	assert.Equal(t, 2*time.Minute, gifting.NewAuditor(long.store, long.wallets).Grace)
}
