package gifting_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
	"github.com/smartgifter/giftledger/store/memory"
	"github.com/smartgifter/giftledger/wallet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	store    *memory.Store
	wallets  *wallet.Ledger
	engine   *gifting.Engine
	wishlist *gifting.Wishlist
	observer *recordingObserver
}

type recordingObserver struct {
	mu          sync.Mutex
	committed   int
	completed   int
	rejected    []gifting.Kind
	retries     int
	compensated int
}

func (o *recordingObserver) ContributionCommitted(_ generic.Amount, completedGift bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.committed++
	if completedGift {
		o.completed++
	}
}

func (o *recordingObserver) ContributionRejected(kind gifting.Kind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, kind)
}

func (o *recordingObserver) ConflictRetried() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func (o *recordingObserver) Compensated() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.compensated++
}

func newFixture(t *testing.T, lockTimeout time.Duration) *fixture {
	t.Helper()
	store := memory.New()
	wallets := wallet.NewLedger(store, generic.NewLedger(store), generic.NewLocker(lockTimeout), generic.USD)

	engine := gifting.NewEngine(store, store, wallets)
	engine.Policy.Retry = generic.RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
	obs := &recordingObserver{}
	engine.Observer = obs

	return &fixture{
		store:    store,
		wallets:  wallets,
		engine:   engine,
		wishlist: gifting.NewWishlist(store, store, store, generic.USD),
		observer: obs,
	}
}

func (f *fixture) user(t *testing.T, id, balance string) {
	t.Helper()
	_, err := f.wallets.Open(context.Background(), wallet.Account{ID: generic.AccountID(id), Name: id}, usd(balance))
	require.NoError(t, err)
}

// party creates a host, the given guests and one event owned by the host.
func (f *fixture) party(t *testing.T, guests ...string) gifting.EventID {
	t.Helper()
	f.user(t, "host", "0")
	participants := make([]gifting.UserID, len(guests))
	for i, g := range guests {
		participants[i] = gifting.UserID(g)
	}
	event, err := f.wishlist.CreateEvent(context.Background(), gifting.NewEvent{
		ID:           "party",
		Title:        "Birthday",
		Type:         gifting.EventBirthday,
		Creator:      "host",
		Participants: participants,
	})
	require.NoError(t, err)
	return event.ID
}

func (f *fixture) gift(t *testing.T, event gifting.EventID, id, price string) gifting.GiftID {
	t.Helper()
	gift, err := f.wishlist.AddGift(context.Background(), "host", event, gifting.NewGift{
		ID:    gifting.GiftID(id),
		Title: "Gift " + id,
		Price: usd(price),
	})
	require.NoError(t, err)
	return gift.ID
}

func (f *fixture) contribute(user gifting.UserID, gift gifting.GiftID, amount, requestID string) (*gifting.ContributionResult, error) {
	return f.engine.Contribute(context.Background(), gifting.ContributeRequest{
		GiftID:    gift,
		UserID:    user,
		Amount:    usd(amount),
		RequestID: requestID,
	})
}

func (f *fixture) requireBalance(t *testing.T, user, want string) {
	t.Helper()
	balance, err := f.wallets.Balance(context.Background(), generic.AccountID(user))
	require.NoError(t, err)
	assert.True(t, balance.Equal(usd(want)), "balance of %s: want %s, got %s", user, want, balance)
}

func (f *fixture) requireFunding(t *testing.T, gift gifting.GiftID, total string, status gifting.FundingStatus) {
	t.Helper()
	view, err := f.wishlist.Gift(context.Background(), gift)
	require.NoError(t, err)
	assert.True(t, view.Funding.TotalContributed.Equal(usd(total)),
		"total of %s: want %s, got %s", gift, total, view.Funding.TotalContributed)
	assert.Equal(t, status, view.Funding.Status)
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestContribute_SplitFundsGift(t *testing.T) {
	// GIVEN: Alice and Bob each hold 100.00, a gift costs 100.00
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	f.user(t, "bob", "100.00")
	gift := f.gift(t, f.party(t, "alice", "bob"), "g1", "100.00")

	// WHEN: Alice gives 40.00
	res, err := f.contribute("alice", gift, "40.00", "")

	// THEN: The gift is partially funded and Alice was debited
	require.NoError(t, err)
	assert.Equal(t, gifting.PartiallyFunded, res.Funding.Status)
	assert.True(t, res.Funding.Remaining.Equal(usd("60.00")))
	assert.True(t, res.Balance.Equal(usd("60.00")))
	assert.False(t, res.Replayed)
	f.requireBalance(t, "alice", "60.00")

	// WHEN: Bob gives the remaining 60.00
	res, err = f.contribute("bob", gift, "60.00", "")

	// THEN: The gift is fully funded
	require.NoError(t, err)
	assert.Equal(t, gifting.FullyFunded, res.Funding.Status)
	assert.True(t, res.Funding.Remaining.IsZero())
	assert.Equal(t, "100", res.Funding.PercentComplete.String())
	assert.Len(t, res.Gift.Contributors, 2)
	f.requireBalance(t, "bob", "40.00")

	assert.Equal(t, 2, f.observer.committed)
	assert.Equal(t, 1, f.observer.completed)
}

func TestContribute_ExactRemainingIsAccepted(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "500.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "49.99")

	res, err := f.contribute("alice", gift, "49.99", "")

	require.NoError(t, err)
	assert.True(t, res.Funding.IsFullyFunded())
}

func TestContribute_RecordsMessageAndDebitMetadata(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "100.00")

	res, err := f.engine.Contribute(context.Background(), gifting.ContributeRequest{
		GiftID: gift, UserID: "alice", Amount: usd("10.00"), Message: "Happy birthday!",
	})
	require.NoError(t, err)
	assert.Equal(t, "Happy birthday!", res.Contribution.Message)

	txs, err := f.wallets.History(context.Background(), "alice")
	require.NoError(t, err)
	debit := txs[len(txs)-1]
	assert.Equal(t, generic.TxContribution, debit.Type)
	assert.Equal(t, string(gift), debit.ReferenceID)
	assert.Equal(t, res.Contribution.ID, debit.Metadata["contribution_id"])
	assert.Equal(t, "contrib-"+res.Contribution.ID, debit.IdempotencyKey)
}

// =============================================================================
// REJECTIONS
// =============================================================================

func TestContribute_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		user   gifting.UserID
		gift   gifting.GiftID
		amount string
		want   error
		kind   gifting.Kind
	}{
		{"creator", "host", "g1", "10.00", gifting.ErrCreatorCannotContribute, gifting.KindCreatorCannotContribute},
		{"insufficient funds", "poor", "g1", "40.00", generic.ErrInsufficientFunds, gifting.KindInsufficientFunds},
		{"zero", "alice", "g1", "0", generic.ErrInvalidAmount, gifting.KindInvalidAmount},
		{"negative", "alice", "g1", "-5.00", generic.ErrInvalidAmount, gifting.KindInvalidAmount},
		{"sub-cent", "alice", "g1", "1.001", generic.ErrInvalidAmount, gifting.KindInvalidAmount},
		{"unknown gift", "alice", "nope", "10.00", gifting.ErrGiftNotFound, gifting.KindGiftNotFound},
		{"unknown user", "ghost", "g1", "10.00", generic.ErrAccountNotFound, gifting.KindUserNotFound},
		{"exceeds remaining", "alice", "g1", "100.01", gifting.ErrExceedsRemaining, gifting.KindExceedsRemaining},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Second)
			f.user(t, "alice", "500.00")
			f.user(t, "poor", "25.00")
			f.gift(t, f.party(t, "alice", "poor"), "g1", "100.00")

			_, err := f.contribute(tt.user, tt.gift, tt.amount, "")

			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.kind, gifting.KindOf(err))
			assert.Equal(t, []gifting.Kind{tt.kind}, f.observer.rejected)

			// Nothing moved
			f.requireBalance(t, "alice", "500.00")
			f.requireBalance(t, "poor", "25.00")
			f.requireFunding(t, "g1", "0", gifting.Unfunded)
		})
	}
}

func TestContribute_InsufficientFundsCarriesShortfall(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "25.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "100.00")

	_, err := f.contribute("alice", gift, "40.00", "")

	var detail *generic.InsufficientFundsError
	require.ErrorAs(t, err, &detail)
	assert.True(t, detail.Available.Equal(usd("25.00")))
	assert.True(t, detail.Shortfall.Equal(usd("15.00")))
}

func TestContribute_FundedGiftRejectsFurtherContributions(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	f.user(t, "bob", "100.00")
	gift := f.gift(t, f.party(t, "alice", "bob"), "g1", "50.00")

	_, err := f.contribute("alice", gift, "50.00", "")
	require.NoError(t, err)

	_, err = f.contribute("bob", gift, "0.01", "")

	assert.ErrorIs(t, err, gifting.ErrGiftAlreadyFunded)
	f.requireBalance(t, "bob", "100.00")
}

func TestContribute_CurrencyMismatch(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "50.00")

	_, err := f.engine.Contribute(context.Background(), gifting.ContributeRequest{
		GiftID: gift, UserID: "alice", Amount: generic.MustAmount("10.00", generic.EUR),
	})

	assert.ErrorIs(t, err, generic.ErrCurrencyMismatch)
	assert.Equal(t, gifting.KindInvalidAmount, gifting.KindOf(err))
}

func TestContribute_AllowOverfunding(t *testing.T) {
	// GIVEN: A policy that accepts more than the remaining amount
	f := newFixture(t, time.Second)
	f.engine.Policy.AllowOverfunding = true
	f.user(t, "alice", "200.00")
	f.user(t, "bob", "200.00")
	gift := f.gift(t, f.party(t, "alice", "bob"), "g1", "100.00")

	// WHEN: Alice gives 150.00
	res, err := f.contribute("alice", gift, "150.00", "")

	// THEN: The whole amount is pledged, percent caps at 100, and the gift is closed
	require.NoError(t, err)
	assert.True(t, res.Funding.TotalContributed.Equal(usd("150.00")))
	assert.True(t, res.Funding.Remaining.IsZero())
	assert.Equal(t, "100", res.Funding.PercentComplete.String())
	f.requireBalance(t, "alice", "50.00")

	_, err = f.contribute("bob", gift, "1.00", "")
	assert.ErrorIs(t, err, gifting.ErrGiftAlreadyFunded)
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestContribute_ReplayDoesNotDebitTwice(t *testing.T) {
	// GIVEN: A committed contribution with a request id
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "100.00")

	first, err := f.contribute("alice", gift, "40.00", "req-1")
	require.NoError(t, err)

	// WHEN: The client retries the same request
	second, err := f.contribute("alice", gift, "40.00", "req-1")

	// THEN: The original contribution comes back and nothing moves
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Contribution.ID, second.Contribution.ID)
	assert.True(t, second.Balance.Equal(usd("60.00")))
	f.requireBalance(t, "alice", "60.00")
	f.requireFunding(t, gift, "40.00", gifting.PartiallyFunded)
}

func TestContribute_ReplaySucceedsAfterGiftIsFunded(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "40.00")

	_, err := f.contribute("alice", gift, "40.00", "req-1")
	require.NoError(t, err)

	res, err := f.contribute("alice", gift, "40.00", "req-1")

	require.NoError(t, err, "a replay is not a new contribution")
	assert.True(t, res.Replayed)
}

func TestContribute_RequestIDsAreScopedPerUser(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	f.user(t, "bob", "100.00")
	gift := f.gift(t, f.party(t, "alice", "bob"), "g1", "100.00")

	_, err := f.contribute("alice", gift, "10.00", "same")
	require.NoError(t, err)
	res, err := f.contribute("bob", gift, "10.00", "same")
	require.NoError(t, err)

	assert.False(t, res.Replayed)
	f.requireFunding(t, gift, "20.00", gifting.PartiallyFunded)
}

func TestContribute_RequestIDReusedOnAnotherGift(t *testing.T) {
	// GIVEN: Alice gave 10.00 to g1 with request id req-1
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	event := f.party(t, "alice")
	g1 := f.gift(t, event, "g1", "100.00")
	g2 := f.gift(t, event, "g2", "100.00")

	_, err := f.contribute("alice", g1, "10.00", "req-1")
	require.NoError(t, err)

	// WHEN: The same request id is sent for another gift
	res, err := f.contribute("alice", g2, "25.00", "req-1")

	// THEN: It is rejected, not reported as a replay
	require.ErrorIs(t, err, gifting.ErrRequestIDReused)
	assert.Nil(t, res)
	assert.Equal(t, gifting.KindRequestIDReused, gifting.KindOf(err))
	f.requireBalance(t, "alice", "90.00")
	f.requireFunding(t, g1, "10.00", gifting.PartiallyFunded)
	f.requireFunding(t, g2, "0.00", gifting.Unfunded)
}

func TestContribute_RequestIDReusedWithAnotherAmount(t *testing.T) {
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "100.00")

	_, err := f.contribute("alice", gift, "10.00", "req-1")
	require.NoError(t, err)

	_, err = f.contribute("alice", gift, "15.00", "req-1")

	require.ErrorIs(t, err, gifting.ErrRequestIDReused)
	f.requireBalance(t, "alice", "90.00")
	f.requireFunding(t, gift, "10.00", gifting.PartiallyFunded)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestContribute_ConcurrentContributorsNeverOverfund(t *testing.T) {
	// GIVEN: Eight guests racing to give 25.00 each to a 100.00 gift
	f := newFixture(t, 5*time.Second)
	guests := make([]string, 8)
	for i := range guests {
		guests[i] = fmt.Sprintf("guest%d", i)
		f.user(t, guests[i], "100.00")
	}
	gift := f.gift(t, f.party(t, guests...), "g1", "100.00")

	var (
		mu       sync.Mutex
		accepted int
		funded   int
	)
	var g errgroup.Group
	for _, guest := range guests {
		guest := guest
		g.Go(func() error {
			_, err := f.contribute(gifting.UserID(guest), gift, "25.00", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, gifting.ErrGiftAlreadyFunded):
				funded++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// THEN: Exactly four fit; the total equals the price and no money leaked
	assert.Equal(t, 4, accepted)
	assert.Equal(t, 4, funded)
	f.requireFunding(t, gift, "100.00", gifting.FullyFunded)

	total := usd("0")
	for _, guest := range guests {
		b, err := f.wallets.Balance(context.Background(), generic.AccountID(guest))
		require.NoError(t, err)
		total = total.Add(b)
	}
	assert.True(t, total.Equal(usd("700.00")), "wallets hold %s", total)
}

func TestContribute_SameUserConcurrentGiftsNeverOverdraw(t *testing.T) {
	// GIVEN: Alice has 50.00 and two gifts she wants to give 40.00 to
	f := newFixture(t, 5*time.Second)
	f.user(t, "alice", "50.00")
	event := f.party(t, "alice")
	g1 := f.gift(t, event, "g1", "100.00")
	g2 := f.gift(t, event, "g2", "100.00")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, gift := range []gifting.GiftID{g1, g2} {
		i, gift := i, gift
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.contribute("alice", gift, "40.00", "")
		}()
	}
	wg.Wait()

	// THEN: One succeeds, one is short
	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, generic.ErrInsufficientFunds):
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	f.requireBalance(t, "alice", "10.00")
}

func TestContribute_ConcurrentRequestIDReuseAcrossGifts(t *testing.T) {
	for i := 0; i < 20; i++ {
		// GIVEN: The same request id sent for two gifts at once
		f := newFixture(t, 5*time.Second)
		f.user(t, "alice", "100.00")
		event := f.party(t, "alice")
		g1 := f.gift(t, event, "g1", "100.00")
		g2 := f.gift(t, event, "g2", "100.00")

		results := make([]*gifting.ContributionResult, 2)
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for j, gift := range []gifting.GiftID{g1, g2} {
			j, gift := j, gift
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[j], errs[j] = f.contribute("alice", gift, "10.00", "req-1")
			}()
		}
		wg.Wait()

		// THEN: One commits, the other is rejected; nothing is replayed
		var ok, reused int
		for j, err := range errs {
			switch {
			case err == nil:
				ok++
				assert.False(t, results[j].Replayed)
				assert.Equal(t, results[j].Gift.ID, results[j].Contribution.GiftID)
			case errors.Is(err, gifting.ErrRequestIDReused):
				reused++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		require.Equal(t, 1, ok, "iteration %d", i)
		require.Equal(t, 1, reused, "iteration %d", i)
		f.requireBalance(t, "alice", "90.00")
	}
}

func TestContribute_SameUserSameGiftConcurrent(t *testing.T) {
	// GIVEN: Alice has 100.00 and sends eleven 10.00 contributions at once
	f := newFixture(t, 5*time.Second)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "1000.00")

	const n = 11
	errs := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			_, errs[i] = f.contribute("alice", gift, "10.00", "")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// THEN: Exactly the balance is debited and the extra one is short
	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, generic.ErrInsufficientFunds):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 1, short)
	f.requireBalance(t, "alice", "0.00")
	f.requireFunding(t, gift, "100.00", gifting.PartiallyFunded)
}

func TestContribute_RetriesLockConflicts(t *testing.T) {
	// GIVEN: The gift lock is held a little longer than one lock timeout
	f := newFixture(t, 20*time.Millisecond)
	f.engine.Policy.Retry.MaxAttempts = 5
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "100.00")

	release, err := f.engine.Locks.Acquire(context.Background(), generic.GiftKey(string(gift)))
	require.NoError(t, err)
	time.AfterFunc(30*time.Millisecond, release)

	// WHEN: Alice contributes
	_, err = f.contribute("alice", gift, "10.00", "")

	// THEN: The conflict was retried transparently
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f.observer.retries, 1)
	f.requireBalance(t, "alice", "90.00")
}

func TestContribute_ConflictAfterAllAttempts(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "100.00")

	release, err := f.engine.Locks.Acquire(context.Background(), generic.GiftKey(string(gift)))
	require.NoError(t, err)
	defer release()

	_, err = f.contribute("alice", gift, "10.00", "")

	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.Equal(t, gifting.KindTransactionConflict, gifting.KindOf(err))
	assert.Equal(t, 2, f.observer.retries, "three attempts means two retries")
	f.requireBalance(t, "alice", "100.00")
}

// =============================================================================
// COMPENSATION
// =============================================================================

// failingGifts fails every contribution append.
type failingGifts struct {
	*memory.Store
}

func (failingGifts) AppendContribution(context.Context, gifting.Contribution) error {
	return errors.New("disk full")
}

func TestContribute_FailedAppendIsCompensated(t *testing.T) {
	// GIVEN: A gift repository that cannot record contributions
	f := newFixture(t, time.Second)
	f.user(t, "alice", "100.00")
	gift := f.gift(t, f.party(t, "alice"), "g1", "100.00")
	f.engine.Gifts = failingGifts{f.store}

	// WHEN: Alice contributes
	_, err := f.contribute("alice", gift, "40.00", "")

	// THEN: The debit is reversed and the gift is untouched
	require.ErrorIs(t, err, generic.ErrTransactionFailed)
	assert.Equal(t, gifting.KindInternal, gifting.KindOf(err))
	assert.Equal(t, 1, f.observer.compensated)

	f.requireBalance(t, "alice", "100.00")
	f.requireFunding(t, gift, "0", gifting.Unfunded)

	txs, err := f.wallets.History(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, txs, 3, "grant, debit, reversal")
	assert.Equal(t, generic.TxContribution, txs[1].Type)
	assert.Equal(t, generic.TxReversal, txs[2].Type)
	assert.True(t, txs[1].Delta.Neg().Equal(txs[2].Delta))
}
