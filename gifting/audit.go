/*
audit.go - Cross-checking gifts against wallets

PURPOSE:
  The contribution engine keeps two logs in step: the gift's contribution
  log and the contributor's wallet ledger. The Auditor reads both and
  reports anything that should be impossible:

  negative_balance   An account whose replayed balance is below zero
  missing_debit      A contribution with no wallet debit behind it
  reversed_debit     A visible contribution whose debit was reversed
  orphan_debit       A contribution debit with no contribution and no reversal

  Findings are reported, never repaired. Repairs are ledger adjustments made
  by a person.

IN-FLIGHT CONTRIBUTIONS:
  A run takes no locks. A contribution that is between its debit and its
  append looks like an orphan debit (or, if the gift is read after the
  append but the wallet was read before the debit, a missing debit). Debits
  and contributions newer than StartedAt minus Grace are therefore not
  judged; the next run covers them.

SEE ALSO:
  - engine.go: Debit and compensation keys
  - api/scheduler.go: Periodic runs
*/
package gifting

import (
	"context"
	"fmt"
	"time"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/wallet"
)

// AuditSource lists everything the Auditor needs to read.
type AuditSource interface {
	ListAccounts(ctx context.Context) ([]wallet.Account, error)
	ListGifts(ctx context.Context) ([]GiftItem, error)
}

type FindingKind string

const (
	FindingNegativeBalance FindingKind = "negative_balance"
	FindingMissingDebit    FindingKind = "missing_debit"
	FindingReversedDebit   FindingKind = "reversed_debit"
	FindingOrphanDebit     FindingKind = "orphan_debit"
)

type Finding struct {
	Kind           FindingKind
	AccountID      generic.AccountID
	GiftID         GiftID
	ContributionID string
	Detail         string
}

type AuditReport struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	Accounts      int
	Gifts         int
	Contributions int
	Findings      []Finding
}

func (r *AuditReport) OK() bool { return len(r.Findings) == 0 }

// DefaultAuditGrace is the minimum age of a debit or contribution before
// the audit judges it.
const DefaultAuditGrace = time.Minute

type Auditor struct {
	Source  AuditSource
	Wallets *wallet.Ledger
	Now     func() time.Time
	Grace   time.Duration
}

// NewAuditor uses DefaultAuditGrace, or twice the wallet lock timeout when
// that is longer.
func NewAuditor(source AuditSource, wallets *wallet.Ledger) *Auditor {
	grace := DefaultAuditGrace
	if wallets.Locks != nil && 2*wallets.Locks.Timeout > grace {
		grace = 2 * wallets.Locks.Timeout
	}
	return &Auditor{Source: source, Wallets: wallets, Now: time.Now, Grace: grace}
}

// accountLedger is what the audit needs from one wallet history.
type accountLedger struct {
	debits   map[string]generic.Transaction // contribution id -> debit
	reversed map[string]bool                // contribution id
}

// Run reads every account and gift once, without taking locks.
func (a *Auditor) Run(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{StartedAt: a.Now().UTC()}
	settled := report.StartedAt.Add(-a.Grace)

	accounts, err := a.Source.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	report.Accounts = len(accounts)

	ledgers := make(map[generic.AccountID]*accountLedger, len(accounts))
	for _, acct := range accounts {
		txs, err := a.Wallets.History(ctx, acct.ID)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", acct.ID, err)
		}

		b := generic.Summarize(acct.ID, txs, a.Wallets.Currency)
		if b.Available.IsNegative() {
			report.Findings = append(report.Findings, Finding{
				Kind:      FindingNegativeBalance,
				AccountID: acct.ID,
				Detail:    "balance " + b.Available.String(),
			})
		}
		ledgers[acct.ID] = indexLedger(txs)
	}

	gifts, err := a.Source.ListGifts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gifts: %w", err)
	}
	report.Gifts = len(gifts)

	seen := make(map[string]bool)
	for _, g := range gifts {
		for _, c := range g.Contributors {
			report.Contributions++
			seen[c.ID] = true

			l := ledgers[c.UserID]
			switch {
			case l == nil || l.debits[c.ID].ID == "":
				if c.Date.After(settled) {
					continue
				}
				report.Findings = append(report.Findings, Finding{
					Kind: FindingMissingDebit, AccountID: c.UserID, GiftID: g.ID, ContributionID: c.ID,
					Detail: "contribution of " + c.Amount.String() + " has no wallet debit",
				})
			case l.reversed[c.ID]:
				report.Findings = append(report.Findings, Finding{
					Kind: FindingReversedDebit, AccountID: c.UserID, GiftID: g.ID, ContributionID: c.ID,
					Detail: "debit was reversed but the contribution is visible",
				})
			}
		}
	}

	for id, l := range ledgers {
		for contributionID, debit := range l.debits {
			if seen[contributionID] || l.reversed[contributionID] || debit.CreatedAt.After(settled) {
				continue
			}
			report.Findings = append(report.Findings, Finding{
				Kind: FindingOrphanDebit, AccountID: id, GiftID: GiftID(debit.ReferenceID), ContributionID: contributionID,
				Detail: "debit of " + debit.Delta.Neg().String() + " has no contribution",
			})
		}
	}

	report.FinishedAt = a.Now().UTC()
	return report, nil
}

func indexLedger(txs []generic.Transaction) *accountLedger {
	l := &accountLedger{
		debits:   make(map[string]generic.Transaction),
		reversed: make(map[string]bool),
	}
	for _, tx := range txs {
		switch tx.Type {
		case generic.TxContribution:
			if id := tx.Metadata["contribution_id"]; id != "" {
				l.debits[id] = tx
			}
		case generic.TxReversal:
			l.reversed[tx.ReferenceID] = true
		}
	}
	return l
}
