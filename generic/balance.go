/*
balance.go - Balance derivation

PURPOSE:
  Computes an account balance from its transactions. This is the central
  calculation that answers "how much can this user spend?"

BALANCE COMPONENTS:
  Granted:     Opening balances, welcome bonuses, admin adjustments
  ToppedUp:    Funds added through the payment provider
  Contributed: Funds pledged to gifts (stored as positive)
  Reversed:    Compensations returned to the account

  Available = Granted + ToppedUp - Contributed + Reversed

  Every transaction Delta is signed, so Available is also the plain sum of
  deltas. The breakdown exists for the wallet page and for audits.

SEE ALSO:
  - ledger.go: Ledger.Balance uses Summarize
  - wallet/ledger.go: Overdraft checks against Available
*/
package generic

// Balance is the derived state of one account.
type Balance struct {
	AccountID   AccountID
	Granted     Amount
	ToppedUp    Amount
	Contributed Amount
	Reversed    Amount
	Available   Amount
	Count       int
}

// CanDebit checks if the given amount can be taken without going negative.
func (b Balance) CanDebit(amount Amount) bool {
	return !b.Available.Sub(amount).IsNegative()
}

// Summarize folds transactions into a Balance. Transactions in a currency
// other than the requested one are ignored.
func Summarize(accountID AccountID, txs []Transaction, currency Currency) Balance {
	zero := ZeroAmount(currency)
	b := Balance{
		AccountID:   accountID,
		Granted:     zero,
		ToppedUp:    zero,
		Contributed: zero,
		Reversed:    zero,
		Available:   zero,
	}

	for _, tx := range txs {
		if tx.Delta.Currency != currency {
			continue
		}
		b.Count++
		switch tx.Type {
		case TxGrant, TxAdjustment:
			b.Granted = b.Granted.Add(tx.Delta)
		case TxTopUp:
			b.ToppedUp = b.ToppedUp.Add(tx.Delta)
		case TxContribution:
			b.Contributed = b.Contributed.Add(tx.Delta.Neg()) // Store as positive
		case TxReversal:
			b.Reversed = b.Reversed.Add(tx.Delta)
		}
		b.Available = b.Available.Add(tx.Delta)
	}
	return b
}
