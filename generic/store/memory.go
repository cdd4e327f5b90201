// Package store provides in-memory generic.Store implementations.
package store

import (
	"context"
	"maps"
	"sync"

	"github.com/smartgifter/giftledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[generic.AccountID][]generic.Transaction
	idempotency  map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[generic.AccountID][]generic.Transaction),
		idempotency:  make(map[string]bool),
	}
}

// Reset drops every transaction.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = make(map[generic.AccountID][]generic.Transaction)
	m.idempotency = make(map[string]bool)
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx)
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendBatchLocked(txs)
}

func (m *Memory) appendBatchLocked(txs []generic.Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[tx.IdempotencyKey] || seen[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
	}

	for _, tx := range txs {
		if err := m.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(tx generic.Transaction) error {
	if tx.IdempotencyKey != "" {
		if m.idempotency[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		m.idempotency[tx.IdempotencyKey] = true
	}
	// Commit order is the ledger order; no re-sorting.
	m.transactions[tx.AccountID] = append(m.transactions[tx.AccountID], tx)
	return nil
}

func (m *Memory) Load(_ context.Context, accountID generic.AccountID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadLocked(accountID), nil
}

func (m *Memory) loadLocked(accountID generic.AccountID) []generic.Transaction {
	result := make([]generic.Transaction, len(m.transactions[accountID]))
	copy(result, m.transactions[accountID])
	return result
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	txsCopy := make(map[generic.AccountID][]generic.Transaction, len(tm.transactions))
	for k, v := range tm.transactions {
		txsCopy[k] = append([]generic.Transaction{}, v...)
	}
	return memorySnapshot{transactions: txsCopy, idempotency: maps.Clone(tm.idempotency)}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.transactions = s.transactions
	tm.idempotency = s.idempotency
}

type memorySnapshot struct {
	transactions map[generic.AccountID][]generic.Transaction
	idempotency  map[string]bool
}

// txMemoryView runs with the parent's write lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) Append(_ context.Context, tx generic.Transaction) error {
	return tv.parent.appendLocked(tx)
}

func (tv *txMemoryView) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	return tv.parent.appendBatchLocked(txs)
}

func (tv *txMemoryView) Load(_ context.Context, accountID generic.AccountID) ([]generic.Transaction, error) {
	return tv.parent.loadLocked(accountID), nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}
