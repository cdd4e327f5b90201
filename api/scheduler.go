/*
scheduler.go - Periodic ledger audit

PURPOSE:
  Runs the gifting Auditor in the background and keeps the latest report
  for the admin endpoint. A run with findings is logged at error level; the
  scheduler never repairs anything.

DESIGN:
  - One background goroutine driven by a ticker
  - Runs once immediately on Start
  - RunNow runs a synchronous audit (admin endpoint, tests)

CONFIGURATION:
  - Interval: How often to audit (AUDIT_INTERVAL, default 15m)
  - Enabled:  Whether the scheduler starts at all (zero interval disables it)

USAGE:
  scheduler := NewAuditScheduler(auditor, logger, 15*time.Minute)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - gifting/audit.go: The checks
  - handlers.go: GetAuditReport, RunAudit
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smartgifter/giftledger/gifting"
)

// AuditScheduler runs ledger audits on an interval.
type AuditScheduler struct {
	Auditor  *gifting.Auditor
	Logger   *slog.Logger
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	reportMu sync.RWMutex
	last     *gifting.AuditReport
}

func NewAuditScheduler(auditor *gifting.Auditor, logger *slog.Logger, interval time.Duration) *AuditScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditScheduler{
		Auditor:  auditor,
		Logger:   logger.With("component", "audit"),
		Interval: interval,
		Enabled:  interval > 0,
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *AuditScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("audit scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.Logger.Info("audit scheduler started", "interval", s.Interval)
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *AuditScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("audit scheduler stopped")
}

func (s *AuditScheduler) run() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stop
		cancel()
	}()

	s.RunNow(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.RunNow(ctx)
		case <-s.stop:
			return
		}
	}
}

// RunNow audits immediately and stores the report.
func (s *AuditScheduler) RunNow(ctx context.Context) (*gifting.AuditReport, error) {
	report, err := s.Auditor.Run(ctx)
	if err != nil {
		s.Logger.Error("audit failed", "error", err)
		return nil, err
	}

	s.reportMu.Lock()
	s.last = report
	s.reportMu.Unlock()

	if report.OK() {
		s.Logger.Debug("audit clean",
			"accounts", report.Accounts,
			"gifts", report.Gifts,
			"contributions", report.Contributions)
		return report, nil
	}

	for _, f := range report.Findings {
		s.Logger.Error("audit finding",
			"kind", f.Kind,
			"account_id", f.AccountID,
			"gift_id", f.GiftID,
			"contribution_id", f.ContributionID,
			"detail", f.Detail)
	}
	return report, nil
}

// LastReport returns the most recent report, or nil before the first run.
func (s *AuditScheduler) LastReport() *gifting.AuditReport {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	return s.last
}
