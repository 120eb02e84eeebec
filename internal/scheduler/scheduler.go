// Package scheduler runs the background scan pump: a cron-driven loop
// that advances in-progress scans for deployments where no external client
// polls processNextBatch.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"inbox-janitor-go/internal/config"
	"inbox-janitor-go/internal/model"
	"inbox-janitor-go/internal/scan"
)

// ScanLister finds scans the pump should advance.
type ScanLister interface {
	ListByPhase(ctx context.Context, phase model.ScanPhase) ([]model.ScanRecord, error)
}

// Pump periodically advances every scan in the processing phase. It goes
// through the same idempotent batch path as external callers, so racing a
// polling client is harmless.
type Pump struct {
	cron         *cron.Cron
	entryID      cron.EntryID
	config       *config.PumpConfig
	orchestrator *scan.Orchestrator
	scans        ScanLister
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	isRunning    bool
	mu           sync.RWMutex
}

// NewPump creates a scan pump.
func NewPump(cfg *config.PumpConfig, orchestrator *scan.Orchestrator, scans ScanLister) *Pump {
	ctx, cancel := context.WithCancel(context.Background())

	return &Pump{
		cron:         cron.New(cron.WithSeconds()),
		config:       cfg,
		orchestrator: orchestrator,
		scans:        scans,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the pump
func (p *Pump) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("scan pump is already running")
	}

	schedule := fmt.Sprintf("*/%d * * * * *", p.config.IntervalSeconds)

	entryID, err := p.cron.AddFunc(schedule, p.advanceScans)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	p.entryID = entryID
	p.cron.Start()
	p.isRunning = true

	logrus.Infof("Scan pump started with interval: %d seconds", p.config.IntervalSeconds)
	return nil
}

// Stop stops the pump
func (p *Pump) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return nil
	}

	p.cancel()
	ctx := p.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scan pump stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scan pump stop timeout, forcing shutdown")
	}

	p.isRunning = false
	return nil
}

// IsRunning returns whether the pump is running
func (p *Pump) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isRunning
}

// Wait waits for in-flight pump cycles to finish
func (p *Pump) Wait() {
	p.wg.Wait()
}

// advanceScans is the periodic pump cycle.
func (p *Pump) advanceScans() {
	p.wg.Add(1)
	defer p.wg.Done()

	p.mu.RLock()
	if !p.isRunning {
		p.mu.RUnlock()
		return
	}
	p.mu.RUnlock()

	scans, err := p.scans.ListByPhase(p.ctx, model.PhaseProcessing)
	if err != nil {
		logrus.Errorf("Scan pump failed to list scans: %v", err)
		return
	}

	for _, record := range scans {
		select {
		case <-p.ctx.Done():
			return
		default:
		}
		p.advance(record)
	}
}

// advance drives one scan until it leaves the processing phase or the pump
// is stopped.
func (p *Pump) advance(record model.ScanRecord) {
	offset := record.ProcessedCount
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result, err := p.orchestrator.ProcessNextBatch(p.ctx, record.UserID, record.ID, offset)
		if err != nil {
			logrus.Errorf("Scan pump batch for %s failed: %v", record.ID, err)
			return
		}
		if result.Phase != model.PhaseProcessing {
			logrus.Infof("Scan pump finished %s in phase %s", record.ID, result.Phase)
			return
		}
		if result.NextOffset == offset {
			// A concurrent caller owns this offset; back off until the
			// next cycle.
			return
		}
		offset = result.NextOffset
	}
}
