package worker

import (
	"MediaVault/internal/logger"
	"MediaVault/internal/service"
	"MediaVault/utils"
	"context"
	"fmt"
	"time"
)

// RunLedgerReconciler checks every ledger against its assets on each tick and alerts on drift.
// It only reports; fixing is an operator decision because in-flight uploads hold reservations
// that have no asset rows yet.
func RunLedgerReconciler(ctx context.Context, interval time.Duration) {
	log := logger.L().With("component", "ledger-reconciler")
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			drifted := ReconcileAll(ctx, log)
			log.Info("ledger reconciliation finished", "drifted", drifted)
		}
	}
}

// ReconcileAll walks all ledgers and returns how many drifted.
func ReconcileAll(ctx context.Context, log *logger.Logger) int {
	var (
		afterID uint64
		drifted int
	)
	for {
		ids, err := service.ListLedgerUsers(ctx, afterID, 200)
		if err != nil {
			log.Error("list ledgers failed", "error", err)
			return drifted
		}
		if len(ids) == 0 {
			return drifted
		}
		for _, id := range ids {
			afterID = id
			report, err := service.Reconcile(ctx, id, false)
			if err != nil {
				log.Error("reconcile failed", "user_id", id, "error", err)
				continue
			}
			if report.Drift == 0 {
				continue
			}
			drifted++
			detail := fmt.Sprintf("ledger=%d actual=%d drift=%d live_assets=%d",
				report.LedgerBytes, report.ActualBytes, report.Drift, report.LiveAssets)
			if err := utils.SendLedgerAlert(id, detail); err != nil {
				log.Warn("send ledger alert failed", "user_id", id, "error", err)
			}
		}
	}
}
