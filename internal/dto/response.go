package dto

import "MediaVault/model"

// QuotaUsage is the read-side view of a ledger row. Derived fields are never stored.
type QuotaUsage struct {
	UsedBytes      uint64  `json:"used_bytes"`
	LimitBytes     uint64  `json:"limit_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
}

// LedgerReport compares a ledger row with the assets it accounts for.
type LedgerReport struct {
	UserID      uint64 `json:"user_id"`
	LedgerBytes uint64 `json:"ledger_bytes"`
	ActualBytes uint64 `json:"actual_bytes"`
	LiveAssets  int64  `json:"live_assets"`
	Drift       int64  `json:"drift"`
	Fixed       bool   `json:"fixed"`
}

type AssetListResponse struct {
	Assets   []model.Asset `json:"assets"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// BatchResult reports per-id outcomes of a batch mutation.
type BatchResult struct {
	Succeeded []uint64          `json:"succeeded"`
	Failed    map[uint64]string `json:"failed,omitempty"`
}

// EmptyTrashResult summarizes an empty-trash run.
type EmptyTrashResult struct {
	Purged     int    `json:"purged"`
	Failed     int    `json:"failed"`
	FreedBytes uint64 `json:"freed_bytes"`
}

type AssetURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}
