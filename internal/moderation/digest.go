package moderation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/internal/metrics"
)

const unknownRegion = "unknown"

// RegionFunc names the region a product is counted under
type RegionFunc func(p *catalog.Product) string

// ProvinceOf returns the last comma separated part of the address, which is
// the province in Vietnamese addresses
func ProvinceOf(p *catalog.Product) string {
	parts := strings.Split(p.Location.Address, ",")
	if region := strings.TrimSpace(parts[len(parts)-1]); region != "" {
		return region
	}
	return unknownRegion
}

// Digest periodically counts products awaiting verification per region,
// logs the counts and publishes them as a gauge
type Digest struct {
	cron    *cron.Cron
	spec    string
	catalog *catalog.Service
	region  RegionFunc
	metrics *metrics.Metrics
	logger  *zap.Logger
	mu      sync.Mutex
	running bool
}

// NewDigest creates a digest for a six-field cron spec (seconds first).
// region defaults to ProvinceOf; m may be nil.
func NewDigest(spec string, cat *catalog.Service, region RegionFunc, m *metrics.Metrics, logger *zap.Logger) *Digest {
	if region == nil {
		region = ProvinceOf
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Digest{
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		catalog: cat,
		region:  region,
		metrics: m,
		logger:  logger,
	}
}

// Start schedules the digest. ctx bounds every run.
func (d *Digest) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("pending digest already running")
	}

	_, err := d.cron.AddFunc(d.spec, func() {
		if _, err := d.RunOnce(ctx); err != nil {
			d.logger.Error("Pending digest failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", d.spec, err)
	}

	d.cron.Start()
	d.running = true
	d.logger.Info("Pending digest scheduled", zap.String("cron", d.spec))
	return nil
}

// Stop stops scheduling and waits for a running digest to finish
func (d *Digest) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	<-d.cron.Stop().Done()
	d.running = false
	d.logger.Info("Pending digest stopped")
}

// RunOnce counts pending products per region
func (d *Digest) RunOnce(ctx context.Context) (map[string]int, error) {
	products, err := d.catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	counts := make(map[string]int)
	total := 0
	for i := range products {
		if products[i].Verification.Status != catalog.StatusPending {
			continue
		}
		counts[d.region(&products[i])]++
		total++
	}
	d.metrics.SetPending(counts)

	regions := make([]string, 0, len(counts))
	for r := range counts {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	for _, r := range regions {
		d.logger.Info("Products awaiting verification", zap.String("region", r), zap.Int("pending", counts[r]))
	}
	d.logger.Info("Pending digest complete", zap.Int("pending", total), zap.Int("regions", len(counts)))
	return counts, nil
}
