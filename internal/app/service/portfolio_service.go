package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/pkg/metrics"
	"portfolio_aggregator/internal/pkg/utils"
)

const (
	catastrophicPrefix = "refresh failed"
	setupCategory      = "setup"
	rateLimitHint      = "rate limited, consider adding an API key"
	refreshFlightKey   = "refresh"
)

var _ port.PortfolioService = (*PortfolioServiceImpl)(nil)

// sourceTask is one unit of the fan-out.
type sourceTask struct {
	source    port.BalanceSource
	wallet    bool
	hasAPIKey bool
}

// walletSource resolves the chain adapter of a wallet when the task runs.
type walletSource struct {
	provider port.SourceProvider
	wallet   entity.WalletAddress
	apiKey   string
}

func (w *walletSource) Name() string               { return w.wallet.Source }
func (w *walletSource) Category() string           { return w.wallet.Chain }
func (w *walletSource) Policy() entity.ErrorPolicy { return entity.PolicySurface }

func (w *walletSource) Fetch(ctx context.Context) ([]entity.BalanceRecord, error) {
	src, err := w.provider.WalletSource(w.wallet, w.apiKey)
	if err != nil {
		return nil, err
	}
	return src.Fetch(ctx)
}

type taskOutcome struct {
	records []entity.BalanceRecord
	err     error
}

// PortfolioServiceImpl implements port.PortfolioService.
type PortfolioServiceImpl struct {
	credentials           port.CredentialRegistry
	wallets               port.WalletRegistry
	sources               port.SourceProvider
	prices                port.PriceOracle
	logger                port.Logger
	dustThresholdUSD      float64
	maxConcurrentRoutines int
	now                   func() time.Time

	flight  singleflight.Group
	loading atomic.Bool

	mu          sync.RWMutex
	records     []entity.BalanceRecord
	priceMap    map[string]entity.PriceQuote
	errors      []string
	lastUpdated *int64
}

// NewPortfolioService creates a new instance of PortfolioServiceImpl.
func NewPortfolioService(
	cr port.CredentialRegistry,
	wr port.WalletRegistry,
	sp port.SourceProvider,
	po port.PriceOracle,
	l port.Logger,
	cfg *configloader.Config,
) *PortfolioServiceImpl {
	maxRoutines := cfg.Performance.MaxConcurrentRoutines
	if maxRoutines <= 0 {
		maxRoutines = 1
	}
	return &PortfolioServiceImpl{
		credentials:           cr,
		wallets:               wr,
		sources:               sp,
		prices:                po,
		logger:                l,
		dustThresholdUSD:      cfg.Portfolio.DustThreshold(),
		maxConcurrentRoutines: maxRoutines,
		now:                   time.Now,
		priceMap:              make(map[string]entity.PriceQuote),
		errors:                []string{},
	}
}

// Refresh runs one aggregation pass. Concurrent callers share the pass already in flight.
func (s *PortfolioServiceImpl) Refresh(ctx context.Context) {
	_, _, _ = s.flight.Do(refreshFlightKey, func() (any, error) {
		s.runPass(ctx)
		return nil, nil
	})
}

func (s *PortfolioServiceImpl) runPass(ctx context.Context) {
	s.loading.Store(true)
	defer s.loading.Store(false)

	passID := uuid.NewString()
	started := s.now()
	s.logger.Info("Portfolio refresh started", "pass_id", passID)

	var errs []string
	records, prices, err := s.collectSafely(ctx, passID, &errs)

	s.mu.Lock()
	if err != nil {
		errs = append(errs, fmt.Sprintf("%s: %s", catastrophicPrefix, utils.SanitizeMessage(err.Error())))
	} else {
		s.records = records
		s.priceMap = prices
		ts := s.now().UnixMilli()
		s.lastUpdated = &ts
	}
	if errs == nil {
		errs = []string{}
	}
	s.errors = errs
	currentRecords, currentPrices := s.records, s.priceMap
	s.mu.Unlock()

	elapsed := s.now().Sub(started)
	metrics.RefreshDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("catastrophic").Inc()
		s.logger.Error("Portfolio refresh aborted", "pass_id", passID, "error", err)
		return
	}

	_, total := BuildSummaries(currentRecords, currentPrices, s.dustThresholdUSD)
	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	metrics.PortfolioValueUSD.Set(total)
	s.logger.Info("Portfolio refresh finished",
		"pass_id", passID,
		"records", len(records),
		"errors", len(errs),
		"total_value_usd", total,
		"elapsed", elapsed.String())
}

// collectSafely turns a panic outside the per-source boundaries into a catastrophic error.
func (s *PortfolioServiceImpl) collectSafely(
	ctx context.Context,
	passID string,
	errs *[]string,
) (records []entity.BalanceRecord, prices map[string]entity.PriceQuote, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, prices = nil, nil
			err = fmt.Errorf("unexpected panic: %v", r)
		}
	}()
	return s.collect(ctx, passID, errs)
}

func (s *PortfolioServiceImpl) collect(
	ctx context.Context,
	passID string,
	errs *[]string,
) ([]entity.BalanceRecord, map[string]entity.PriceQuote, error) {
	tasks, err := s.planTasks(errs)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug("Fan-out planned", "pass_id", passID, "tasks", len(tasks))

	outcomes := s.runTasks(ctx, tasks)

	records := make([]entity.BalanceRecord, 0)
	for i, outcome := range outcomes {
		if outcome.err != nil {
			s.reportFailure(tasks[i], outcome.err, errs)
			continue
		}
		records = append(records, outcome.records...)
	}

	prices := make(map[string]entity.PriceQuote)
	symbols := distinctSymbols(records)
	if len(symbols) > 0 {
		prices = s.prices.GetPrices(ctx, symbols)
		if prices == nil {
			prices = make(map[string]entity.PriceQuote)
		}
		for _, symbol := range symbols {
			if _, ok := prices[symbol]; !ok {
				s.logger.Warn("No price found, asset is valued at zero", "pass_id", passID, "symbol", symbol)
			}
		}
	}
	return records, prices, nil
}

// planTasks reads both registries and builds the fan-out. Registry read failures are catastrophic;
// an exchange that cannot be built is reported and skipped. Wallet adapters are built inside their
// task, so a chain client that is slow to dial only delays its own wallet.
func (s *PortfolioServiceImpl) planTasks(errs *[]string) ([]sourceTask, error) {
	refs, err := s.credentials.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	tasks := make([]sourceTask, 0)
	for _, ref := range refs {
		cred := s.credentials.GetDecrypted(ref.SourceID)
		if cred == nil {
			s.logger.Debug("Credential unavailable, skipping source", "source", ref.SourceID)
			continue
		}
		sources, err := s.sources.ExchangeSources(ref, *cred)
		if err != nil {
			*errs = append(*errs, entity.SourceError{
				Label:    labelOf(ref),
				Category: setupCategory,
				Message:  utils.SanitizeMessage(err.Error()),
			}.String())
			continue
		}
		for _, src := range sources {
			tasks = append(tasks, sourceTask{source: src})
		}
	}

	wallets, err := s.wallets.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	for _, w := range wallets {
		apiKey := ""
		if w.HasAPIKey {
			apiKey = s.wallets.GetAPIKey(w.ID)
		}
		src := &walletSource{provider: s.sources, wallet: w, apiKey: apiKey}
		tasks = append(tasks, sourceTask{source: src, wallet: true, hasAPIKey: w.HasAPIKey})
	}
	return tasks, nil
}

// runTasks waits for every task; outcomes keep task order regardless of completion order.
func (s *PortfolioServiceImpl) runTasks(ctx context.Context, tasks []sourceTask) []taskOutcome {
	outcomes := make([]taskOutcome, len(tasks))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrentRoutines)
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = s.fetch(ctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *PortfolioServiceImpl) fetch(ctx context.Context, task sourceTask) (outcome taskOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = taskOutcome{err: fmt.Errorf("adapter panic: %v", r)}
		}
	}()
	records, err := task.source.Fetch(ctx)
	if err != nil {
		return taskOutcome{err: err}
	}
	return taskOutcome{records: records}
}

func (s *PortfolioServiceImpl) reportFailure(task sourceTask, err error, errs *[]string) {
	src := task.source
	policy := src.Policy()
	metrics.SourceFailures.WithLabelValues(src.Name(), src.Category(), policy.String()).Inc()

	if policy == entity.PolicySwallow {
		s.logger.Debug("Supplementary source failed, ignoring",
			"source", src.Name(), "category", src.Category(), "error", err)
		return
	}

	if task.wallet && errors.Is(err, entity.ErrRateLimited) {
		if task.hasAPIKey {
			s.logger.Warn("Source throttled despite API key",
				"source", src.Name(), "category", src.Category(), "error", err)
			return
		}
		*errs = append(*errs, entity.SourceError{Label: src.Name(), Category: src.Category(), Message: rateLimitHint}.String())
		return
	}

	s.logger.Warn("Source fetch failed", "source", src.Name(), "category", src.Category(), "error", err)
	*errs = append(*errs, entity.SourceError{
		Label:    src.Name(),
		Category: src.Category(),
		Message:  utils.SanitizeMessage(err.Error()),
	}.String())
}

// Snapshot implements port.PortfolioService.
func (s *PortfolioServiceImpl) Snapshot() entity.PortfolioSnapshot {
	s.mu.RLock()
	records, prices := s.records, s.priceMap
	errs := append([]string{}, s.errors...)
	var lastUpdated *int64
	if s.lastUpdated != nil {
		ts := *s.lastUpdated
		lastUpdated = &ts
	}
	s.mu.RUnlock()

	summaries, total := BuildSummaries(records, prices, s.dustThresholdUSD)
	return entity.PortfolioSnapshot{
		AssetSummaries: summaries,
		TotalValueUSD:  total,
		Errors:         errs,
		LastUpdated:    lastUpdated,
		IsLoading:      s.loading.Load(),
	}
}

// Records implements port.PortfolioService.
func (s *PortfolioServiceImpl) Records() []entity.BalanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.BalanceRecord{}, s.records...)
}

// Clear implements port.PortfolioService.
func (s *PortfolioServiceImpl) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.priceMap = make(map[string]entity.PriceQuote)
	s.errors = []string{}
	s.lastUpdated = nil
	metrics.PortfolioValueUSD.Set(0)
	s.logger.Info("Portfolio state cleared")
}

func labelOf(ref entity.CredentialRef) string {
	if ref.Label != "" {
		return ref.Label
	}
	return ref.SourceID
}
