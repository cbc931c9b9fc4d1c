package exchange

import (
	"context"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"
)

// FetchFunc queries one account type of an exchange.
type FetchFunc func(ctx context.Context) ([]entity.BalanceRecord, error)

// Source adapts a FetchFunc to port.BalanceSource.
type Source struct {
	name     string
	category string
	policy   entity.ErrorPolicy
	fetch    FetchFunc
}

var _ port.BalanceSource = (*Source)(nil)

// NewSource creates a new Source.
func NewSource(name, category string, policy entity.ErrorPolicy, fetch FetchFunc) *Source {
	return &Source{name: name, category: category, policy: policy, fetch: fetch}
}

func (s *Source) Name() string               { return s.name }
func (s *Source) Category() string           { return s.category }
func (s *Source) Policy() entity.ErrorPolicy { return s.policy }

func (s *Source) Fetch(ctx context.Context) ([]entity.BalanceRecord, error) {
	return s.fetch(ctx)
}

// Collector accumulates per-asset amounts in first-seen order and emits positive records only.
type Collector struct {
	sourceID    string
	accountType string
	order       []string
	amounts     map[string]float64
}

// NewCollector creates a Collector for one account type.
func NewCollector(sourceID, accountType string) *Collector {
	return &Collector{
		sourceID:    sourceID,
		accountType: accountType,
		amounts:     make(map[string]float64),
	}
}

// Add sums the given decimal strings and adds them to asset. Unparseable values are an error.
func (c *Collector) Add(asset string, values ...string) error {
	sum, err := utils.SumAmounts(values...)
	if err != nil {
		return err
	}
	c.AddFloat(asset, sum.InexactFloat64())
	return nil
}

// AddFloat adds amount to asset.
func (c *Collector) AddFloat(asset string, amount float64) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if asset == "" {
		return
	}
	if _, ok := c.amounts[asset]; !ok {
		c.order = append(c.order, asset)
	}
	c.amounts[asset] += amount
}

// Records returns the accumulated positive balances.
func (c *Collector) Records() []entity.BalanceRecord {
	records := make([]entity.BalanceRecord, 0, len(c.order))
	for _, asset := range c.order {
		amount := c.amounts[asset]
		if amount <= 0 {
			continue
		}
		records = append(records, entity.BalanceRecord{
			Symbol:      asset,
			Amount:      amount,
			Source:      c.sourceID,
			AccountType: c.accountType,
		})
	}
	return records
}
