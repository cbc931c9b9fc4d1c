package service

import (
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_aggregator/internal/domain/entity"
)

func quotes(prices map[string]float64) map[string]entity.PriceQuote {
	out := make(map[string]entity.PriceQuote, len(prices))
	for symbol, price := range prices {
		out[symbol] = entity.PriceQuote{Symbol: symbol, PriceUSD: price, Timestamp: 1}
	}
	return out
}

func TestBuildSummaries_DustBoundary(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		retained bool
	}{
		{name: "below threshold is dust", amount: 0.49, retained: false},
		{name: "above threshold is kept", amount: 0.51, retained: true},
		{name: "exactly threshold is kept", amount: 0.5, retained: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []entity.BalanceRecord{{Symbol: "XYZ", Amount: tt.amount, Source: "binance_cex", AccountType: "spot"}}
			summaries, total := BuildSummaries(records, quotes(map[string]float64{"XYZ": 2.0}), 1.0)
			if tt.retained {
				require.Len(t, summaries, 1)
				assert.InDelta(t, tt.amount*2.0, total, 1e-12)
				assert.InDelta(t, 100.0, summaries[0].Percentage, 1e-9)
			} else {
				assert.Empty(t, summaries)
				assert.Zero(t, total)
			}
		})
	}
}

func TestBuildSummaries_ZeroPriceIsRetained(t *testing.T) {
	records := []entity.BalanceRecord{
		{Symbol: "NEW", Amount: 0.0001, Source: "okx_cex", AccountType: "funding"},
		{Symbol: "BTC", Amount: 1, Source: "ledger_cold"},
	}
	summaries, total := BuildSummaries(records, quotes(map[string]float64{"BTC": 50000}), 1.0)

	require.Len(t, summaries, 2)
	assert.Equal(t, "BTC", summaries[0].Symbol)
	assert.Equal(t, "NEW", summaries[1].Symbol)
	assert.Zero(t, summaries[1].PriceUSD)
	assert.Zero(t, summaries[1].ValueUSD)
	assert.Zero(t, summaries[1].Percentage)
	assert.InDelta(t, 50000, total, 1e-9)
}

func TestBuildSummaries_MergesSourcesByAccountType(t *testing.T) {
	records := []entity.BalanceRecord{
		{Symbol: "BTC", Amount: 1, Source: "X", AccountType: "spot"},
		{Symbol: "BTC", Amount: 2, Source: "X", AccountType: "spot"},
		{Symbol: "BTC", Amount: 0.5, Source: "X", AccountType: "earn"},
	}
	summaries, _ := BuildSummaries(records, quotes(map[string]float64{"BTC": 10}), 1.0)

	require.Len(t, summaries, 1)
	assert.InDelta(t, 3.5, summaries[0].TotalAmount, 1e-12)
	assert.Equal(t, []entity.SourceAmount{
		{Source: "X", AccountType: "spot", Amount: 3},
		{Source: "X", AccountType: "earn", Amount: 0.5},
	}, summaries[0].Sources)
}

func TestBuildSummaries_SortAndPercentages(t *testing.T) {
	records := []entity.BalanceRecord{
		{Symbol: "ADA", Amount: 100, Source: "ledger_cold"},
		{Symbol: "ETH", Amount: 1, Source: "binance_cex", AccountType: "spot"},
		{Symbol: "USDT", Amount: 500, Source: "okx_cex", AccountType: "trading"},
	}
	prices := quotes(map[string]float64{"ADA": 0.5, "ETH": 1500, "USDT": 1})

	summaries, total := BuildSummaries(records, prices, 1.0)

	require.Len(t, summaries, 3)
	assert.Equal(t, []string{"ETH", "USDT", "ADA"}, []string{summaries[0].Symbol, summaries[1].Symbol, summaries[2].Symbol})
	assert.InDelta(t, 2050, total, 1e-9)
	assert.InDelta(t, 1500.0/2050*100, summaries[0].Percentage, 1e-9)
}

func TestBuildSummaries_TiesKeepFirstSeenOrder(t *testing.T) {
	records := []entity.BalanceRecord{
		{Symbol: "AAA", Amount: 10, Source: "s"},
		{Symbol: "BBB", Amount: 10, Source: "s"},
		{Symbol: "CCC", Amount: 10, Source: "s"},
	}
	summaries, _ := BuildSummaries(records, quotes(map[string]float64{"AAA": 1, "BBB": 1, "CCC": 1}), 1.0)

	require.Len(t, summaries, 3)
	assert.Equal(t, "AAA", summaries[0].Symbol)
	assert.Equal(t, "BBB", summaries[1].Symbol)
	assert.Equal(t, "CCC", summaries[2].Symbol)
}

func TestBuildSummaries_EmptyAndUnpricedTotals(t *testing.T) {
	summaries, total := BuildSummaries(nil, nil, 1.0)
	assert.Empty(t, summaries)
	assert.Zero(t, total)

	summaries, total = BuildSummaries([]entity.BalanceRecord{{Symbol: "ZZZ", Amount: 3, Source: "s"}}, nil, 1.0)
	require.Len(t, summaries, 1)
	assert.Zero(t, total)
	assert.Zero(t, summaries[0].Percentage)
}

func TestBuildSummaries_Idempotent(t *testing.T) {
	records := []entity.BalanceRecord{
		{Symbol: "BTC", Amount: 0.3, Source: "binance_cex", AccountType: "spot"},
		{Symbol: "ETH", Amount: 2, Source: "ledger_cold"},
		{Symbol: "BTC", Amount: 0.2, Source: "ledger_cold"},
	}
	prices := quotes(map[string]float64{"BTC": 60000, "ETH": 3000})

	first, firstTotal := BuildSummaries(records, prices, 1.0)
	second, secondTotal := BuildSummaries(records, prices, 1.0)

	assert.Equal(t, first, second)
	assert.Equal(t, firstTotal, secondTotal)
	assert.Len(t, records, 3)
	assert.Equal(t, 0.3, records[0].Amount)
}

var propertySymbols = []string{"BTC", "ETH", "ADA", "SOL", "DOGE"}

func recordsGen() gopter.Gen {
	return gen.SliceOf(gen.Struct(reflect.TypeOf(entity.BalanceRecord{}), map[string]gopter.Gen{
		"Symbol":      gen.OneConstOf("BTC", "ETH", "ADA", "SOL", "DOGE"),
		"Amount":      gen.Float64Range(0.000001, 1000),
		"Source":      gen.OneConstOf("binance_cex", "okx_cex", "ledger_cold"),
		"AccountType": gen.OneConstOf("", "spot", "earn_flexible", "funding"),
	}))
}

func pricesGen() gopter.Gen {
	return gen.SliceOfN(len(propertySymbols), gen.Float64Range(-20000, 80000).Map(func(v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}))
}

func priceMap(values []float64) map[string]entity.PriceQuote {
	raw := make(map[string]float64, len(values))
	for i, v := range values {
		raw[propertySymbols[i]] = v
	}
	return quotes(raw)
}

func TestBuildSummaries_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("percentages sum to 100 or are all zero", prop.ForAll(
		func(records []entity.BalanceRecord, values []float64) bool {
			summaries, total := BuildSummaries(records, priceMap(values), 1.0)
			var sum float64
			for _, s := range summaries {
				sum += s.Percentage
			}
			if total == 0 {
				return sum == 0
			}
			return sum >= 99.99 && sum <= 100.01
		},
		recordsGen(), pricesGen(),
	))

	properties.Property("value is amount times price", prop.ForAll(
		func(records []entity.BalanceRecord, values []float64) bool {
			summaries, _ := BuildSummaries(records, priceMap(values), 1.0)
			for _, s := range summaries {
				if math.Abs(s.ValueUSD-s.TotalAmount*s.PriceUSD) > 1e-9*math.Max(1, s.ValueUSD) {
					return false
				}
			}
			return true
		},
		recordsGen(), pricesGen(),
	))

	properties.Property("sources add up to the total amount", prop.ForAll(
		func(records []entity.BalanceRecord, values []float64) bool {
			summaries, _ := BuildSummaries(records, priceMap(values), 1.0)
			for _, s := range summaries {
				var sum float64
				for _, src := range s.Sources {
					sum += src.Amount
				}
				if math.Abs(sum-s.TotalAmount) > 1e-9*math.Max(1, s.TotalAmount) {
					return false
				}
			}
			return true
		},
		recordsGen(), pricesGen(),
	))

	properties.Property("record order does not change the summary set", prop.ForAll(
		func(records []entity.BalanceRecord, values []float64) bool {
			prices := priceMap(values)
			forward, forwardTotal := BuildSummaries(records, prices, 1.0)

			reversed := make([]entity.BalanceRecord, len(records))
			for i, r := range records {
				reversed[len(records)-1-i] = r
			}
			backward, backwardTotal := BuildSummaries(reversed, prices, 1.0)

			if len(forward) != len(backward) || math.Abs(forwardTotal-backwardTotal) > 1e-6*math.Max(1, forwardTotal) {
				return false
			}
			bySymbol := make(map[string]entity.AssetSummary, len(backward))
			for _, s := range backward {
				bySymbol[s.Symbol] = s
			}
			for _, s := range forward {
				other, ok := bySymbol[s.Symbol]
				if !ok || math.Abs(other.TotalAmount-s.TotalAmount) > 1e-9*math.Max(1, s.TotalAmount) {
					return false
				}
			}
			return true
		},
		recordsGen(), pricesGen(),
	))

	properties.TestingRun(t)
}
