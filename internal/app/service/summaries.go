package service

import (
	"sort"

	"portfolio_aggregator/internal/domain/entity"
)

// BuildSummaries groups records by symbol, values them with prices and drops dust.
//
// A summary is dust when its value is below dustThresholdUSD and its price is known (non-zero);
// unpriced assets are always kept. The total and the percentages are computed over the
// retained summaries only. The result is sorted by value, descending; ties keep the
// order in which symbols were first seen. The function has no side effects.
func BuildSummaries(
	records []entity.BalanceRecord,
	prices map[string]entity.PriceQuote,
	dustThresholdUSD float64,
) ([]entity.AssetSummary, float64) {
	order := make([]string, 0)
	groups := make(map[string]*entity.AssetSummary)

	for _, r := range records {
		summary, ok := groups[r.Symbol]
		if !ok {
			summary = &entity.AssetSummary{Symbol: r.Symbol, Sources: []entity.SourceAmount{}}
			groups[r.Symbol] = summary
			order = append(order, r.Symbol)
		}
		summary.TotalAmount += r.Amount
		mergeSource(summary, r)
	}

	retained := make([]entity.AssetSummary, 0, len(order))
	var totalValueUSD float64
	for _, symbol := range order {
		summary := groups[symbol]
		if quote, ok := prices[symbol]; ok {
			summary.PriceUSD = quote.PriceUSD
		}
		summary.ValueUSD = summary.TotalAmount * summary.PriceUSD

		if summary.PriceUSD != 0 && summary.ValueUSD < dustThresholdUSD {
			continue
		}
		totalValueUSD += summary.ValueUSD
		retained = append(retained, *summary)
	}

	if totalValueUSD > 0 {
		for i := range retained {
			retained[i].Percentage = retained[i].ValueUSD / totalValueUSD * 100
		}
	}

	sort.SliceStable(retained, func(i, j int) bool {
		return retained[i].ValueUSD > retained[j].ValueUSD
	})
	return retained, totalValueUSD
}

func mergeSource(summary *entity.AssetSummary, r entity.BalanceRecord) {
	for i := range summary.Sources {
		if summary.Sources[i].Source == r.Source && summary.Sources[i].AccountType == r.AccountType {
			summary.Sources[i].Amount += r.Amount
			return
		}
	}
	summary.Sources = append(summary.Sources, entity.SourceAmount{
		Source:      r.Source,
		AccountType: r.AccountType,
		Amount:      r.Amount,
	})
}

// distinctSymbols returns the symbols present in records in first-seen order.
func distinctSymbols(records []entity.BalanceRecord) []string {
	seen := make(map[string]struct{}, len(records))
	symbols := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.Symbol]; ok {
			continue
		}
		seen[r.Symbol] = struct{}{}
		symbols = append(symbols, r.Symbol)
	}
	return symbols
}
