package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_aggregator/internal/domain/entity"
)

func TestCollector(t *testing.T) {
	c := NewCollector("okx_cex", "funding")
	require.NoError(t, c.Add("btc", "0.1", "0.2"))
	require.NoError(t, c.Add("ETH", "0"))
	require.NoError(t, c.Add("BTC", ""))
	c.AddFloat("", 5)
	c.AddFloat("SOL", -1)

	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "BTC", records[0].Symbol)
	assert.InDelta(t, 0.3, records[0].Amount, 1e-12)
	assert.Equal(t, "okx_cex", records[0].Source)
	assert.Equal(t, "funding", records[0].AccountType)

	assert.Error(t, c.Add("ADA", "1,5"))
}

func TestSource(t *testing.T) {
	want := []entity.BalanceRecord{{Symbol: "BTC", Amount: 1, Source: "x"}}
	src := NewSource("Label", "spot", entity.PolicySwallow, func(context.Context) ([]entity.BalanceRecord, error) {
		return want, nil
	})

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "Label", src.Name())
	assert.Equal(t, "spot", src.Category())
	assert.Equal(t, entity.PolicySwallow, src.Policy())
}
