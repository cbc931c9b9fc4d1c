package entity

// PriceQuote holds a resolved USD unit price.
type PriceQuote struct {
	Symbol    string  `json:"symbol"`
	PriceUSD  float64 `json:"priceUSD"`
	Timestamp int64   `json:"timestamp"` // fetch time, epoch ms
}
