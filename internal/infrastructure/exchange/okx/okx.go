package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/exchange"
	"portfolio_aggregator/internal/infrastructure/httpclient"
)

// Account types reported by the OKX adapter.
const (
	AccountTrading = "trading"
	AccountFunding = "funding"
	AccountSavings = "savings"
	AccountStaking = "staking"
)

const (
	tradingPath = "/api/v5/account/balance"
	fundingPath = "/api/v5/asset/balances"
	savingsPath = "/api/v5/finance/savings/balance"
	stakingPath = "/api/v5/finance/staking-defi/orders-active"

	timestampLayout = "2006-01-02T15:04:05.000Z"
	successCode     = "0"
)

// OKX error codes that mean the request was throttled.
var rateLimitCodes = map[string]struct{}{"50011": {}, "50061": {}}

type envelope struct {
	Code string              `json:"code"`
	Msg  string              `json:"msg"`
	Data jsoniter.RawMessage `json:"data"`
}

type tradingAccount struct {
	Details []struct {
		Ccy     string `json:"ccy"`
		CashBal string `json:"cashBal"`
	} `json:"details"`
}

type fundingBalance struct {
	Ccy       string `json:"ccy"`
	AvailBal  string `json:"availBal"`
	FrozenBal string `json:"frozenBal"`
}

type savingsBalance struct {
	Ccy string `json:"ccy"`
	Amt string `json:"amt"`
}

type stakingOrder struct {
	Ccy        string `json:"ccy"`
	InvestData []struct {
		Ccy string `json:"ccy"`
		Amt string `json:"amt"`
	} `json:"investData"`
}

// Client queries every OKX account type of one credential.
type Client struct {
	sourceID   string
	label      string
	apiKey     string
	secret     string
	passphrase string
	baseURL    string
	http       *httpclient.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates an OKX adapter for the given credential.
func NewClient(
	sourceID, label string,
	cred entity.Credential,
	cfg configloader.OKXConfig,
	http *httpclient.Client,
	logger *zap.Logger,
) (*Client, error) {
	if cred.APIKey == "" || cred.Secret == "" {
		return nil, errors.New("okx credential requires an API key and a secret")
	}
	if cred.Passphrase == "" {
		return nil, errors.New("okx credential requires a passphrase")
	}
	return &Client{
		sourceID:   sourceID,
		label:      label,
		apiKey:     cred.APIKey,
		secret:     cred.Secret,
		passphrase: cred.Passphrase,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       http,
		logger:     logger.Named("OKX").With(zap.String("source", sourceID)),
		now:        time.Now,
	}, nil
}

// Sources returns one balance source per account type.
func (c *Client) Sources() []port.BalanceSource {
	return []port.BalanceSource{
		exchange.NewSource(c.label, AccountTrading, entity.PolicySurface, c.fetchTrading),
		exchange.NewSource(c.label, AccountFunding, entity.PolicySurface, c.fetchFunding),
		exchange.NewSource(c.label, AccountSavings, entity.PolicySwallow, c.fetchSavings),
		exchange.NewSource(c.label, AccountStaking, entity.PolicySwallow, c.fetchStaking),
	}
}

func (c *Client) fetchTrading(ctx context.Context) ([]entity.BalanceRecord, error) {
	var accounts []tradingAccount
	if err := c.get(ctx, tradingPath, &accounts); err != nil {
		return nil, err
	}
	collector := exchange.NewCollector(c.sourceID, AccountTrading)
	for _, account := range accounts {
		for _, d := range account.Details {
			if err := collector.Add(d.Ccy, d.CashBal); err != nil {
				return nil, errors.Wrapf(entity.ErrDecode, "trading balance %s: %v", d.Ccy, err)
			}
		}
	}
	return collector.Records(), nil
}

func (c *Client) fetchFunding(ctx context.Context) ([]entity.BalanceRecord, error) {
	var balances []fundingBalance
	if err := c.get(ctx, fundingPath, &balances); err != nil {
		return nil, err
	}
	collector := exchange.NewCollector(c.sourceID, AccountFunding)
	for _, b := range balances {
		if err := collector.Add(b.Ccy, b.AvailBal, b.FrozenBal); err != nil {
			return nil, errors.Wrapf(entity.ErrDecode, "funding balance %s: %v", b.Ccy, err)
		}
	}
	return collector.Records(), nil
}

func (c *Client) fetchSavings(ctx context.Context) ([]entity.BalanceRecord, error) {
	var balances []savingsBalance
	if err := c.get(ctx, savingsPath, &balances); err != nil {
		return nil, err
	}
	collector := exchange.NewCollector(c.sourceID, AccountSavings)
	for _, b := range balances {
		if err := collector.Add(b.Ccy, b.Amt); err != nil {
			return nil, errors.Wrapf(entity.ErrDecode, "savings balance %s: %v", b.Ccy, err)
		}
	}
	return collector.Records(), nil
}

func (c *Client) fetchStaking(ctx context.Context) ([]entity.BalanceRecord, error) {
	var orders []stakingOrder
	if err := c.get(ctx, stakingPath, &orders); err != nil {
		return nil, err
	}
	collector := exchange.NewCollector(c.sourceID, AccountStaking)
	for _, order := range orders {
		for _, invest := range order.InvestData {
			ccy := invest.Ccy
			if ccy == "" {
				ccy = order.Ccy
			}
			if err := collector.Add(ccy, invest.Amt); err != nil {
				return nil, errors.Wrapf(entity.ErrDecode, "staking order %s: %v", ccy, err)
			}
		}
	}
	return collector.Records(), nil
}

// get performs a signed GET and unwraps the {code,msg,data} envelope into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	ts := c.now().UTC().Format(timestampLayout)
	header := map[string]string{
		"OK-ACCESS-KEY":        c.apiKey,
		"OK-ACCESS-SIGN":       sign(c.secret, ts+"GET"+path),
		"OK-ACCESS-TIMESTAMP":  ts,
		"OK-ACCESS-PASSPHRASE": c.passphrase,
	}

	body, err := c.http.Do(ctx, httpclient.Request{Method: "GET", URL: c.baseURL + path, Header: header})
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			var env envelope
			if httpclient.Decode([]byte(statusErr.Body), &env) == nil && env.Msg != "" {
				return envelopeError(env, statusErr.StatusCode == 429)
			}
		}
		return err
	}

	var env envelope
	if err := httpclient.Decode(body, &env); err != nil {
		return err
	}
	if env.Code != successCode {
		return envelopeError(env, false)
	}
	if len(env.Data) == 0 {
		return nil
	}
	return httpclient.Decode(env.Data, out)
}

func envelopeError(env envelope, throttled bool) error {
	msg := env.Msg
	if msg == "" {
		msg = "code " + env.Code
	}
	if _, ok := rateLimitCodes[env.Code]; ok || throttled {
		return errors.Wrap(entity.ErrRateLimited, msg)
	}
	return errors.New(msg)
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
