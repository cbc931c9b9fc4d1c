package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/delivery"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/exchange"
	"portfolio_aggregator/internal/infrastructure/httpclient"
)

// Account types reported by the Binance adapter.
const (
	AccountSpot         = "spot"
	AccountFunding      = "funding"
	AccountEarnFlexible = "earn_flexible"
	AccountEarnLocked   = "earn_locked"
	AccountFuturesUSDT  = "futures_usdt"
	AccountFuturesCoin  = "futures_coin"
)

const (
	fundingPath      = "/sapi/v1/asset/get-funding-asset"
	flexibleEarnPath = "/sapi/v1/simple-earn/flexible/position"
	lockedEarnPath   = "/sapi/v1/simple-earn/locked/position"
	earnPageSize     = "100"
)

type fundingAsset struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
	Freeze string `json:"freeze"`
}

type flexiblePositions struct {
	Rows []struct {
		Asset       string `json:"asset"`
		TotalAmount string `json:"totalAmount"`
	} `json:"rows"`
	Total int `json:"total"`
}

type lockedPositions struct {
	Rows []struct {
		Asset  string `json:"asset"`
		Amount string `json:"amount"`
	} `json:"rows"`
	Total int `json:"total"`
}

type apiErrorBody struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

// Client queries every Binance account type of one credential.
type Client struct {
	sourceID string
	label    string
	apiKey   string
	secret   string
	baseURL  string

	spot     *binance.Client
	futures  *futures.Client
	delivery *delivery.Client
	http     *httpclient.Client
	logger   *zap.Logger
	now      func() time.Time
}

// NewClient creates a Binance adapter for the given credential.
func NewClient(
	sourceID, label string,
	cred entity.Credential,
	cfg configloader.BinanceConfig,
	http *httpclient.Client,
	sdkHTTP *stdhttp.Client,
	logger *zap.Logger,
) (*Client, error) {
	if cred.APIKey == "" || cred.Secret == "" {
		return nil, errors.New("binance credential requires an API key and a secret")
	}

	spot := binance.NewClient(cred.APIKey, cred.Secret)
	spot.BaseURL = strings.TrimRight(cfg.SpotBaseURL, "/")
	fut := binance.NewFuturesClient(cred.APIKey, cred.Secret)
	fut.BaseURL = strings.TrimRight(cfg.FuturesBaseURL, "/")
	dlv := binance.NewDeliveryClient(cred.APIKey, cred.Secret)
	dlv.BaseURL = strings.TrimRight(cfg.DeliveryBaseURL, "/")
	if sdkHTTP != nil {
		spot.HTTPClient = sdkHTTP
		fut.HTTPClient = sdkHTTP
		dlv.HTTPClient = sdkHTTP
	}

	return &Client{
		sourceID: sourceID,
		label:    label,
		apiKey:   cred.APIKey,
		secret:   cred.Secret,
		baseURL:  spot.BaseURL,
		spot:     spot,
		futures:  fut,
		delivery: dlv,
		http:     http,
		logger:   logger.Named("Binance").With(zap.String("source", sourceID)),
		now:      time.Now,
	}, nil
}

// Sources returns one balance source per account type.
func (c *Client) Sources() []port.BalanceSource {
	return []port.BalanceSource{
		exchange.NewSource(c.label, AccountSpot, entity.PolicySurface, c.fetchSpot),
		exchange.NewSource(c.label, AccountFunding, entity.PolicySurface, c.fetchFunding),
		exchange.NewSource(c.label, AccountEarnFlexible, entity.PolicySwallow, c.fetchFlexibleEarn),
		exchange.NewSource(c.label, AccountEarnLocked, entity.PolicySwallow, c.fetchLockedEarn),
		exchange.NewSource(c.label, AccountFuturesUSDT, entity.PolicySurface, c.fetchFuturesUSDT),
		exchange.NewSource(c.label, AccountFuturesCoin, entity.PolicySurface, c.fetchFuturesCoin),
	}
}

func (c *Client) fetchSpot(ctx context.Context) ([]entity.BalanceRecord, error) {
	account, err := c.spot.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	collector := exchange.NewCollector(c.sourceID, AccountSpot)
	for _, b := range account.Balances {
		if err := collector.Add(b.Asset, b.Free, b.Locked); err != nil {
			return nil, errors.Wrapf(entity.ErrDecode, "spot balance %s: %v", b.Asset, err)
		}
	}
	return collector.Records(), nil
}

func (c *Client) fetchFunding(ctx context.Context) ([]entity.BalanceRecord, error) {
	body, err := c.http.Do(ctx, httpclient.Request{
		Method: "POST",
		URL:    c.signedURL(fundingPath, url.Values{}),
		Header: c.authHeader(),
	})
	if err != nil {
		return nil, apiError(err)
	}
	var assets []fundingAsset
	if err := httpclient.Decode(body, &assets); err != nil {
		return nil, err
	}
	collector := exchange.NewCollector(c.sourceID, AccountFunding)
	for _, a := range assets {
		if err := collector.Add(a.Asset, a.Free, a.Locked, a.Freeze); err != nil {
			return nil, errors.Wrapf(entity.ErrDecode, "funding balance %s: %v", a.Asset, err)
		}
	}
	return collector.Records(), nil
}

func (c *Client) fetchFlexibleEarn(ctx context.Context) ([]entity.BalanceRecord, error) {
	var positions flexiblePositions
	if err := c.signedGet(ctx, flexibleEarnPath, url.Values{"size": {earnPageSize}}, &positions); err != nil {
		return nil, err
	}
	collector := exchange.NewCollector(c.sourceID, AccountEarnFlexible)
	for _, row := range positions.Rows {
		if err := collector.Add(row.Asset, row.TotalAmount); err != nil {
			return nil, errors.Wrapf(entity.ErrDecode, "flexible position %s: %v", row.Asset, err)
		}
	}
	return collector.Records(), nil
}

func (c *Client) fetchLockedEarn(ctx context.Context) ([]entity.BalanceRecord, error) {
	var positions lockedPositions
	if err := c.signedGet(ctx, lockedEarnPath, url.Values{"size": {earnPageSize}}, &positions); err != nil {
		return nil, err
	}
	collector := exchange.NewCollector(c.sourceID, AccountEarnLocked)
	for _, row := range positions.Rows {
		if err := collector.Add(row.Asset, row.Amount); err != nil {
			return nil, errors.Wrapf(entity.ErrDecode, "locked position %s: %v", row.Asset, err)
		}
	}
	return collector.Records(), nil
}

func (c *Client) fetchFuturesUSDT(ctx context.Context) ([]entity.BalanceRecord, error) {
	balances, err := c.futures.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	collector := exchange.NewCollector(c.sourceID, AccountFuturesUSDT)
	for _, b := range balances {
		if err := collector.Add(b.Asset, b.Balance); err != nil {
			return nil, errors.Wrapf(entity.ErrDecode, "futures balance %s: %v", b.Asset, err)
		}
	}
	return collector.Records(), nil
}

func (c *Client) fetchFuturesCoin(ctx context.Context) ([]entity.BalanceRecord, error) {
	balances, err := c.delivery.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	collector := exchange.NewCollector(c.sourceID, AccountFuturesCoin)
	for _, b := range balances {
		if err := collector.Add(b.Asset, b.Balance); err != nil {
			return nil, errors.Wrapf(entity.ErrDecode, "delivery balance %s: %v", b.Asset, err)
		}
	}
	return collector.Records(), nil
}

func (c *Client) signedGet(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.http.Do(ctx, httpclient.Request{
		Method: "GET",
		URL:    c.signedURL(path, params),
		Header: c.authHeader(),
	})
	if err != nil {
		return apiError(err)
	}
	return httpclient.Decode(body, out)
}

// signedURL appends timestamp and the hex HMAC-SHA256 signature of the query string.
func (c *Client) signedURL(path string, params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	query := params.Encode()
	return fmt.Sprintf("%s%s?%s&signature=%s", c.baseURL, path, query, sign(c.secret, query))
}

func (c *Client) authHeader() map[string]string {
	return map[string]string{"X-MBX-APIKEY": c.apiKey}
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// apiError reduces SDK and REST failures to the message Binance returned.
func apiError(err error) error {
	var sdkErr *common.APIError
	if errors.As(err, &sdkErr) {
		return errors.New(sdkErr.Message)
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		var body apiErrorBody
		msg := statusErr.Error()
		if httpclient.Decode([]byte(statusErr.Body), &body) == nil && body.Msg != "" {
			msg = body.Msg
		}
		if statusErr.StatusCode == 429 || statusErr.StatusCode == 418 {
			return errors.Wrap(entity.ErrRateLimited, msg)
		}
		return errors.New(msg)
	}
	return err
}
