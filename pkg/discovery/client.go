package discovery

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/code-payments/content-purchase/pkg/metrics"
	"github.com/code-payments/content-purchase/pkg/purchase"
)

const (
	metricsStructName = "discovery.client"
)

// Client reads content gating and buyer access from a discovery node.
type Client struct {
	log        *logrus.Entry
	conf       *conf
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, configProvider ConfigProvider) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		log:        logrus.StandardLogger().WithField("type", "discovery/client"),
		conf:       configProvider(),
		httpClient: httpClient,
	}
}

// GetAccessInfo returns the gating of a track and the access buyerId holds
// for it.
func (c *Client) GetAccessInfo(ctx context.Context, contentId, buyerId string) (*purchase.ContentAccessInfo, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetAccessInfo")
	defer tracer.End()

	log := c.log.WithFields(logrus.Fields{
		"method":     "GetAccessInfo",
		"content_id": contentId,
		"buyer_id":   buyerId,
	})

	body, err := c.get(ctx, contentId, buyerId)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	info, err := parseAccessInfo(contentId, body)
	if errors.Is(err, purchase.ErrContentNotFound) {
		tracer.OnError(err)
		return nil, err
	} else if err != nil {
		log.WithError(err).Warn("discovery returned malformed access info")
		tracer.OnError(err)
		return nil, errors.Wrap(purchase.ErrNetworkFailure, err.Error())
	}
	return info, nil
}

func (c *Client) get(ctx context.Context, contentId, buyerId string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.conf.requestTimeout.Get(ctx))
	defer cancel()

	endpoint := fmt.Sprintf(
		"%stracks/%s/access-info?user_id=%s",
		c.conf.baseUrl.Get(ctx),
		url.PathEscape(contentId),
		url.QueryEscape(buyerId),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(purchase.ErrInvalidInstructionInput, err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(purchase.ErrNetworkFailure, "error executing http request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(purchase.ErrNetworkFailure, "error reading response body: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(purchase.ErrContentNotFound, "track %s", contentId)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Wrapf(purchase.ErrNetworkFailure, "received http status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func parseAccessInfo(contentId string, body []byte) (*purchase.ContentAccessInfo, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json")
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil, errors.Wrapf(purchase.ErrContentNotFound, "track %s", contentId)
	}

	streamConditions, err := parseGate(data.Get("stream_conditions"))
	if err != nil {
		return nil, errors.Wrap(err, "stream conditions")
	}
	downloadConditions, err := parseGate(data.Get("download_conditions"))
	if err != nil {
		return nil, errors.Wrap(err, "download conditions")
	}

	id := data.Get("id").String()
	if len(id) == 0 {
		id = contentId
	}

	return &purchase.ContentAccessInfo{
		ContentId:          id,
		ContentType:        purchase.ContentTypeTrack,
		OwnerId:            data.Get("user_id").String(),
		IsStreamGated:      data.Get("is_stream_gated").Bool(),
		IsDownloadGated:    data.Get("is_download_gated").Bool(),
		StreamConditions:   streamConditions,
		DownloadConditions: downloadConditions,
		Access: purchase.Access{
			Stream:   data.Get("access.stream").Bool(),
			Download: data.Get("access.download").Bool(),
		},
		BlockNumber: data.Get("blocknumber").Uint(),
	}, nil
}

// parseGate decodes one of the gate variants. Unrecognized variants are kept
// as a gate that cannot be purchased.
func parseGate(raw gjson.Result) (*purchase.AccessGate, error) {
	if !raw.Exists() || raw.Type == gjson.Null {
		return nil, nil
	}
	if !raw.IsObject() {
		return nil, errors.New("gate is not an object")
	}

	switch {
	case raw.Get("usdc_purchase").Exists():
		return parseUsdcPurchase(raw.Get("usdc_purchase"))
	case raw.Get("follow_user_id").Exists():
		return purchase.NewFollowGate(raw.Get("follow_user_id").String()), nil
	case raw.Get("tip_user_id").Exists():
		return purchase.NewTipGate(raw.Get("tip_user_id").String()), nil
	case raw.Get("nft_collection").Exists():
		return purchase.NewCollectibleGate(
			raw.Get("nft_collection.chain").String(),
			raw.Get("nft_collection.address").String(),
		), nil
	}
	return &purchase.AccessGate{Kind: purchase.GateKindNone}, nil
}

func parseUsdcPurchase(raw gjson.Result) (*purchase.AccessGate, error) {
	price := raw.Get("price")
	if !price.Exists() {
		return nil, errors.New("usdc purchase price is missing")
	}
	cents, err := parseUint(price)
	if err != nil {
		return nil, errors.Wrap(err, "invalid usdc purchase price")
	}

	var splits []purchase.RawSplit
	for i, split := range raw.Get("splits").Array() {
		parsed, err := parseSplit(split)
		if err != nil {
			return nil, errors.Wrapf(err, "split %d", i)
		}
		splits = append(splits, *parsed)
	}

	return purchase.NewUsdcPurchaseGate(cents, splits...), nil
}

func parseSplit(raw gjson.Result) (*purchase.RawSplit, error) {
	var amount uint64
	if rawAmount := raw.Get("amount"); rawAmount.Exists() {
		parsed, err := parseUint(rawAmount)
		if err != nil {
			return nil, errors.Wrap(err, "invalid amount")
		}
		amount = parsed
	}

	split := &purchase.RawSplit{
		UserId: raw.Get("user_id").String(),
		Amount: amount,
	}

	if percentage := raw.Get("percentage"); percentage.Exists() {
		parsed, err := decimal.NewFromString(percentage.String())
		if err != nil {
			return nil, errors.Wrap(err, "invalid percentage")
		}
		split.Percentage = parsed
	}

	if ethWallet := raw.Get("eth_wallet").String(); len(ethWallet) > 0 {
		if !common.IsHexAddress(ethWallet) {
			return nil, errors.Errorf("invalid eth wallet %q", ethWallet)
		}
		address := common.HexToAddress(ethWallet)
		split.EthWallet = &address
	}

	if payoutWallet := raw.Get("payout_wallet").String(); len(payoutWallet) > 0 {
		decoded, err := base58.Decode(payoutWallet)
		if err != nil || len(decoded) != ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid payout wallet %q", payoutWallet)
		}
		split.PayoutWallet = decoded
	}

	if split.EthWallet == nil && split.PayoutWallet == nil {
		return nil, errors.New("split has no destination")
	}
	return split, nil
}

// parseUint accepts only non-negative integral JSON numbers.
func parseUint(raw gjson.Result) (uint64, error) {
	if raw.Type != gjson.Number {
		return 0, errors.Errorf("%q is not a number", raw.Raw)
	}
	value, err := strconv.ParseUint(raw.Raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("%s is not a whole non-negative number", raw.Raw)
	}
	return value, nil
}
