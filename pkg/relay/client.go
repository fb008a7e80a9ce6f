package relay

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/content-purchase/pkg/metrics"
	"github.com/code-payments/content-purchase/pkg/retry"
	"github.com/code-payments/content-purchase/pkg/retry/backoff"
	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/memo"
)

const (
	feePayerEndpointName = "feePayer"
	locationEndpointName = "location"
	relayEndpointName    = "relay"

	locationMemoPrefix = "geo:"

	metricsStructName = "relay.client"
)

var (
	// ErrUnavailable is returned when the relay could not be reached or
	// failed to handle the request.
	ErrUnavailable = errors.New("relay unavailable")

	// ErrRejected is returned when the relay refused the request.
	ErrRejected = errors.New("relay rejected request")
)

// Client talks to a relay that pays for, countersigns and broadcasts
// transactions on behalf of users.
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
		log:        logrus.StandardLogger().WithField("type", "relay/client"),
		conf:       configProvider(),
		httpClient: httpClient,
	}
}

// Location is the coarse geolocation the relay resolves for the caller.
type Location struct {
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

type jsonFeePayer struct {
	FeePayer string `json:"feePayer"`
}

type jsonRelayRequest struct {
	Transaction string `json:"transaction"`
}

type jsonRelayResponse struct {
	Signature string `json:"signature"`
}

type jsonError struct {
	Error string `json:"error"`

	// Code is the solana transaction error key when the transaction was
	// rejected by the cluster.
	Code string `json:"code,omitempty"`
}

// GetFeePayer returns the account the relay will pay transaction fees from.
func (c *Client) GetFeePayer(ctx context.Context) (ed25519.PublicKey, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetFeePayer")
	defer tracer.End()

	var resp jsonFeePayer
	if err := c.do(ctx, http.MethodGet, feePayerEndpointName, nil, &resp); err != nil {
		tracer.OnError(err)
		return nil, err
	}

	decoded, err := base58.Decode(resp.FeePayer)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		err = errors.Wrapf(ErrUnavailable, "invalid fee payer %q", resp.FeePayer)
		tracer.OnError(err)
		return nil, err
	}
	return decoded, nil
}

// GetLocation returns the caller's location as resolved by the relay.
func (c *Client) GetLocation(ctx context.Context) (*Location, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetLocation")
	defer tracer.End()

	var resp Location
	if err := c.do(ctx, http.MethodGet, locationEndpointName, nil, &resp); err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return &resp, nil
}

// GetLocationInstruction returns a memo recording the caller's location.
func (c *Client) GetLocationInstruction(ctx context.Context) (solana.Instruction, error) {
	location, err := c.GetLocation(ctx)
	if err != nil {
		return solana.Instruction{}, err
	}
	return LocationMemo(location)
}

// LocationMemo encodes location as a memo v2 instruction.
func LocationMemo(location *Location) (solana.Instruction, error) {
	encoded, err := json.Marshal(location)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "error marshalling location")
	}
	return memo.InstructionV2(locationMemoPrefix + string(encoded)), nil
}

// ParseLocationMemo is the inverse of LocationMemo.
func ParseLocationMemo(data string) (*Location, error) {
	if !strings.HasPrefix(data, locationMemoPrefix) {
		return nil, errors.New("not a location memo")
	}

	var location Location
	if err := json.Unmarshal([]byte(strings.TrimPrefix(data, locationMemoPrefix)), &location); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling location")
	}
	return &location, nil
}

// Send has the relay sign txn as fee payer and broadcast it.
func (c *Client) Send(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Send")
	defer tracer.End()

	if len(txn.Message.Accounts) == 0 {
		err := errors.Wrap(ErrRejected, "transaction has no accounts")
		tracer.OnError(err)
		return solana.Signature{}, err
	}

	log := c.log.WithFields(logrus.Fields{
		"method":    "Send",
		"fee_payer": base58.Encode(txn.Message.Accounts[0]),
	})

	body, err := json.Marshal(&jsonRelayRequest{Transaction: txn.ToBase64()})
	if err != nil {
		tracer.OnError(err)
		return solana.Signature{}, errors.Wrap(err, "error marshalling request")
	}

	var resp jsonRelayResponse
	if err := c.do(ctx, http.MethodPost, relayEndpointName, body, &resp); err != nil {
		log.WithError(err).Warn("relay did not accept transaction")
		tracer.OnError(err)
		return solana.Signature{}, err
	}

	decoded, err := base58.Decode(resp.Signature)
	if err != nil || len(decoded) != ed25519.SignatureSize {
		err = errors.Wrapf(ErrUnavailable, "invalid signature %q", resp.Signature)
		tracer.OnError(err)
		return solana.Signature{}, err
	}

	var sig solana.Signature
	copy(sig[:], decoded)

	log.WithField("signature", sig.String()).Debug("transaction relayed")
	return sig, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, dst interface{}) error {
	maxRetries := c.conf.maxRetries.Get(ctx)

	_, err := retry.Retry(
		func() error {
			return c.doOnce(ctx, method, endpoint, body, dst)
		},
		retry.Context(ctx),
		retry.Limit(uint(maxRetries)+1),
		retry.RetriableErrors(ErrUnavailable),
		retry.BackoffWithJitter(backoff.BinaryExponential(100*time.Millisecond), time.Second, 0.1),
	)
	return err
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte, dst interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.conf.requestTimeout.Get(ctx))
	defer cancel()

	url := fmt.Sprintf("%s%s", c.conf.baseUrl.Get(ctx), endpoint)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, "error creating http request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "error executing http request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, dst); err != nil {
		return errors.Wrapf(ErrUnavailable, "error unmarshalling json response: %v", err)
	}
	return nil
}

// statusError maps a non 200 response. Cluster rejections keep their
// transaction error so callers can detect expired blockhashes.
func statusError(status int, body []byte) error {
	var parsed jsonError
	_ = json.Unmarshal(body, &parsed)

	message := parsed.Error
	if len(message) == 0 {
		message = string(body)
	}

	if len(parsed.Code) > 0 {
		txErr := solana.NewTransactionError(solana.TransactionErrorKey(parsed.Code))
		return errors.Wrapf(txErr, "%s: received http status %d: %s", ErrRejected.Error(), status, message)
	}

	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return errors.Wrapf(ErrUnavailable, "received http status %d: %s", status, message)
	}
	return errors.Wrapf(ErrRejected, "received http status %d: %s", status, message)
}
