package payment

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wire parameter names understood by the gateway.
const (
	ParamVersion           = "version"
	ParamCommand           = "command"
	ParamTmnCode           = "tmnCode"
	ParamAmount            = "amount"
	ParamCurrCode          = "currCode"
	ParamTxnRef            = "txnRef"
	ParamOrderInfo         = "orderInfo"
	ParamOrderType         = "orderType"
	ParamLocale            = "locale"
	ParamReturnURL         = "returnUrl"
	ParamIPAddr            = "ipAddr"
	ParamCreateDate        = "createDate"
	ParamExpireDate        = "expireDate"
	ParamBankCode          = "bankCode"
	ParamResponseCode      = "responseCode"
	ParamTransactionNo     = "transactionNo"
	ParamTransactionStatus = "transactionStatus"
	ParamPayDate           = "payDate"
	ParamSecureHash        = "secureHash"
	ParamSecureHashType    = "secureHashType"
)

const (
	dateLayout = "20060102150405"

	// ExpiryWindow is how long the gateway keeps a redirect payable.
	ExpiryWindow = 15 * time.Minute

	ResponseSuccess = "00"
)

var ErrAmountNotScalable = errors.New("amount has more precision than the gateway accepts")

type Config struct {
	BaseURL     string
	TmnCode     string
	HashSecret  string
	ReturnURL   string
	Version     string
	Currency    string
	Locale      string
	AmountScale int64
	Location    *time.Location
}

// Gateway builds signed redirects and verifies signed callbacks for one merchant account.
type Gateway struct {
	cfg Config
}

func NewGateway(cfg Config) *Gateway {
	if cfg.Location == nil {
		cfg.Location = time.FixedZone("GMT+7", 7*60*60)
	}
	if cfg.AmountScale <= 0 {
		cfg.AmountScale = 100
	}
	return &Gateway{cfg: cfg}
}

// Location is the merchant's business time zone, in which the gateway stamps its dates.
func (g *Gateway) Location() *time.Location {
	return g.cfg.Location
}

type RedirectRequest struct {
	OrderCode string
	Amount    decimal.Decimal
	BankCode  string
	Language  string
	ClientIP  string
	Now       time.Time
}

type Redirect struct {
	URL    string
	TxnRef string
	Params map[string]string
}

// TxnRef composes the unique transaction reference for one payment attempt.
func TxnRef(orderCode string, at time.Time) string {
	return fmt.Sprintf("%s_%d", orderCode, at.UnixMilli())
}

// OrderCodeFromTxnRef recovers the order code from a reference shaped {orderCode}_{suffix}.
func OrderCodeFromTxnRef(ref string) (string, bool) {
	code, suffix, ok := strings.Cut(ref, "_")
	if !ok || code == "" || suffix == "" {
		return "", false
	}
	return code, true
}

func (g *Gateway) ScaleAmount(amount decimal.Decimal) (string, error) {
	scaled := amount.Mul(decimal.NewFromInt(g.cfg.AmountScale))
	if !scaled.Equal(scaled.Truncate(0)) {
		return "", fmt.Errorf("%w: %s", ErrAmountNotScalable, amount)
	}
	return scaled.Truncate(0).String(), nil
}

func (g *Gateway) UnscaleAmount(raw string) (decimal.Decimal, error) {
	scaled, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return scaled.Div(decimal.NewFromInt(g.cfg.AmountScale)), nil
}

// BuildRedirect returns the gateway URL carrying the full signed parameter set.
func (g *Gateway) BuildRedirect(req RedirectRequest) (*Redirect, error) {
	amount, err := g.ScaleAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	now := req.Now.In(g.cfg.Location)
	locale := req.Language
	if locale == "" {
		locale = g.cfg.Locale
	}
	ref := TxnRef(req.OrderCode, req.Now)

	params := map[string]string{
		ParamVersion:    g.cfg.Version,
		ParamCommand:    "pay",
		ParamTmnCode:    g.cfg.TmnCode,
		ParamAmount:     amount,
		ParamCurrCode:   g.cfg.Currency,
		ParamTxnRef:     ref,
		ParamOrderInfo:  "Payment for order " + req.OrderCode,
		ParamOrderType:  "other",
		ParamLocale:     locale,
		ParamReturnURL:  g.cfg.ReturnURL,
		ParamIPAddr:     req.ClientIP,
		ParamCreateDate: now.Format(dateLayout),
		ParamExpireDate: now.Add(ExpiryWindow).Format(dateLayout),
	}
	if req.BankCode != "" {
		params[ParamBankCode] = req.BankCode
	}

	query := Canonicalize(params)
	hash := Sign(g.cfg.HashSecret, params)
	params[ParamSecureHash] = hash

	return &Redirect{
		URL:    g.cfg.BaseURL + "?" + query + "&" + url.QueryEscape(ParamSecureHash) + "=" + hash,
		TxnRef: ref,
		Params: params,
	}, nil
}

// Callback is a verified gateway outcome with the amount converted back to currency units.
type Callback struct {
	TxnRef            string
	OrderCode         string
	Amount            decimal.Decimal
	ResponseCode      string
	TransactionStatus string
	GatewayTxnNo      string
	BankCode          string
	PayDate           string
}

func (c Callback) Succeeded() bool {
	return c.ResponseCode == ResponseSuccess && (c.TransactionStatus == "" || c.TransactionStatus == ResponseSuccess)
}

// VerifyCallback checks the signature before looking at anything else in params.
func (g *Gateway) VerifyCallback(params map[string]string) bool {
	hash, ok := params[ParamSecureHash]
	if !ok || hash == "" {
		return false
	}
	rest := make(map[string]string, len(params))
	for k, v := range params {
		if !isSignatureField(k) {
			rest[k] = v
		}
	}
	return Verify(g.cfg.HashSecret, rest, hash)
}

// ParseCallback normalises already verified callback params.
func (g *Gateway) ParseCallback(params map[string]string) (Callback, error) {
	ref := params[ParamTxnRef]
	code, ok := OrderCodeFromTxnRef(ref)
	if !ok {
		return Callback{}, fmt.Errorf("malformed transaction reference %q", ref)
	}
	amount, err := g.UnscaleAmount(params[ParamAmount])
	if err != nil {
		return Callback{}, err
	}
	return Callback{
		TxnRef:            ref,
		OrderCode:         code,
		Amount:            amount,
		ResponseCode:      params[ParamResponseCode],
		TransactionStatus: params[ParamTransactionStatus],
		GatewayTxnNo:      params[ParamTransactionNo],
		BankCode:          params[ParamBankCode],
		PayDate:           params[ParamPayDate],
	}, nil
}
