package payment

import (
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway() *Gateway {
	return NewGateway(Config{
		BaseURL:     "https://sandbox.gateway.test/pay",
		TmnCode:     "SHOP01",
		HashSecret:  "secret",
		ReturnURL:   "http://localhost:8080/api/payments/return",
		Version:     "2.1.0",
		Currency:    "VND",
		Locale:      "vn",
		AmountScale: 100,
		Location:    time.UTC,
	})
}

func TestBuildRedirect(t *testing.T) {
	g := testGateway()
	now := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

	r, err := g.BuildRedirect(RedirectRequest{
		OrderCode: "HD202610160001",
		Amount:    decimal.RequireFromString("200"),
		BankCode:  "NCB",
		ClientIP:  "10.0.0.1",
		Now:       now,
	})
	require.NoError(t, err)

	assert.Equal(t, "HD202610160001_"+"1792143000000", r.TxnRef)
	assert.Equal(t, "20000", r.Params[ParamAmount])
	assert.Equal(t, "vn", r.Params[ParamLocale])
	assert.Equal(t, "20261016093000", r.Params[ParamCreateDate])
	assert.Equal(t, "NCB", r.Params[ParamBankCode])

	u, err := url.Parse(r.URL)
	require.NoError(t, err)
	assert.Equal(t, "sandbox.gateway.test", u.Host)

	q := u.Query()
	assert.Equal(t, r.TxnRef, q.Get(ParamTxnRef))
	hash := q.Get(ParamSecureHash)
	require.NotEmpty(t, hash)

	flat := map[string]string{}
	for k := range q {
		flat[k] = q.Get(k)
	}
	assert.True(t, g.VerifyCallback(flat), "redirect must carry a verifiable signature")
}

func TestBuildRedirect_OmitsEmptyBankCodeAndHonoursLanguage(t *testing.T) {
	r, err := testGateway().BuildRedirect(RedirectRequest{
		OrderCode: "HD202610160002",
		Amount:    decimal.RequireFromString("15.5"),
		Language:  "en",
		Now:       time.Now(),
	})
	require.NoError(t, err)

	_, hasBank := r.Params[ParamBankCode]
	assert.False(t, hasBank)
	assert.Equal(t, "en", r.Params[ParamLocale])
	assert.Equal(t, "1550", r.Params[ParamAmount])
}

func TestScaleAmount_RejectsSubUnitPrecision(t *testing.T) {
	_, err := testGateway().ScaleAmount(decimal.RequireFromString("1.005"))
	assert.ErrorIs(t, err, ErrAmountNotScalable)
}

func TestOrderCodeFromTxnRef(t *testing.T) {
	code, ok := OrderCodeFromTxnRef("HD202610160001_1760600000000")
	assert.True(t, ok)
	assert.Equal(t, "HD202610160001", code)

	for _, bad := range []string{"", "HD202610160001", "_123", "HD2026_"} {
		_, ok := OrderCodeFromTxnRef(bad)
		assert.False(t, ok, bad)
	}
}

func TestSandboxCallback_VerifiesAndParses(t *testing.T) {
	g := testGateway()
	sb := NewSandbox(g)

	params, err := sb.Settle("HD202610160001_1", decimal.RequireFromString("200"), ResponseSuccess, "NCB")
	require.NoError(t, err)
	require.True(t, g.VerifyCallback(params))

	cb, err := g.ParseCallback(params)
	require.NoError(t, err)
	assert.Equal(t, "HD202610160001", cb.OrderCode)
	assert.True(t, decimal.RequireFromString("200").Equal(cb.Amount))
	assert.True(t, cb.Succeeded())
	assert.NotEmpty(t, cb.GatewayTxnNo)

	again, err := sb.Settle("HD202610160001_1", decimal.RequireFromString("200"), ResponseSuccess, "NCB")
	require.NoError(t, err)
	assert.Equal(t, params, again, "redelivery carries identical parameters")
}

func TestVerifyCallback_RejectsTamperingAndMissingHash(t *testing.T) {
	g := testGateway()
	params, err := NewSandbox(g).Settle("HD202610160001_1", decimal.RequireFromString("200"), "24", "NCB")
	require.NoError(t, err)

	cb, err := g.ParseCallback(params)
	require.NoError(t, err)
	assert.False(t, cb.Succeeded())

	params[ParamAmount] = "100"
	assert.False(t, g.VerifyCallback(params))

	delete(params, ParamSecureHash)
	assert.False(t, g.VerifyCallback(params))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "Payment cancelled by customer", Reason("24"))
	assert.Equal(t, "Payment failed (code 42)", Reason("42"))
}
