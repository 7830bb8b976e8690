package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize_SortsAndEncodes(t *testing.T) {
	params := map[string]string{
		"orderInfo":  "Payment for order HD202610160001",
		"amount":     "20000",
		"returnUrl":  "https://shop.test/return?x=1&y=2",
		"secureHash": "ignored",
	}

	got := Canonicalize(params)

	assert.Equal(t,
		"amount=20000&orderInfo=Payment+for+order+HD202610160001&returnUrl=https%3A%2F%2Fshop.test%2Freturn%3Fx%3D1%26y%3D2",
		got)
}

func TestSignVerify(t *testing.T) {
	params := map[string]string{"amount": "20000", "txnRef": "HD202610160001_1"}
	hash := Sign("secret", params)

	assert.Len(t, hash, 128)
	assert.True(t, Verify("secret", params, hash))
	assert.True(t, Verify("secret", params, strings.ToUpper(hash)))
	assert.False(t, Verify("other-secret", params, hash))
	assert.False(t, Verify("secret", params, "not-hex"))
	assert.False(t, Verify("secret", params, ""))

	tampered := map[string]string{"amount": "1", "txnRef": "HD202610160001_1"}
	assert.False(t, Verify("secret", tampered, hash))
}

func TestSign_IgnoresSignatureFields(t *testing.T) {
	params := map[string]string{"amount": "20000"}
	withHash := map[string]string{"amount": "20000", ParamSecureHash: "abc", ParamSecureHashType: "HmacSHA512"}

	assert.Equal(t, Sign("secret", params), Sign("secret", withHash))
}
