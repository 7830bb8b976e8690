package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Canonicalize percent-encodes every key and value, orders pairs by encoded key and
// joins them as k=v with '&'. Signature fields are never part of the payload.
func Canonicalize(params map[string]string) string {
	pairs := make([][2]string, 0, len(params))
	for k, v := range params {
		if isSignatureField(k) {
			continue
		}
		pairs = append(pairs, [2]string{url.QueryEscape(k), url.QueryEscape(v)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(p[1])
	}
	return b.String()
}

// Sign returns the hex HMAC-SHA512 of the canonical form of params.
func Sign(secret string, params map[string]string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write([]byte(Canonicalize(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over params and compares it in constant time with the
// supplied hex hash (case-insensitive).
func Verify(secret string, params map[string]string, hash string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(hash))
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, params))
	return hmac.Equal(got, want)
}

func isSignatureField(k string) bool {
	return k == ParamSecureHash || k == ParamSecureHashType
}
