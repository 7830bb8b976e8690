package payment

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Sandbox plays the gateway side: it signs callbacks for references it has issued, so the
// simulator and tests can exercise the return and webhook paths with valid signatures.
type Sandbox struct {
	gateway *Gateway

	mu      sync.RWMutex
	settled map[string]map[string]string
}

func NewSandbox(g *Gateway) *Sandbox {
	return &Sandbox{gateway: g, settled: make(map[string]map[string]string)}
}

// Settle produces the signed callback for txnRef. Repeated calls return the same
// parameters, as a real gateway does when it retries delivery.
func (s *Sandbox) Settle(txnRef string, amount decimal.Decimal, responseCode, bankCode string) (map[string]string, error) {
	s.mu.RLock()
	if params, ok := s.settled[txnRef]; ok {
		s.mu.RUnlock()
		return clone(params), nil
	}
	s.mu.RUnlock()

	scaled, err := s.gateway.ScaleAmount(amount)
	if err != nil {
		return nil, err
	}
	status := responseCode
	if status != ResponseSuccess {
		status = "02"
	}
	params := map[string]string{
		ParamTmnCode:           s.gateway.cfg.TmnCode,
		ParamAmount:            scaled,
		ParamBankCode:          bankCode,
		ParamTxnRef:            txnRef,
		ParamResponseCode:      responseCode,
		ParamTransactionStatus: status,
		ParamTransactionNo:     fmt.Sprintf("%08d", rand.IntN(100_000_000)),
		ParamPayDate:           time.Now().In(s.gateway.cfg.Location).Format(dateLayout),
		ParamOrderInfo:         "Payment for " + txnRef,
	}
	params[ParamSecureHash] = Sign(s.gateway.cfg.HashSecret, params)

	s.mu.Lock()
	if existing, ok := s.settled[txnRef]; ok {
		params = existing
	} else {
		s.settled[txnRef] = params
	}
	s.mu.Unlock()
	return clone(params), nil
}

func clone(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
