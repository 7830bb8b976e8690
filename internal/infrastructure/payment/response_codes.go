package payment

var responseReasons = map[string]string{
	"00": "Payment successful",
	"07": "Payment debited but flagged as suspicious",
	"09": "Card or account is not registered for internet banking",
	"10": "Card or account verification failed more than three times",
	"11": "Payment window expired",
	"12": "Card or account is locked",
	"13": "Wrong one-time password",
	"24": "Payment cancelled by customer",
	"51": "Insufficient account balance",
	"65": "Daily transaction limit exceeded",
	"75": "Issuing bank is under maintenance",
	"79": "Wrong payment password entered too many times",
	"99": "Unknown gateway error",
}

// Reason maps a gateway response code to a human-readable explanation.
func Reason(code string) string {
	if r, ok := responseReasons[code]; ok {
		return r
	}
	return "Payment failed (code " + code + ")"
}
