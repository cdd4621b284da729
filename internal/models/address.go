package models

import (
	"github.com/shopspring/decimal"
)

const minAddressLen = 95

// ValidAddress reports whether addr looks like a Monero mainnet address:
// standard ('4') or subaddress ('8'), at least 95 characters. Checked before
// any network call is made with the address.
func ValidAddress(addr string) bool {
	if len(addr) < minAddressLen {
		return false
	}
	return addr[0] == '4' || addr[0] == '8'
}

// DepositURI builds the QR-code payload for a deposit.
func DepositURI(addr string, amountXMR decimal.Decimal) string {
	return "monero:" + addr + "?tx_amount=" + amountXMR.String()
}
