package ingest

import (
	"fmt"
	"strings"
)

// Market prefixes for normalized stock codes.
const (
	MarketSH = "SH"
	MarketSZ = "SZ"
	MarketBJ = "BJ"
)

// NormalizeStockCode converts a raw code from an input file into the
// market-prefixed canonical form. The mapping is deterministic given
// the raw code alone.
//
// Prefix inference for bare 6-digit codes:
//
//	5xxxxx, 6xxxxx, 9xxxxx -> SH (funds, main board, B shares)
//	1xxxxx               -> SH (convertible bonds, 11x series)
//	0xxxxx, 2xxxxx, 3xxxxx -> SZ (main board, B shares, ChiNext)
//	4xxxxx, 8xxxxx        -> BJ (NEEQ transfers, Beijing exchange)
//
// Codes already carrying an SH/SZ/BJ prefix pass through upper-cased.
func NormalizeStockCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return "", fmt.Errorf("empty stock code")
	}

	upper := strings.ToUpper(code)
	for _, market := range []string{MarketSH, MarketSZ, MarketBJ} {
		if strings.HasPrefix(upper, market) {
			digits := upper[len(market):]
			if !isDigits(digits) || len(digits) != 6 {
				return "", fmt.Errorf("malformed stock code %q", raw)
			}
			return market + digits, nil
		}
	}

	if !isDigits(upper) || len(upper) != 6 {
		return "", fmt.Errorf("malformed stock code %q", raw)
	}

	switch upper[0] {
	case '5', '6', '9', '1':
		return MarketSH + upper, nil
	case '0', '2', '3':
		return MarketSZ + upper, nil
	case '4', '8':
		return MarketBJ + upper, nil
	default:
		return "", fmt.Errorf("no market rule for stock code %q", raw)
	}
}

// IsConvertibleBondCode classifies an instrument by code prefix
// convention: 11x codes are SH convertible bonds, 12x are SZ.
// Used to segregate bond-like securities from equities in reporting.
func IsConvertibleBondCode(normalized string) bool {
	digits := normalized
	for _, market := range []string{MarketSH, MarketSZ, MarketBJ} {
		if strings.HasPrefix(normalized, market) {
			digits = normalized[len(market):]
			break
		}
	}
	return strings.HasPrefix(digits, "11") || strings.HasPrefix(digits, "12")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
