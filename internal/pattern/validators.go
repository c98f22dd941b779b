package pattern

import (
	"net"
	"strings"
)

// luhnValid reports whether a digit string passes the Luhn checksum.
// Accepts 13-19 digits once separators are stripped.
func luhnValid(s string) bool {
	digits := stripNonDigits(s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// ssnValid rejects structurally-valid-looking SSNs that are known-invalid:
// all-zero groups, and reserved/invalid area codes (000, 666, 900-999).
func ssnValid(s string) bool {
	digits := stripNonDigits(s)
	if len(digits) != 9 {
		return false
	}
	area := digits[0:3]
	group := digits[3:5]
	serial := digits[5:9]

	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" {
		return false
	}
	if serial == "0000" {
		return false
	}
	return true
}

// ipv6Valid confirms a regex candidate actually parses as an IPv6 address,
// rejecting shapes like "1:2:3" that the alternation admits but RFC 4291
// does not.
func ipv6Valid(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && strings.Contains(s, ":")
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
