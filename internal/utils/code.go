package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewBookingCode builds a booking code of the form
// "BK" + base-36 millisecond timestamp + 4 random base-36 characters,
// e.g. "BKMB3F0Q1ZX9A7". The timestamp part keeps codes roughly
// sortable by creation time; the random suffix avoids collisions when
// two bookings land on the same millisecond.
func NewBookingCode() (string, error) {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UTC().UnixMilli(), 36))
	suffix, err := randomBase36(4)
	if err != nil {
		return "", err
	}
	return "BK" + ts + suffix, nil
}

// NewFlightCode derives a flight code from the airline name: the first
// two letters upper-cased followed by a random four-digit number,
// e.g. "IN4821" for "IndiGo".
func NewFlightCode(airline string) (string, error) {
	prefix := "FL"
	cleaned := strings.ToUpper(strings.TrimSpace(airline))
	if len(cleaned) >= 2 {
		prefix = cleaned[:2]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, n.Int64()+1000), nil
}

// randomBase36 returns n characters drawn uniformly from 0-9A-Z.
func randomBase36(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36Alphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(base36Alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// FormatMoney renders an amount of cents as a rupee string with two
// decimals, used in user-facing refund and surcharge messages.
func FormatMoney(cents uint32) string {
	return fmt.Sprintf("₹%d.%02d", cents/100, cents%100)
}
