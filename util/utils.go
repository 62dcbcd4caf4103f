package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/twpayne/go-polyline"
)

const shortCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

// GenerateShortCode returns length characters drawn uniformly from [A-Z0-9].
func GenerateShortCode(length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(shortCodeCharset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reading random source: %w", err)
		}
		b[i] = shortCodeCharset[n.Int64()]
	}
	return string(b), nil
}

// IsShortCode reports whether code has the given length and only uses the short code charset.
func IsShortCode(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(shortCodeCharset, rune(code[i])) {
			return false
		}
	}
	return true
}

// EncodePath encodes [lat, lng] pairs as a precision 5 polyline.
func EncodePath(coords [][]float64) string {
	if len(coords) == 0 {
		return ""
	}
	return string(polyline.EncodeCoords(coords))
}

func StringPtr(s string) *string {
	return &s
}
