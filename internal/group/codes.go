package group

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwise1/outpost/internal/metrics"
	"github.com/bwise1/outpost/util"
)

const (
	CodeLength          = 8
	DefaultCodeAttempts = 10
)

// CodeExists reports whether an invite code is already taken.
type CodeExists func(ctx context.Context, code string) (bool, error)

// GenerateUniqueCode draws random codes until exists reports a free one, and
// gives up with ErrCodeExhausted after maxAttempts draws.
func GenerateUniqueCode(ctx context.Context, exists CodeExists, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultCodeAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code, err := util.GenerateShortCode(CodeLength)
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("checking invite code: %w", err)
		}
		if !taken {
			metrics.InviteCodeAttempts.Observe(float64(attempt))
			return code, nil
		}
	}

	return "", ErrCodeExhausted
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
