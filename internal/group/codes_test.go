package group

import (
	"context"
	"errors"
	"testing"

	"github.com/bwise1/outpost/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUniqueCode(t *testing.T) {
	ctx := context.Background()
	taken := map[string]bool{}

	for i := 0; i < 50; i++ {
		code, err := GenerateUniqueCode(ctx, func(_ context.Context, c string) (bool, error) {
			return taken[c], nil
		}, DefaultCodeAttempts)
		require.NoError(t, err)
		assert.True(t, util.IsShortCode(code, CodeLength), "bad code %q", code)
		assert.False(t, taken[code])
		taken[code] = true
	}
}

func TestGenerateUniqueCodeExhausted(t *testing.T) {
	calls := 0
	_, err := GenerateUniqueCode(context.Background(), func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}, 10)

	assert.ErrorIs(t, err, ErrCodeExhausted)
	assert.Equal(t, 10, calls)
}

func TestGenerateUniqueCodeRetriesUntilFree(t *testing.T) {
	calls := 0
	code, err := GenerateUniqueCode(context.Background(), func(context.Context, string) (bool, error) {
		calls++
		return calls < 3, nil
	}, 10)

	require.NoError(t, err)
	assert.Len(t, code, CodeLength)
	assert.Equal(t, 3, calls)
}

func TestGenerateUniqueCodeLookupFailure(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := GenerateUniqueCode(context.Background(), func(context.Context, string) (bool, error) {
		return false, boom
	}, 10)

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrCodeExhausted)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "AB12CD34", NormalizeCode("  ab12cd34 \n"))
	assert.Equal(t, "", NormalizeCode("   "))
}
