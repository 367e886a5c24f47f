package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	stakeErr := ValidateStake(d("1000"), d("60"))
	assert.Equal(t, "above_maximum", Code(fmt.Errorf("challenge.PlaceBet: %w", stakeErr)))
	assert.Equal(t, "rate_limited", Code(&RateLimitedError{}))
	assert.Equal(t, "upstream_unavailable", Code(&UpstreamError{StatusCode: 502}))
	assert.Equal(t, "internal", Code(errors.New("disk full")))
}
