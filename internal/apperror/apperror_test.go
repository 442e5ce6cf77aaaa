package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := New(KindNoData, "temporal", "no transactions in range", map[string]any{"window": 7})
	wrapped := fmt.Errorf("handler: %w", err)

	assert.ErrorIs(t, wrapped, NoData)
	assert.NotErrorIs(t, wrapped, StoreUnavailable)
	assert.Equal(t, KindNoData, KindOf(wrapped))
	assert.Equal(t, map[string]any{"window": 7}, DetailsOf(wrapped))
	assert.Equal(t, "no transactions in range", MessageOf(wrapped))
}

func TestError_Message(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindStoreUnavailable, "summary", "transaction store unavailable",
		map[string]any{"start_date": "2011-06-01", "end_date": "2011-06-30"}, cause)

	assert.Equal(t,
		"summary: transaction store unavailable [end_date=2011-06-30 start_date=2011-06-01]: dial tcp: connection refused",
		err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, Retryable(err))
}

func TestKindOf_Foreign(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "internal error", MessageOf(errors.New("pq: relation missing")))
	assert.Nil(t, DetailsOf(errors.New("boom")))
	assert.False(t, Retryable(New(KindInvalidRange, "summary", "start after end", nil)))
}
