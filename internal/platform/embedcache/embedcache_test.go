package embedcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopCacheAlwaysMisses(t *testing.T) {
	c := New("", nil)
	_, ok := c.Get(context.Background(), "아무 질문")
	require.False(t, ok)
	c.Set(context.Background(), "아무 질문", []float32{1, 2, 3}) // must not panic
}

func TestCacheKeyIsDeterministicAndQuerySpecific(t *testing.T) {
	require.Equal(t, cacheKey("서울대 모집인원"), cacheKey("서울대 모집인원"))
	require.NotEqual(t, cacheKey("서울대 모집인원"), cacheKey("연세대 모집인원"))
}
