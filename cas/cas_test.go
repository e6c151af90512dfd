package cas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowMs(t *testing.T) {
	// Year 2024 in milliseconds is approximately 1704067200000
	assert.Greater(t, NowMs(), int64(1704067200000))
}

func TestSum_Deterministic(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	c := Sum([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.False(t, a.IsNil())
	assert.True(t, Nil.IsNil())
}

func TestHasher_MatchesSum(t *testing.T) {
	h := NewHasher()
	h.WriteString("hel")
	_, _ = h.Write([]byte("lo"))

	assert.Equal(t, Sum([]byte("hello")), h.Sum())
}

func TestCombine_OrderMatters(t *testing.T) {
	a := Sum([]byte("a"))
	b := Sum([]byte("b"))

	assert.NotEqual(t, Combine(a, b), Combine(b, a))
	assert.Equal(t, Combine(a, b), Combine(a, b))
}

func TestParseHash(t *testing.T) {
	h := Sum([]byte("content"))

	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.Len(t, h.Short(), 12)

	tests := []struct {
		name  string
		input string
	}{
		{"not hex", "zz"},
		{"too short", "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHash(tt.input)
			assert.Error(t, err)
		})
	}
}
