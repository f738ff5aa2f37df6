package value

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type score int16

type label string

type flag bool

func TestNormalize_Scalars(t *testing.T) {
	now := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	name := "Pat"

	testCases := []struct {
		name string
		in   any
		want any
		kind Kind
	}{
		{name: "nil", in: nil, want: nil, kind: KindNull},
		{name: "int", in: 42, want: int64(42), kind: KindInt},
		{name: "int8", in: int8(-3), want: int64(-3), kind: KindInt},
		{name: "uint32", in: uint32(7), want: int64(7), kind: KindInt},
		{name: "named int", in: score(9), want: int64(9), kind: KindInt},
		{name: "float32", in: float32(1.5), want: float64(1.5), kind: KindFloat},
		{name: "string", in: "Pat", want: "Pat", kind: KindText},
		{name: "named string", in: label("x"), want: "x", kind: KindText},
		{name: "bytes", in: []byte("ab"), want: []byte("ab"), kind: KindBlob},
		{name: "true", in: true, want: int64(1), kind: KindBool},
		{name: "false", in: false, want: int64(0), kind: KindBool},
		{name: "named bool", in: flag(true), want: int64(1), kind: KindBool},
		{name: "time", in: now, want: now, kind: KindTime},
		{name: "pointer", in: &name, want: "Pat", kind: KindText},
		{name: "nil pointer", in: (*string)(nil), want: nil, kind: KindNull},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			kind, err := KindOf(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestNormalize_ValuerPassesThrough(t *testing.T) {
	id := uuid.MustParse("0190a4b2-6a5e-7c3d-8f00-000000000001")

	got, err := Normalize(id)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	kind, err := KindOf(id)
	require.NoError(t, err)
	assert.Equal(t, KindValuer, kind)
}

func TestNormalize_Rejects(t *testing.T) {
	_, err := Normalize(uint64(math.MaxUint64))
	assert.Error(t, err, "uint64 above MaxInt64 must not wrap")

	_, err = Normalize(struct{}{})
	assert.Error(t, err)

	_, err = Normalize(make(chan int))
	assert.Error(t, err)

	_, err = Normalize([]int{1, 2})
	assert.Error(t, err, "lists are not scalars")
}

func TestNormalizeList(t *testing.T) {
	got, err := NormalizeList([]int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, got)

	got, err = NormalizeList([2]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, got)

	got, err = NormalizeList([]any{1, "b", nil})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "b", nil}, got)

	got, err = NormalizeList([]int{})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NormalizeList([]byte("abc"))
	assert.Error(t, err)

	_, err = NormalizeList(5)
	assert.Error(t, err)

	_, err = NormalizeList([]any{struct{}{}})
	assert.ErrorContains(t, err, "list index 0")
}

func TestNegate(t *testing.T) {
	got, err := Negate(5)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), got)

	got, err = Negate(-2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)

	got, err = Negate(uint8(3))
	require.NoError(t, err)
	assert.Equal(t, int64(-3), got)

	_, err = Negate("five")
	assert.Error(t, err)

	_, err = Negate(nil)
	assert.Error(t, err)

	_, err = Negate(int64(math.MinInt64))
	assert.Error(t, err)
}

func TestHomogeneous(t *testing.T) {
	assert.True(t, Homogeneous([]any{int64(1), int64(2)}))
	assert.True(t, Homogeneous([]any{"a", nil, "b"}))
	assert.True(t, Homogeneous(nil))
	assert.False(t, Homogeneous([]any{int64(1), "b"}))
}
