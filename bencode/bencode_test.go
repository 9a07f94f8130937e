package bencode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripScalars(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want interface{}
	}{
		{"int", 42, int64(42)},
		{"negative int", -7, int64(-7)},
		{"string", "spam", "spam"},
		{"empty string", "", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewEncoder(&buf).Encode(c.in))

			got, err := NewDecoder(&buf).Decode()
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestRoundTripDict(t *testing.T) {
	d := Dict{
		"complete":   1,
		"incomplete": 2,
		"interval":   1800,
	}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(d))

	got, err := NewDecoder(&buf).Decode()
	require.NoError(t, err)

	decoded, ok := got.(Dict)
	require.True(t, ok)
	require.EqualValues(t, int64(1), decoded["complete"])
	require.EqualValues(t, int64(2), decoded["incomplete"])
	require.EqualValues(t, int64(1800), decoded["interval"])
}

func TestEncodeDictKeysAreSorted(t *testing.T) {
	d := Dict{"z": 1, "a": 2, "m": 3}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(d))

	require.Equal(t, "d1:ai2e1:mi3e1:zi1ee", buf.String())
}

func TestDecodeRejectsOutOfOrderKeys(t *testing.T) {
	_, err := NewDecoder(bytes.NewBufferString("d1:zi1e1:ai2ee")).Decode()
	require.ErrorIs(t, err, ErrKeysOutOfOrder)
}

func TestDecodeRejectsExcessiveNesting(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < MaxDepth+2; i++ {
		buf.WriteByte('l')
	}
	for i := 0; i < MaxDepth+2; i++ {
		buf.WriteByte('e')
	}

	_, err := NewDecoder(&buf).Decode()
	require.ErrorIs(t, err, ErrMaxDepthExceeded)
}

func TestRoundTripList(t *testing.T) {
	l := []interface{}{1, "two", 3}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(l))

	got, err := NewDecoder(&buf).Decode()
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(1), "two", int64(3)}, got)
}
