package jobdata

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHashFromHashRoundTrip(t *testing.T) {
	raw := Raw{
		Data:      []byte(`{"value":"bert"}`),
		Opts:      map[string]string{"lifo": "true"},
		Progress:  40,
		Timestamp: 1700000000000,
		Delay:     0,
	}
	h := raw.ToHash()

	stringHash := map[string]string{}
	for k, v := range h {
		switch vv := v.(type) {
		case string:
			stringHash[k] = vv
		case []byte:
			stringHash[k] = string(vv)
		case int:
			stringHash[k] = strconv.Itoa(vv)
		case int64:
			stringHash[k] = strconv.FormatInt(vv, 10)
		}
	}

	got, err := FromHash(stringHash)
	require.NoError(t, err)
	assert.Equal(t, raw.Data, got.Data)
	assert.Equal(t, raw.Opts, got.Opts)
	assert.Equal(t, raw.Progress, got.Progress)
	assert.Equal(t, raw.Timestamp, got.Timestamp)
	assert.Equal(t, int64(0), got.Delay)
}

func TestFromHashMissingFieldIsMalformed(t *testing.T) {
	_, err := FromHash(map[string]string{"data": "x", "opts": "{}", "progress": "0"})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFromHashDelayAbsentOrUndefinedIsZero(t *testing.T) {
	base := map[string]string{"data": "x", "opts": "{}", "progress": "0", "timestamp": "1"}

	r, err := FromHash(base)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Delay)

	withUndefined := map[string]string{}
	for k, v := range base {
		withUndefined[k] = v
	}
	withUndefined["delay"] = "undefined"
	r, err = FromHash(withUndefined)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Delay)
}

func TestIsLIFO(t *testing.T) {
	assert.True(t, IsLIFO(map[string]string{"lifo": "true"}))
	assert.False(t, IsLIFO(map[string]string{"lifo": "false"}))
	assert.False(t, IsLIFO(nil))
}

func TestDelayMsParsesFloatMilliseconds(t *testing.T) {
	ms, ok := DelayMs(map[string]string{"delay": "1500.5"})
	require.True(t, ok)
	assert.Equal(t, int64(1500), ms)

	_, ok = DelayMs(nil)
	assert.False(t, ok)
}

func TestEncodeDecodeOpts(t *testing.T) {
	assert.Equal(t, "{}", EncodeOpts(nil))
	opts, err := DecodeOpts("{}")
	require.NoError(t, err)
	assert.Empty(t, opts)

	opts, err = DecodeOpts("null")
	require.NoError(t, err)
	assert.Empty(t, opts)
}

