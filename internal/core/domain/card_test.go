package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCardValue(t *testing.T) {
	tests := []struct {
		in      string
		number  bool
		key     string
		numeric float64
	}{
		{in: "5", number: true, key: "5", numeric: 5},
		{in: "0.5", number: true, key: "0.5", numeric: 0.5},
		{in: "-2", number: true, key: "-2", numeric: -2},
		{in: "☕", number: false, key: "☕"},
		{in: "?", number: false, key: "?"},
		{in: "5 pts", number: false, key: "5 pts"},
		{in: "0x10", number: false, key: "0x10"},
		{in: "Inf", number: false, key: "Inf"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := ParseCardValue(tt.in)
			assert.Equal(t, tt.number, v.IsNumber())
			assert.Equal(t, tt.key, v.Key())
			n, ok := v.Numeric()
			assert.Equal(t, tt.number, ok)
			if ok {
				assert.Equal(t, tt.numeric, n)
			}
		})
	}
}

func TestCardValue_NumberAndStringShareKey(t *testing.T) {
	assert.True(t, NumberValue(8).Equal(StringValue("8")))
	assert.False(t, NumberValue(8).Equal(StringValue("8 ")))
	assert.Equal(t, "13", NumberValue(13).Key())
}

func TestCardValue_JSON(t *testing.T) {
	raw, err := json.Marshal([]CardValue{NumberValue(3), StringValue("☕")})
	require.NoError(t, err)
	assert.JSONEq(t, `[3, "☕"]`, string(raw))

	var decoded []CardValue
	require.NoError(t, json.Unmarshal([]byte(`[0.5, "?"]`), &decoded))
	assert.Equal(t, []CardValue{NumberValue(0.5), StringValue("?")}, decoded)

	var v CardValue
	assert.Error(t, json.Unmarshal([]byte(`null`), &v))
	assert.Error(t, json.Unmarshal([]byte(`true`), &v))
}
