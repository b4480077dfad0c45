package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyhub/internal/domain"
)

func TestFlexFloat_Decode(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  float64
		valid bool
	}{
		{"number", `12.5`, 12.5, true},
		{"numeric string", `"1234.75"`, 1234.75, true},
		{"padded string", `" 7 "`, 7, true},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"garbage string", `"n/a"`, 0, false},
		{"nan string", `"NaN"`, 0, false},
		{"bool", `true`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexFloat
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.valid, f.Valid)
			assert.Equal(t, tt.want, f.Value)
		})
	}
}

func TestFlexFloat_AbsentField(t *testing.T) {
	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1"}`), &m))
	assert.False(t, m.Volume.Valid)
	assert.Equal(t, 3.0, m.Volume.Or(3))
}

func TestOptBool_Decode(t *testing.T) {
	tests := []struct {
		in              string
		isTrue, isFalse bool
	}{
		{`true`, true, false},
		{`false`, false, true},
		{`"true"`, true, false},
		{`"0"`, false, true},
		{`null`, false, false},
		{`"maybe"`, false, false},
	}
	for _, tt := range tests {
		var b OptBool
		require.NoError(t, json.Unmarshal([]byte(tt.in), &b), tt.in)
		assert.Equal(t, tt.isTrue, b.IsTrue(), tt.in)
		assert.Equal(t, tt.isFalse, b.IsFalse(), tt.in)
	}
}

func TestJSONList_EncodedAndNative(t *testing.T) {
	var m APIMarket
	payload := `{"outcomes":"[\"Yes\",\"No\"]","outcomePrices":["0.62","0.38"]}`
	require.NoError(t, json.Unmarshal([]byte(payload), &m))

	names, err := m.Outcomes.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"Yes", "No"}, names)

	prices, err := m.OutcomePrices.Elements()
	require.NoError(t, err)
	assert.Len(t, prices, 2)
}

func TestJSONList_Malformed(t *testing.T) {
	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(`{"outcomes":"[Yes, No"}`), &m))

	_, err := m.Outcomes.Strings()
	assert.ErrorIs(t, err, domain.ErrDecode)

	_, err = JSONList{}.Elements()
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestAPIMarket_ListedAndTotals(t *testing.T) {
	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(`{
		"closed": false,
		"volume": "100",
		"volumeNum": 250,
		"liquidity": "40"
	}`), &m))

	assert.True(t, m.Listed(), "missing active is not explicitly false")
	assert.Equal(t, 250.0, m.TotalVolume())
	assert.Equal(t, 40.0, m.TotalLiquidity())

	m.Active = Bool(false)
	assert.False(t, m.Listed())

	m.Active = OptBool{}
	m.Closed = Bool(true)
	assert.False(t, m.Listed())
}
