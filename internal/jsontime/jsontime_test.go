package jsontime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUsesDayFirstLayout(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

	b, err := json.Marshal(New(ts))
	require.NoError(t, err)
	assert.Equal(t, `"05/03/2024 14:07:09"`, string(b))
}

func TestMarshalConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	ts := time.Date(2024, time.March, 5, 21, 0, 0, 0, loc)

	b, err := json.Marshal(New(ts))
	require.NoError(t, err)
	assert.Equal(t, `"06/03/2024 00:00:00"`, string(b))
}

func TestUnmarshal(t *testing.T) {
	var v struct {
		Deadline *Time `json:"deadline"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"31/12/2025 23:59:00"}`), &v))
	require.NotNil(t, v.Deadline)
	assert.Equal(t, time.Date(2025, time.December, 31, 23, 59, 0, 0, time.UTC), v.Deadline.Time)

	v.Deadline = nil
	require.NoError(t, json.Unmarshal([]byte(`{"deadline":null}`), &v))
	assert.Nil(t, v.Deadline)
	assert.Nil(t, v.Deadline.Std())
}

func TestUnmarshalRejectsOtherLayouts(t *testing.T) {
	var v Time
	assert.Error(t, json.Unmarshal([]byte(`"2025-12-31T23:59:00Z"`), &v))
	assert.Error(t, json.Unmarshal([]byte(`1700000000`), &v))
}

func TestZeroMarshalsAsNull(t *testing.T) {
	b, err := json.Marshal(Time{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}
