package interpreter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRecordKnownFields(t *testing.T) {
	rec := ErrorRecord{Message: "bad token", Phase: PhaseParse, Line: 3, Column: 7}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"message":"bad token","phase":"parse","line":3,"column":7}`, string(data))

	var back ErrorRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
}

func TestErrorRecordEmptyMessageIsEmitted(t *testing.T) {
	data, err := json.Marshal(ErrorRecord{})
	require.NoError(t, err)
	assert.Equal(t, `{"message":""}`, string(data))
}

func TestErrorRecordKeepsUnknownFields(t *testing.T) {
	in := `{"message":"boom","code":"E42","file":"main.juri","hints":[{"at":1}]}`

	var rec ErrorRecord
	require.NoError(t, json.Unmarshal([]byte(in), &rec))
	assert.Equal(t, "boom", rec.Message)
	assert.Len(t, rec.Extra, 3)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Equal(t, `{"message":"boom","code":"E42","file":"main.juri","hints":[{"at":1}]}`, string(out))
}

func TestErrorRecordKeepsMistypedField(t *testing.T) {
	in := `{"message":"bad","line":"3","column":4}`

	var rec ErrorRecord
	require.NoError(t, json.Unmarshal([]byte(in), &rec))
	assert.Equal(t, "bad", rec.Message)
	assert.Zero(t, rec.Line)
	assert.Equal(t, 4, rec.Column)
	assert.Equal(t, json.RawMessage(`"3"`), rec.Extra["line"])

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestErrorRecordExtraOverridesKnownField(t *testing.T) {
	rec := ErrorRecord{
		Message:  "boom",
		Severity: "error",
		Extra:    map[string]json.RawMessage{"severity": json.RawMessage(`{"level":2}`)},
	}

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"message":"boom","severity":{"level":2}}`, string(out))
}

func TestErrorRecordRejectsNonObject(t *testing.T) {
	var rec ErrorRecord
	assert.Error(t, json.Unmarshal([]byte(`"just text"`), &rec))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &rec))
}

func TestErrorRecordInsideOutput(t *testing.T) {
	out := Output{
		Standard: []string{},
		Error:    []ErrorRecord{{Message: "boom", Extra: map[string]json.RawMessage{"code": json.RawMessage(`"E1"`)}}},
		Meta:     []string{},
	}

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"message":"boom","code":"E1"}`)
}
