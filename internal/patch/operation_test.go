package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_WireFormat(t *testing.T) {
	data := []byte(`[
		{"op":"delete","line":4},
		{"op":"replace","line":1,"val":["let y = 1"]},
		{"op":"append","line":0,"val":["// header"]}
	]`)

	ops, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, []Operation{
		{Kind: Delete, Line: 4},
		{Kind: Replace, Line: 1, Value: []string{"let y = 1"}},
		{Kind: Append, Line: 0, Value: []string{"// header"}},
	}, ops)
}

func TestDecode_UnknownOp(t *testing.T) {
	_, err := Decode([]byte(`[{"op":"move","line":1}]`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestOperation_MarshalUsesWireNames(t *testing.T) {
	data, err := json.Marshal(Operation{Kind: Replace, Line: 3, Value: []string{"x"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"replace","line":3,"val":["x"]}`, string(data))

	_, err = json.Marshal(Operation{Line: 3})
	assert.Error(t, err)
}

func TestOperation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		wantErr bool
	}{
		{"delete ok", Operation{Kind: Delete, Line: 1}, false},
		{"delete zero", Operation{Kind: Delete, Line: 0}, true},
		{"replace ok", Operation{Kind: Replace, Line: 2, Value: []string{""}}, false},
		{"replace empty", Operation{Kind: Replace, Line: 2}, true},
		{"append top", Operation{Kind: Append, Line: 0, Value: []string{"a"}}, false},
		{"append negative", Operation{Kind: Append, Line: -1, Value: []string{"a"}}, true},
		{"unknown", Operation{Kind: Kind(9), Line: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
