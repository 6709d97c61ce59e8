package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/ember/internal/codec"
	"github.com/iamNilotpal/ember/internal/protocol"
)

func TestResponseWireShapes(t *testing.T) {
	tests := []struct {
		name string
		resp protocol.Response
		want string
	}{
		{name: "value", resp: protocol.OkValue("ok"), want: `{"result":{"value":"ok"}}`},
		{name: "none", resp: protocol.OkNone(), want: `{"result":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestResultDistinguishesAbsentValueFromError(t *testing.T) {
	var resp protocol.Response
	require.NoError(t, json.Unmarshal([]byte(`{"result":{}}`), &resp))
	require.True(t, resp.Result.Ok())
	require.Nil(t, resp.Result.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"result":{"error":"key \"k\" not found"}}`), &resp))
	require.False(t, resp.Result.Ok())
	require.Contains(t, resp.Result.Error, "not found")
}

func TestRequestRoundTrip(t *testing.T) {
	req := protocol.Request{Command: codec.Set("k", "v")}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded protocol.Request
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, req, decoded)
}
