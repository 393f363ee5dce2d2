package protocol_test

import (
	"bytes"
	"strings"
	"testing"

	"mafserver/voice/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	voiceData := bytes.Repeat([]byte{0x0f}, protocol.VoiceDataSize)

	tests := []struct {
		name string
		msg  protocol.Message
	}{
		{"voice", protocol.Voice{Name: "xXxSLaYeRxXx", Data: voiceData}},
		{"connected", protocol.Connected{Name: "Вася Пупкин"}},
		{"disconnected", protocol.Disconnected{Name: "Роберт"}},
		{"list request", protocol.ListRequest{}},
		{"list response", protocol.ListResponse{Names: []string{"a", "bb", "cccc"}}},
		{"empty list response", protocol.ListResponse{Names: []string{}}},
		{"room change", protocol.RoomChange{Room: 42}},
		{"shutdown", protocol.Shutdown{}},
		{"game started", protocol.GameStarted{Port: 12345}},
		{"connected response error", protocol.ConnectedResponse{Error: "I am error"}},
		{"connected response ok", protocol.ConnectedResponse{Error: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := protocol.Encode(tt.msg)
			require.NoError(t, err)

			decoded, err := protocol.Decode(bytes.NewReader(raw))
			require.NoError(t, err)
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestDecodeConsumesWholeFrame(t *testing.T) {
	raw, err := protocol.Encode(protocol.Connected{Name: "alice"})
	require.NoError(t, err)

	r := bytes.NewReader(raw)
	_, err = protocol.Decode(r)
	require.NoError(t, err)
	assert.Zero(t, r.Len(), "decode must consume the frame exactly")
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := protocol.Decode(bytes.NewReader([]byte{0xff}))
	require.Error(t, err)

	var perr *protocol.Error
	assert.ErrorAs(t, err, &perr)
}

func TestDecodeTruncatedFrame(t *testing.T) {
	raw, err := protocol.Encode(protocol.Voice{
		Name: "bob",
		Data: bytes.Repeat([]byte{1}, protocol.VoiceDataSize),
	})
	require.NoError(t, err)

	_, err = protocol.Decode(bytes.NewReader(raw[:len(raw)-10]))
	assert.Error(t, err)
}

func TestEncodeVoiceWrongSize(t *testing.T) {
	_, err := protocol.Encode(protocol.Voice{Name: "bob", Data: []byte{1, 2, 3}})
	require.Error(t, err)

	var perr *protocol.Error
	assert.ErrorAs(t, err, &perr)
}

func TestDecodeTruncatedNameList(t *testing.T) {
	// A list envelope whose payload stops in the middle of an item.
	raw := []byte{protocol.TypeListResponse, 0, 0, 0, 3, 0, 5, 'a'}
	_, err := protocol.Decode(bytes.NewReader(raw))
	require.Error(t, err)

	var perr *protocol.Error
	assert.ErrorAs(t, err, &perr)
}

func TestEncodeOversizedString(t *testing.T) {
	long := strings.Repeat("x", 1<<16)

	tests := []struct {
		kind string
		msg  protocol.Message
	}{
		{"voice name", protocol.Voice{Name: long, Data: bytes.Repeat([]byte{1}, protocol.VoiceDataSize)}},
		{"connected name", protocol.Connected{Name: long}},
		{"disconnected name", protocol.Disconnected{Name: long}},
		{"list item", protocol.ListResponse{Names: []string{"alice", long}}},
		{"response error", protocol.ConnectedResponse{Error: strings.Repeat("x", 256)}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			_, err := protocol.Encode(tt.msg)
			var perr *protocol.Error
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestEncodeMaxWidthString(t *testing.T) {
	name := strings.Repeat("x", 1<<16-1)
	raw, err := protocol.Encode(protocol.Connected{Name: name})
	require.NoError(t, err)

	msg, err := protocol.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, protocol.Connected{Name: name}, msg)
}
