package stomp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SendFrame(t *testing.T) {
	f := New(CmdSend, HdrDestination, "/app/chat/42", HdrContentType, "application/json")
	f.Body = []byte(`{"content":"hi"}`)

	got := string(Marshal(f))
	want := "SEND\ncontent-type:application/json\ndestination:/app/chat/42\ncontent-length:16\n\n{\"content\":\"hi\"}\x00"
	assert.Equal(t, want, got)
}

func TestRoundTrip_EscapesHeaders(t *testing.T) {
	f := New(CmdMessage, HdrDestination, "/topic/chat/1", "note", "a:b\nc\\d")
	f.Body = []byte("line one\n\nline two\x00with nul")

	decoded, err := Unmarshal(Marshal(f))
	require.NoError(t, err)
	assert.Equal(t, CmdMessage, decoded.Command)
	assert.Equal(t, "a:b\nc\\d", decoded.Get("note"))
	assert.Equal(t, f.Body, decoded.Body)
}

func TestMarshal_ConnectIsNotEscaped(t *testing.T) {
	f := New(CmdConnect, HdrPasscode, "a:b")
	assert.Contains(t, string(Marshal(f)), "passcode:a:b\n")

	decoded, err := Unmarshal(Marshal(f))
	require.NoError(t, err)
	assert.Equal(t, "a:b", decoded.Get(HdrPasscode))
}

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		command string
		headers map[string]string
		body    string
		err     error
	}{
		{name: "heart-beat", input: "\n"},
		{name: "crlf heart-beat", input: "\r\n"},
		{
			name:    "no body",
			input:   "DISCONNECT\nreceipt:77\n\n\x00",
			command: CmdDisconnect,
			headers: map[string]string{"receipt": "77"},
		},
		{
			name:    "leading heart-beats",
			input:   "\n\nSUBSCRIBE\nid:0\ndestination:/topic/x\n\n\x00",
			command: CmdSubscribe,
			headers: map[string]string{"id": "0", "destination": "/topic/x"},
		},
		{
			name:    "crlf lines",
			input:   "SEND\r\ndestination:/a\r\n\r\nbody\x00",
			command: CmdSend,
			headers: map[string]string{"destination": "/a"},
			body:    "body",
		},
		{
			name:    "first repeated header wins",
			input:   "MESSAGE\nfoo:1\nfoo:2\n\n\x00",
			command: CmdMessage,
			headers: map[string]string{"foo": "1"},
		},
		{
			name:    "trailing EOLs after NUL",
			input:   "RECEIPT\nreceipt-id:1\n\n\x00\n\n",
			command: CmdReceipt,
			headers: map[string]string{"receipt-id": "1"},
		},
		{name: "unknown command", input: "PUBLISH\n\n\x00", err: ErrUnknownCommand},
		{name: "missing NUL", input: "SEND\ndestination:/a\n\nbody", err: ErrMissingNull},
		{name: "bad header", input: "SEND\nnocolon\n\n\x00", err: ErrBadHeader},
		{name: "bad escape", input: "SEND\nk:\\t\n\n\x00", err: ErrBadEscape},
		{name: "content-length too long", input: "SEND\ncontent-length:10\n\nabc\x00", err: ErrBadLength},
		{name: "content-length not at NUL", input: "SEND\ncontent-length:1\n\nabc\x00", err: ErrMissingNull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Unmarshal([]byte(tt.input))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			if tt.command == "" {
				assert.Nil(t, f)
				return
			}
			require.NotNil(t, f)
			assert.Equal(t, tt.command, f.Command)
			for k, v := range tt.headers {
				assert.Equal(t, v, f.Get(k), k)
			}
			assert.Equal(t, tt.body, string(f.Body))
		})
	}
}

func TestFrame_Require(t *testing.T) {
	f := New(CmdSubscribe, HdrDestination, "/topic/a")

	assert.NoError(t, f.Require(HdrDestination))
	assert.ErrorIs(t, f.Require(HdrDestination, HdrID), ErrMissingRequired)
}

func TestHeartBeat(t *testing.T) {
	hb, err := ParseHeartBeat("10000, 5000")
	require.NoError(t, err)
	assert.Equal(t, HeartBeat{Send: 10 * time.Second, Receive: 5 * time.Second}, hb)
	assert.Equal(t, "10000,5000", hb.String())

	none, err := ParseHeartBeat("")
	require.NoError(t, err)
	assert.Zero(t, none)

	for _, bad := range []string{"10", "a,b", "-1,0"} {
		_, err := ParseHeartBeat(bad)
		assert.ErrorIs(t, err, ErrBadHeartBeat, bad)
	}
}

func TestNegotiate(t *testing.T) {
	local := HeartBeat{Send: 10 * time.Second, Receive: 10 * time.Second}

	send, expect := Negotiate(local, HeartBeat{Send: 20 * time.Second, Receive: 5 * time.Second})
	assert.Equal(t, 10*time.Second, send)
	assert.Equal(t, 20*time.Second, expect)

	send, expect = Negotiate(local, HeartBeat{})
	assert.Zero(t, send)
	assert.Zero(t, expect)
}
