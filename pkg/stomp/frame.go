// Package stomp encodes and decodes STOMP 1.2 frames. One WebSocket
// message carries one frame, or a bare EOL heart-beat.
package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Subprotocol is the WebSocket subprotocol negotiated for STOMP 1.2.
const Subprotocol = "v12.stomp"

// Client and server commands.
const (
	CmdConnect     = "CONNECT"
	CmdStomp       = "STOMP"
	CmdSend        = "SEND"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdAck         = "ACK"
	CmdNack        = "NACK"
	CmdDisconnect  = "DISCONNECT"

	CmdConnected = "CONNECTED"
	CmdMessage   = "MESSAGE"
	CmdReceipt   = "RECEIPT"
	CmdError     = "ERROR"
)

// Header names.
const (
	HdrAcceptVersion = "accept-version"
	HdrVersion       = "version"
	HdrHost          = "host"
	HdrHeartBeat     = "heart-beat"
	HdrLogin         = "login"
	HdrPasscode      = "passcode"
	HdrAuthorization = "Authorization"
	HdrDestination   = "destination"
	HdrContentType   = "content-type"
	HdrContentLength = "content-length"
	HdrID            = "id"
	HdrSubscription  = "subscription"
	HdrMessageID     = "message-id"
	HdrReceipt       = "receipt"
	HdrReceiptID     = "receipt-id"
	HdrMessage       = "message"
	HdrServer        = "server"
)

var (
	ErrEmptyFrame      = errors.New("stomp: empty frame")
	ErrMissingNull     = errors.New("stomp: frame not terminated by NUL")
	ErrBadHeader       = errors.New("stomp: malformed header")
	ErrBadEscape       = errors.New("stomp: undefined escape sequence")
	ErrBadLength       = errors.New("stomp: invalid content-length")
	ErrUnknownCommand  = errors.New("stomp: unknown command")
	ErrBadHeartBeat    = errors.New("stomp: invalid heart-beat header")
	ErrMissingRequired = errors.New("stomp: missing required header")
)

var knownCommands = map[string]bool{
	CmdConnect: true, CmdStomp: true, CmdSend: true, CmdSubscribe: true, CmdUnsubscribe: true,
	CmdAck: true, CmdNack: true, CmdDisconnect: true, "BEGIN": true, "COMMIT": true, "ABORT": true,
	CmdConnected: true, CmdMessage: true, CmdReceipt: true, CmdError: true,
}

// Frame is a single STOMP frame.
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

// New creates a frame from alternating header keys and values.
func New(command string, kv ...string) *Frame {
	f := &Frame{Command: command, Headers: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers[kv[i]] = kv[i+1]
	}
	return f
}

// Get returns a header value, or "" when absent.
func (f *Frame) Get(name string) string {
	if f.Headers == nil {
		return ""
	}
	return f.Headers[name]
}

// Set assigns a header value.
func (f *Frame) Set(name, value string) {
	if f.Headers == nil {
		f.Headers = make(map[string]string)
	}
	f.Headers[name] = value
}

// Require returns ErrMissingRequired naming the first absent header.
func (f *Frame) Require(names ...string) error {
	for _, n := range names {
		if f.Get(n) == "" {
			return fmt.Errorf("%w: %s on %s", ErrMissingRequired, n, f.Command)
		}
	}
	return nil
}

// escaped reports whether header values on this command are escaped.
// CONNECT and CONNECTED frames predate escaping and are sent raw.
func escaped(command string) bool {
	return command != CmdConnect && command != CmdConnected
}

// Marshal encodes f. A content-length header is written whenever the
// frame has a body. Headers are written in sorted order.
func Marshal(f *Frame) []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	keys := make([]string, 0, len(f.Headers))
	for k := range f.Headers {
		if k != HdrContentLength {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	esc := escaped(f.Command)
	for _, k := range keys {
		v := f.Headers[k]
		if esc {
			k, v = escape(k), escape(v)
		}
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 {
		buf.WriteString(HdrContentLength)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(len(f.Body)))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Unmarshal decodes one frame. It returns (nil, nil) for heart-beat data
// made only of EOLs.
func Unmarshal(data []byte) (*Frame, error) {
	data = trimLeadingEOL(data)
	if len(data) == 0 {
		return nil, nil
	}

	headEnd := bytes.Index(data, []byte("\n\n"))
	sepLen := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (headEnd < 0 || crlf < headEnd) {
		headEnd, sepLen = crlf, 4
	}
	if headEnd < 0 {
		// A frame with no headers and no body ends straight after the command.
		if i := bytes.IndexByte(data, '\n'); i >= 0 && i+1 < len(data) && data[i+1] == 0 {
			headEnd, sepLen = i, 1
		} else {
			return nil, ErrMissingNull
		}
	}

	lines := strings.Split(strings.ReplaceAll(string(data[:headEnd]), "\r\n", "\n"), "\n")
	f := &Frame{Command: lines[0], Headers: make(map[string]string, len(lines)-1)}
	if !knownCommands[f.Command] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, f.Command)
	}
	esc := escaped(f.Command)
	for _, line := range lines[1:] {
		k, v, ok := strings.Cut(line, ":")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadHeader, line)
		}
		if esc {
			var err error
			if k, err = unescape(k); err != nil {
				return nil, err
			}
			if v, err = unescape(v); err != nil {
				return nil, err
			}
		}
		// Repeated headers: the first occurrence wins.
		if _, dup := f.Headers[k]; !dup {
			f.Headers[k] = v
		}
	}

	rest := data[headEnd+sepLen:]
	if cl, ok := f.Headers[HdrContentLength]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n >= len(rest) {
			return nil, fmt.Errorf("%w: %q", ErrBadLength, cl)
		}
		if rest[n] != 0 {
			return nil, ErrMissingNull
		}
		f.Body = append([]byte(nil), rest[:n]...)
		return f, nil
	}
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return nil, ErrMissingNull
	}
	if end > 0 {
		f.Body = append([]byte(nil), rest[:end]...)
	}
	return f, nil
}

// HeartBeat is the negotiated pair from a heart-beat header: the
// smallest interval the sender can emit and the interval it wants to
// receive. Zero means none.
type HeartBeat struct {
	Send    time.Duration
	Receive time.Duration
}

// String formats the pair as a header value.
func (h HeartBeat) String() string {
	return fmt.Sprintf("%d,%d", h.Send.Milliseconds(), h.Receive.Milliseconds())
}

// ParseHeartBeat parses "cx,cy". An empty value means no heart-beats.
func ParseHeartBeat(v string) (HeartBeat, error) {
	if v == "" {
		return HeartBeat{}, nil
	}
	a, b, ok := strings.Cut(v, ",")
	if !ok {
		return HeartBeat{}, fmt.Errorf("%w: %q", ErrBadHeartBeat, v)
	}
	x, err1 := strconv.Atoi(strings.TrimSpace(a))
	y, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil || x < 0 || y < 0 {
		return HeartBeat{}, fmt.Errorf("%w: %q", ErrBadHeartBeat, v)
	}
	return HeartBeat{Send: time.Duration(x) * time.Millisecond, Receive: time.Duration(y) * time.Millisecond}, nil
}

// Negotiate returns how often the local side must send and how long it may
// wait between inbound frames, given its own wishes and the peer's header.
// Either result is zero when that direction is disabled.
func Negotiate(local, remote HeartBeat) (send, expect time.Duration) {
	if local.Send > 0 && remote.Receive > 0 {
		send = max(local.Send, remote.Receive)
	}
	if local.Receive > 0 && remote.Send > 0 {
		expect = max(local.Receive, remote.Send)
	}
	return send, expect
}

var (
	escaper   = strings.NewReplacer("\\", `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)
	unescapes = map[byte]byte{'\\': '\\', 'r': '\r', 'n': '\n', 'c': ':'}
)

func escape(s string) string {
	return escaper.Replace(s)
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			return "", ErrBadEscape
		}
		c, ok := unescapes[s[i+1]]
		if !ok {
			return "", fmt.Errorf("%w: \\%c", ErrBadEscape, s[i+1])
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), nil
}

func trimLeadingEOL(data []byte) []byte {
	for len(data) > 0 && (data[0] == '\n' || data[0] == '\r') {
		data = data[1:]
	}
	return data
}
