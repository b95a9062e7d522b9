package chat

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	"github.com/felixgeelhaar/caravan/internal/client/api"
	"github.com/felixgeelhaar/caravan/internal/client/clienttest"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestChatCmd_SendsAndPrints(t *testing.T) {
	srv := clienttest.NewServer(t)
	ana := srv.SignUp(t, "ana@example.com", "Ana")
	bob := srv.SignUp(t, "bob@example.com", "Bob")
	planID := clienttest.RunningPlan(t, ana, bob)

	in, input := io.Pipe()
	cli.SetApp(&cli.App{
		Config:  srv.ClientConfig(t),
		Client:  ana,
		Session: ana.Session(),
		Logger:  slog.Default(),
		In:      in,
	})
	defer cli.SetApp(nil)

	var out lockedBuffer
	Cmd.SetOut(&out)
	Cmd.SetContext(t.Context())
	history = 0
	done := make(chan error, 1)
	go func() { done <- Cmd.RunE(Cmd, []string{planID.String()}) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "-- connected")
	}, 5*time.Second, 10*time.Millisecond)

	_, err := io.WriteString(input, "Who books the tram tickets?\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Ana Test: Who books the tram tickets?")
	}, 5*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(input, "/quit\n")
	require.NoError(t, err)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not quit")
	}
	_ = input.Close()
}

func TestChatCmd_EndOfInputLeaves(t *testing.T) {
	srv := clienttest.NewServer(t)
	ana := srv.SignUp(t, "ana@example.com", "Ana")
	bob := srv.SignUp(t, "bob@example.com", "Bob")
	planID := clienttest.RunningPlan(t, ana, bob)

	cli.SetApp(&cli.App{
		Config:  srv.ClientConfig(t),
		Client:  bob,
		Session: bob.Session(),
		Logger:  slog.Default(),
		In:      strings.NewReader(""),
	})
	defer cli.SetApp(nil)

	var out lockedBuffer
	Cmd.SetOut(&out)
	Cmd.SetContext(t.Context())
	require.NoError(t, Cmd.RunE(Cmd, []string{planID.String()}))
}

func TestPrintNew_PrintsEachMessageOnce(t *testing.T) {
	at := time.Date(2026, 11, 6, 9, 30, 0, 0, time.Local)
	first := api.ChatMessage{ID: uuid.New(), SenderName: "Ana Test", Content: "hi", SentAt: at}
	second := api.ChatMessage{ID: uuid.New(), SenderName: "Bob Test", Content: "hello", SentAt: at.Add(time.Minute)}

	var buf bytes.Buffer
	printed := map[uuid.UUID]struct{}{}
	printNew(&buf, []api.ChatMessage{first}, printed)
	printNew(&buf, []api.ChatMessage{first, second}, printed)

	assert.Equal(t, "[09:30] Ana Test: hi\n[09:31] Bob Test: hello\n", buf.String())
}
