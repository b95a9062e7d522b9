package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	"github.com/felixgeelhaar/caravan/internal/client/api"
	chatclient "github.com/felixgeelhaar/caravan/internal/client/chat"
)

var history int

// Cmd opens a plan's group chat.
var Cmd = &cobra.Command{
	Use:   "chat <plan-id>",
	Short: "Chat with your travel group",
	Long: `Open the group chat of a running plan you belong to.

Recent history is shown first, then new messages as they arrive. Type a
line and press enter to send it; /quit or end of input leaves the chat.

Examples:
  caravan chat 550e8400-e29b-41d4-a716-446655440000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		planID, err := cli.ParseID("plan ID", args[0])
		if err != nil {
			return err
		}

		cfg := chatclient.DefaultConfig(app.Config.WSURL)
		cfg.HistoryLimit = app.Config.HistoryLimit
		if history > 0 {
			cfg.HistoryLimit = history
		}
		cfg.ReconnectDelay = app.Config.ReconnectDelay
		cfg.Logger = app.Logger

		t := chatclient.Open(cmd.Context(), cfg, app.Client, planID)
		defer t.Close()
		return session(cmd.Context(), t, app.In, cmd.OutOrStdout())
	},
}

// session prints the merged transcript and sends each input line until
// input ends, /quit is typed or ctx is done.
func session(ctx context.Context, t *chatclient.Transport, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	printed := make(map[uuid.UUID]struct{})
	for {
		select {
		case <-ctx.Done():
			return nil

		case s := <-t.States():
			switch s {
			case chatclient.StateConnected:
				fmt.Fprintln(out, "-- connected")
			case chatclient.StateReconnecting:
				fmt.Fprintln(out, "-- connection lost, reconnecting")
			}

		case msgs := <-t.Messages():
			printNew(out, msgs, printed)

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case line == "/quit":
				return nil
			}
			if err := t.Send(ctx, line); err != nil {
				if errors.Is(err, chatclient.ErrNotConnected) {
					fmt.Fprintln(out, "-- not connected, message not sent")
					continue
				}
				fmt.Fprintf(out, "-- %s\n", cli.Describe(err))
			}
		}
	}
}

// printNew prints the messages of the transcript not shown yet, in
// transcript order.
func printNew(out io.Writer, msgs []api.ChatMessage, printed map[uuid.UUID]struct{}) {
	for _, m := range msgs {
		if _, ok := printed[m.ID]; ok {
			continue
		}
		printed[m.ID] = struct{}{}
		name := m.SenderName
		if name == "" {
			name = m.SenderID.String()[:8]
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", m.SentAt.Local().Format("15:04"), name, m.Content)
	}
}

func init() {
	Cmd.Flags().IntVarP(&history, "history", "n", 0, "messages of history to load (0 = configured default)")
}
