package chat

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/caravan/internal/client/api"
)

// transcript is the ordered, de-duplicated message list of one chat.
// History and pushed messages race while a chat opens, so messages are
// placed by (sentAt, id) instead of appended.
type transcript struct {
	msgs []api.ChatMessage
	ids  map[uuid.UUID]struct{}
}

func newTranscript() *transcript {
	return &transcript{ids: make(map[uuid.UUID]struct{})}
}

func compareMessages(a, b api.ChatMessage) int {
	if c := a.SentAt.Compare(b.SentAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// add inserts m and reports whether it was new.
func (t *transcript) add(m api.ChatMessage) bool {
	if _, dup := t.ids[m.ID]; dup {
		return false
	}
	t.ids[m.ID] = struct{}{}
	i, _ := slices.BinarySearchFunc(t.msgs, m, compareMessages)
	t.msgs = slices.Insert(t.msgs, i, m)
	return true
}

// snapshot returns a copy safe to hand to other goroutines.
func (t *transcript) snapshot() []api.ChatMessage {
	return slices.Clone(t.msgs)
}
