package api_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	chatQueries "github.com/felixgeelhaar/caravan/internal/chat/application/queries"
	"github.com/felixgeelhaar/caravan/pkg/stomp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stompPeer struct {
	t    *testing.T
	conn *websocket.Conn
}

func (a *testAPI) dial(t *testing.T) *stompPeer {
	t.Helper()
	dialer := websocket.Dialer{Subprotocols: []string{stomp.Subprotocol}}
	url := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/ws"
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, stomp.Subprotocol, conn.Subprotocol())
	t.Cleanup(func() { _ = conn.Close() })
	return &stompPeer{t: t, conn: conn}
}

func (p *stompPeer) send(f *stomp.Frame) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, stomp.Marshal(f)))
}

// next returns the next frame, skipping heart-beats.
func (p *stompPeer) next() *stomp.Frame {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := p.conn.ReadMessage()
		require.NoError(p.t, err)
		f, err := stomp.Unmarshal(data)
		require.NoError(p.t, err)
		if f != nil {
			return f
		}
	}
}

func (p *stompPeer) connect(token string) *stomp.Frame {
	p.t.Helper()
	p.send(stomp.New(stomp.CmdConnect,
		stomp.HdrAcceptVersion, "1.2",
		stomp.HdrHost, "caravan",
		stomp.HdrHeartBeat, "0,0",
		stomp.HdrAuthorization, "Bearer "+token,
	))
	return p.next()
}

func (p *stompPeer) subscribe(id, destination string) *stomp.Frame {
	p.t.Helper()
	p.send(stomp.New(stomp.CmdSubscribe,
		stomp.HdrID, id,
		stomp.HdrDestination, destination,
		stomp.HdrReceipt, "sub-"+id,
	))
	return p.next()
}

func TestBroker_ChatRoundTrip(t *testing.T) {
	a := newTestAPI(t)
	owner := a.register("owner@example.com", "Olga")
	bob := a.register("bob@example.com", "Bob")
	planID := a.runningPlan(owner, bob)
	topic := "/topic/chat/" + planID.String()

	ownerPeer := a.dial(t)
	connected := ownerPeer.connect(owner.token)
	require.Equal(t, stomp.CmdConnected, connected.Command)
	assert.Equal(t, "1.2", connected.Get(stomp.HdrVersion))
	receipt := ownerPeer.subscribe("0", topic)
	require.Equal(t, stomp.CmdReceipt, receipt.Command)
	assert.Equal(t, "sub-0", receipt.Get(stomp.HdrReceiptID))

	bobPeer := a.dial(t)
	require.Equal(t, stomp.CmdConnected, bobPeer.connect(bob.token).Command)
	require.Equal(t, stomp.CmdReceipt, bobPeer.subscribe("chat", topic).Command)
	assert.Equal(t, 2, a.broker.Subscribers(topic))

	send := stomp.New(stomp.CmdSend,
		stomp.HdrDestination, "/app/chat/"+planID.String(),
		stomp.HdrContentType, "application/json",
	)
	send.Body = []byte(`{"content":"  hello team  ","messageType":"TEXT"}`)
	bobPeer.send(send)

	for subID, peer := range map[string]*stompPeer{"0": ownerPeer, "chat": bobPeer} {
		msg := peer.next()
		require.Equal(t, stomp.CmdMessage, msg.Command)
		assert.Equal(t, subID, msg.Get(stomp.HdrSubscription))
		assert.Equal(t, topic, msg.Get(stomp.HdrDestination))
		assert.NotEmpty(t, msg.Get(stomp.HdrMessageID))

		var dto chatQueries.MessageDTO
		require.NoError(t, json.Unmarshal(msg.Body, &dto))
		assert.Equal(t, "hello team", dto.Content)
		assert.Equal(t, bob.id, dto.SenderID)
		assert.Equal(t, "Bob Test", dto.SenderName)
	}

	var history []chatQueries.MessageDTO
	a.expect(http.StatusOK, http.MethodGet, "/api/chat/"+planID.String()+"/messages?limit=10", owner.token, nil, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "hello team", history[0].Content)
}

func TestBroker_RejectsBadCredentials(t *testing.T) {
	a := newTestAPI(t)

	peer := a.dial(t)
	f := peer.connect("not-a-token")
	assert.Equal(t, stomp.CmdError, f.Command)
	assert.Equal(t, "authentication failed", f.Get(stomp.HdrMessage))
}

func TestBroker_SubscribeRequiresMembership(t *testing.T) {
	a := newTestAPI(t)
	owner := a.register("owner@example.com", "Olga")
	eve := a.register("eve@example.com", "Eve")
	planID := a.createPlan(owner, "Private retreat")

	peer := a.dial(t)
	require.Equal(t, stomp.CmdConnected, peer.connect(eve.token).Command)

	denied := peer.subscribe("0", "/topic/chat/"+planID.String())
	assert.Equal(t, stomp.CmdError, denied.Command)
	assert.Equal(t, "sub-0", denied.Get(stomp.HdrReceiptID))

	unknown := peer.subscribe("1", "/queue/anything")
	assert.Equal(t, stomp.CmdError, unknown.Command)

	// Application errors leave the session usable.
	peer.send(stomp.New(stomp.CmdDisconnect, stomp.HdrReceipt, "bye"))
	bye := peer.next()
	assert.Equal(t, stomp.CmdReceipt, bye.Command)
	assert.Equal(t, "bye", bye.Get(stomp.HdrReceiptID))
}

func TestBroker_SendRequiresRunningPlan(t *testing.T) {
	a := newTestAPI(t)
	owner := a.register("owner@example.com", "Olga")
	planID := a.createPlan(owner, "Not yet")

	peer := a.dial(t)
	require.Equal(t, stomp.CmdConnected, peer.connect(owner.token).Command)

	send := stomp.New(stomp.CmdSend, stomp.HdrDestination, "/app/chat/"+planID.String(), stomp.HdrReceipt, "m1")
	send.Body = []byte(`{"content":"hi","messageType":"TEXT"}`)
	peer.send(send)

	f := peer.next()
	assert.Equal(t, stomp.CmdError, f.Command)
	assert.Equal(t, "m1", f.Get(stomp.HdrReceiptID))
	assert.Contains(t, f.Get(stomp.HdrMessage), "in progress")
}

func TestPlanRelay_BroadcastsHints(t *testing.T) {
	a := newTestAPI(t)
	owner := a.register("owner@example.com", "Olga")
	bob := a.register("bob@example.com", "Bob")
	planID := a.createPlan(owner, "Hints")
	require.NoError(t, a.c.OutboxProcessor.ProcessOnce(t.Context()))

	peer := a.dial(t)
	require.Equal(t, stomp.CmdConnected, peer.connect(owner.token).Command)
	require.Equal(t, stomp.CmdReceipt, peer.subscribe("plan", "/topic/plans/"+planID.String()).Command)

	a.expect(http.StatusOK, http.MethodPost, "/api/travel-plans/"+planID.String()+"/apply", bob.token, nil, nil)
	require.NoError(t, a.c.OutboxProcessor.ProcessOnce(t.Context()))

	msg := peer.next()
	require.Equal(t, stomp.CmdMessage, msg.Command)
	assert.Equal(t, "plan", msg.Get(stomp.HdrSubscription))

	var hint struct {
		PlanID string `json:"planId"`
		Event  string `json:"event"`
	}
	require.NoError(t, json.Unmarshal(msg.Body, &hint))
	assert.Equal(t, planID.String(), hint.PlanID)
	assert.Equal(t, "planning.membership.applied", hint.Event)
}
