package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/KinGoSco/chat/internal/database"
	"github.com/KinGoSco/chat/internal/stats"
	"github.com/KinGoSco/chat/internal/testutil"
	"github.com/KinGoSco/chat/internal/types"
)

// newTestStats returns a stats mock that tolerates any metric traffic.
// Tests that care about a particular counter add their own expectation
// on top.
func newTestStats() *stats.MockStatsUpdater {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Maybe()
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()
	return su
}

func newTestChatServer(t *testing.T, db *database.MockChatRepository, su *stats.MockStatsUpdater) *ChatServer {
	t.Helper()

	cs, err := NewChatServer(testutil.TestLogger(t), db, su, 8)
	if err != nil {
		t.Fatalf("NewChatServer: %v", err)
	}
	return cs
}

// newTestClient builds a session without a transport. The nil conn is
// fine for tests: Close tolerates it and nothing here runs the pumps.
func newTestClient(t *testing.T, user types.User, cs *ChatServer, su *stats.MockStatsUpdater) *Client {
	t.Helper()

	c := NewClient(user, nil, cs, testutil.TestLogger(t), su)
	t.Cleanup(c.Close)
	return c
}

// registerTestClient attaches a ready client to the server, as the
// websocket handler would after a successful handshake.
func registerTestClient(t *testing.T, cs *ChatServer, su *stats.MockStatsUpdater, user types.User) *Client {
	t.Helper()

	c := newTestClient(t, user, cs, su)
	if err := cs.RegisterClient(c); err != nil {
		t.Fatalf("RegisterClient: %v", err)
	}
	return c
}

func recvEvent(t *testing.T, c *Client) *Event {
	t.Helper()

	select {
	case ev := <-c.send:
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected an event, got none")
		return nil
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case ev := <-c.send:
		t.Fatalf("expected no event, got %s", ev.Type)
	default:
	}
}
