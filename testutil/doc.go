// Package testutil provides test doubles and fixtures for connector tests.
//
// # Core Components
//
// MockHub - In-process websocket hub built on httptest:
//   - Accepts connector connections and records handshake headers
//   - Sends query frames and collects reply frames
//   - Can reject handshakes and drop connections to exercise reconnects
//
// StaticQuerier - In-memory backend returning fixed candidates, with
// configurable errors and call tracking.
//
// MockMatcher - Records candidate sets and returns a fixed subset.
//
// RecordingReplier - Collects the replies a handler writes.
//
// Fixtures:
//   - Items: a small inventory in the standard schema
//   - DBDocument / APIDocument: tenant configuration documents
//   - WriteConfig: writes a document to a temporary file
//
// # Usage
//
//	func TestRoundTrip(t *testing.T) {
//	    hub := testutil.NewMockHub(t)
//	    client, _ := hubclient.New(hubclient.DefaultConfig(hub.URL(), "t"), handler)
//	    go client.Run(ctx)
//
//	    hub.WaitConnected(t, time.Second)
//	    hub.SendQuery(t, testutil.Items[0])
//	    resp := hub.NextReply(t, time.Second)
//	    assert.True(t, resp.Found())
//	}
//
// All types are safe for concurrent use. Prefer real dependencies (in-memory
// SQLite, httptest servers) when they are cheap; use these doubles for
// routing and connection behaviour.
package testutil
