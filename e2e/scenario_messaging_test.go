package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"courier/client"
)

type testMessagingSuite struct {
	BaseSuite
}

func TestMessagingSuite(t *testing.T) {
	suite.Run(t, &testMessagingSuite{})
}

func (s *testMessagingSuite) TestFullMessagingFlow() {
	var (
		aliceID, bobID string
		alice, bob     *client.Session
	)

	s.Step("Register and connect two users")
	aliceID, alice = s.ConnectedUser(fmt.Sprintf("alice-%s", uuid.NewString()[:8]))
	bobID, bob = s.ConnectedUser(fmt.Sprintf("bob-%s", uuid.NewString()[:8]))

	s.Step("Alice sends, Bob receives the full record")
	s.Require().NoError(alice.Send(bobID, "hello bob"))

	frame := s.Receive(bob)
	s.Require().Equal("message", frame.Type)
	s.Require().Equal("hello bob", frame.Content)
	// Sender identity comes from Alice's verified handshake, never her payload
	s.Require().Equal(aliceID, frame.SenderID)
	s.Require().NotEmpty(frame.MessageID)
	s.Require().False(frame.CreatedAt.IsZero())

	s.Step("Replies flow the other way on the same connections")
	s.Require().NoError(bob.Send(aliceID, "hi alice"))
	reply := s.Receive(alice)
	s.Require().Equal(bobID, reply.SenderID)
	s.Require().Equal("hi alice", reply.Content)

	s.Step("Messages to an offline recipient are accepted silently")
	offlineID := uuid.NewString()
	s.Require().NoError(alice.Send(offlineID, "for later"))
	// No error frame comes back; the message is persisted, not pushed
	s.ExpectSilence(alice, 500*time.Millisecond)

	s.Step("A malformed recipient produces an error frame for the sender only")
	s.Require().NoError(alice.Send("not-a-uuid", "oops"))
	errFrame := s.Receive(alice)
	s.Require().Equal("error", errFrame.Type)
	s.Require().NotEmpty(errFrame.Error)
	s.ExpectSilence(bob, 500*time.Millisecond)
}

func (s *testMessagingSuite) TestMultiDeviceFanout() {
	s.Step("Bob connects from two devices")
	bobName := fmt.Sprintf("bob-%s", uuid.NewString()[:8])
	bobID, device1 := s.ConnectedUser(bobName)

	// Second session for the same account
	api := client.New(s.BaseURL)
	token, err := api.Login(bobName+"@example.com", "Sup3r-Secret-Pass!")
	s.Require().NoError(err)
	device2, err := api.Connect(s.T().Context(), token)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = device2.Close() })

	s.Step("A single send reaches both devices with the same record")
	_, alice := s.ConnectedUser(fmt.Sprintf("alice-%s", uuid.NewString()[:8]))
	s.Require().NoError(alice.Send(bobID, "ping all devices"))

	first := s.Receive(device1)
	second := s.Receive(device2)
	s.Require().Equal(first.MessageID, second.MessageID)
	s.Require().Equal("ping all devices", first.Content)
	s.Require().Equal("ping all devices", second.Content)
}

func (s *testMessagingSuite) TestOrderPreservedPerSender() {
	_, alice := s.ConnectedUser(fmt.Sprintf("alice-%s", uuid.NewString()[:8]))
	bobID, bob := s.ConnectedUser(fmt.Sprintf("bob-%s", uuid.NewString()[:8]))

	s.Step("Ten messages submitted in order arrive in order")
	for i := 0; i < 10; i++ {
		s.Require().NoError(alice.Send(bobID, fmt.Sprintf("message %02d", i)))
	}
	for i := 0; i < 10; i++ {
		frame := s.Receive(bob)
		s.Require().Equal(fmt.Sprintf("message %02d", i), frame.Content)
	}
}

func (s *testMessagingSuite) TestDiagnosticEndpoint() {
	s.Step("The diagnostic surface reports store and session totals")
	resp, err := http.Get(s.BaseURL + "/test")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		MessageCount    *int `json:"message_count"`
		LiveConnections *int `json:"live_connections"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Require().NotNil(body.MessageCount)
	s.Require().NotNil(body.LiveConnections)
}
