package middleware

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsys/fleet/codec"
	"github.com/fleetsys/fleet/controller"
	"github.com/fleetsys/fleet/dataptr"
	"github.com/fleetsys/fleet/executor"
	"github.com/fleetsys/fleet/future"
	"github.com/fleetsys/fleet/logger"
	"github.com/fleetsys/fleet/operation"
	"github.com/fleetsys/fleet/result"
)

// newParticipantPair wires two Participants over an in-memory net.Pipe
// connection and starts both Run loops.
func newParticipantPair(t *testing.T) (*Participant, *Participant) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	server := NewParticipant(serverConn, logger.Default())
	client := NewParticipant(clientConn, logger.Default())

	go server.Run()
	go client.Run()

	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	return server, client
}

func waitReady[T any](t *testing.T, fut *future.Future[T]) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fut.IsReady() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("future never became ready")
}

func TestWireNameJoinsInterfaceAndMember(t *testing.T) {
	assert.Equal(t, "Greeter_Message", WireName("Greeter", "Message"))
}

func TestPublisherSubscriberRoundTripsOverTheWire(t *testing.T) {
	server, client := newParticipantPair(t)

	sub := NewSubscriber[string](client, "Greeter", "Message", codec.JSONTransformer[string]{})
	pub := NewPublisher[string](server, "Greeter", "Message", codec.JSONTransformer[string]{})

	received := make(chan string, 1)
	sub.RegisterHandler("Listener", func(sample dataptr.ConstDataPtr[string]) {
		received <- *sample.Get()
	})
	sub.StartEventHandlerForModule("Listener")

	require.NoError(t, pub.Set("hello over the wire"))

	select {
	case msg := <-received:
		assert.Equal(t, "hello over the wire", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received the published sample")
	}
}

func doubleHandler(in int) result.Result[int] { return result.Ok(in * 2) }

func TestOperationClientServerRoundTripsOverTheWire(t *testing.T) {
	server, client := newParticipantPair(t)

	provider := operation.NewProvider[int, int]("Double")
	require.NoError(t, provider.RegisterHandler(doubleHandler))
	NewOperationServer[int, int](server, "Math", "Double", provider, codec.JSONTransformer[int]{}, codec.JSONTransformer[int]{})

	clientSide := NewOperationClient[int, int](client, "Math", "Double", codec.JSONTransformer[int]{}, codec.JSONTransformer[int]{})

	fut := clientSide.Call(21)
	waitReady(t, fut)

	res := fut.GetResult()
	require.True(t, res.HasValue())
	assert.Equal(t, 42, res.Value())
}

func TestOperationClientSurfacesMissingHandlerError(t *testing.T) {
	server, client := newParticipantPair(t)

	provider := operation.NewProvider[int, int]("Unhandled")
	NewOperationServer[int, int](server, "Math", "Unhandled", provider, codec.JSONTransformer[int]{}, codec.JSONTransformer[int]{})

	clientSide := NewOperationClient[int, int](client, "Math", "Unhandled", codec.JSONTransformer[int]{}, codec.JSONTransformer[int]{})

	fut := clientSide.Call(1)
	waitReady(t, fut)

	res := fut.GetResult()
	assert.False(t, res.HasValue())
	assert.Contains(t, res.Error().Text, "No operation handler registered")
}

type reportingModule struct {
	controller.Base
}

func (m *reportingModule) Start() { m.ReportOperational() }

func TestIntrospectionServerReportsModulesAndTasks(t *testing.T) {
	ctrl := controller.New(10*time.Millisecond, logger.Default(), nil)
	require.NoError(t, ctrl.Register("A", nil, func(h *controller.Handle) (controller.Module, error) {
		_, err := h.Executor().RunPeriodic(10*time.Millisecond, func() {}, 0, 0)
		if err != nil {
			return nil, err
		}
		return &reportingModule{Base: controller.NewBase(h)}, nil
	}))
	require.NoError(t, ctrl.DoInitialize())
	require.NoError(t, ctrl.DoStart())
	defer ctrl.DoShutdown()

	srv := NewIntrospectionServer(ctrl, ctrl.Executor())
	srv.RegisterComponent("A_Status", func() any { return "ok" })

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	assertGetContains(t, ts.URL+"/modules", `"name":"A"`)
	assertGetContains(t, ts.URL+"/tasks", `"owner":"A"`)
	assertGetContains(t, ts.URL+"/components", `A_Status`)
	assertGetContains(t, ts.URL+"/components/A_Status", `"data":"ok"`)
}

func TestIntrospectionServerReturns404ForUnknownComponent(t *testing.T) {
	ex := executor.New(10*time.Millisecond, logger.Default(), nil)
	ctrl := controller.New(10*time.Millisecond, logger.Default(), nil)
	srv := NewIntrospectionServer(ctrl, ex)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/components/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func assertGetContains(t *testing.T, url, substr string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), substr)
}
