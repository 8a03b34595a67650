package link

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fc-link/pkg/discovery"
)

type countingEnumerator struct {
	endpoints []*discovery.Endpoint
	calls     int
}

func (e *countingEnumerator) Enumerate() ([]*discovery.Endpoint, error) {
	e.calls++
	return e.endpoints, nil
}

type countingOpener struct {
	channel discovery.Channel
	err     error
	calls   int
}

func (o *countingOpener) Open(name string, baud int, timeout time.Duration) (discovery.Channel, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	return o.channel, nil
}

type fakeChannel struct {
	closed int
}

func (c *fakeChannel) Read(p []byte) (int, error)           { return 0, nil }
func (c *fakeChannel) Write(p []byte) (int, error)          { return len(p), nil }
func (c *fakeChannel) Close() error                         { c.closed++; return nil }
func (c *fakeChannel) SetReadTimeout(t time.Duration) error { return nil }

func newTestState(enum discovery.Enumerator, opener discovery.Opener) *State {
	cfg := &discovery.Config{
		IdentityKey: "AN",
		Bauds:       discovery.BaudTable{Primary: 460800},
		ReadTimeout: 10 * time.Millisecond,
	}
	return New(discovery.NewManagerWith(cfg, enum, opener, zap.NewNop()), zap.NewNop())
}

func matchingEndpoints() []*discovery.Endpoint {
	return []*discovery.Endpoint{
		{Name: "/dev/ttyACM0", IsUSB: true, SerialNumber: "AN"},
	}
}

func TestChannelNoDevice(t *testing.T) {
	st := newTestState(&countingEnumerator{}, &countingOpener{})

	_, err := st.Channel()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, StatusNotConnected, st.Status())
	assert.Empty(t, st.SessionID())
}

func TestChannelLazyConnect(t *testing.T) {
	enum := &countingEnumerator{endpoints: matchingEndpoints()}
	opener := &countingOpener{channel: &fakeChannel{}}
	st := newTestState(enum, opener)

	ch, err := st.Channel()
	require.NoError(t, err)
	require.NotNil(t, ch)

	assert.Equal(t, StatusConnected, st.Status())
	assert.Equal(t, discovery.KindDirect, st.Kind())
	assert.Equal(t, "/dev/ttyACM0", st.Endpoint().Name)
	assert.NotEmpty(t, st.SessionID())
}

func TestChannelReusesHeldChannel(t *testing.T) {
	enum := &countingEnumerator{endpoints: matchingEndpoints()}
	opener := &countingOpener{channel: &fakeChannel{}}
	st := newTestState(enum, opener)

	first, err := st.Channel()
	require.NoError(t, err)
	second, err := st.Channel()
	require.NoError(t, err)

	assert.Same(t, first.(*fakeChannel), second.(*fakeChannel))

	// A held channel must not trigger another scan or open.
	assert.Equal(t, 1, enum.calls)
	assert.Equal(t, 1, opener.calls)
}

func TestConnectReplacesHeldChannel(t *testing.T) {
	ch := &fakeChannel{}
	enum := &countingEnumerator{endpoints: matchingEndpoints()}
	opener := &countingOpener{channel: ch}
	st := newTestState(enum, opener)

	require.NoError(t, st.Connect())
	firstSession := st.SessionID()

	require.NoError(t, st.Connect())

	assert.Equal(t, 1, ch.closed)
	assert.Equal(t, 2, opener.calls)
	assert.NotEqual(t, firstSession, st.SessionID())
}

func TestConnectSurfacesTransportFault(t *testing.T) {
	cause := errors.New("permission denied")
	enum := &countingEnumerator{endpoints: matchingEndpoints()}
	st := newTestState(enum, &countingOpener{err: cause})

	err := st.Connect()
	require.Error(t, err)

	var transportErr *discovery.TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.NotErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, StatusNotConnected, st.Status())
}

func TestResetClosesChannel(t *testing.T) {
	ch := &fakeChannel{}
	enum := &countingEnumerator{endpoints: matchingEndpoints()}
	opener := &countingOpener{channel: ch}
	st := newTestState(enum, opener)

	_, err := st.Channel()
	require.NoError(t, err)

	st.Reset()

	assert.Equal(t, 1, ch.closed)
	assert.Equal(t, StatusNotConnected, st.Status())
	assert.Nil(t, st.Endpoint())
	assert.Empty(t, st.SessionID())
	assert.Equal(t, discovery.Kind(""), st.Kind())

	// The next Channel call runs a fresh discovery.
	_, err = st.Channel()
	require.NoError(t, err)
	assert.Equal(t, 2, enum.calls)
}

func TestResetWhileDisconnectedIsNoop(t *testing.T) {
	st := newTestState(&countingEnumerator{}, &countingOpener{})

	st.Reset()
	assert.Equal(t, StatusNotConnected, st.Status())
}

func TestStaleRequiresConnection(t *testing.T) {
	st := newTestState(&countingEnumerator{}, &countingOpener{})

	// A disconnected link is never stale, however old its timestamps.
	assert.False(t, st.Stale(0))
}

func TestStaleAfterThreshold(t *testing.T) {
	enum := &countingEnumerator{endpoints: matchingEndpoints()}
	st := newTestState(enum, &countingOpener{channel: &fakeChannel{}})

	require.NoError(t, st.Connect())

	assert.False(t, st.Stale(time.Hour))

	time.Sleep(2 * time.Millisecond)
	assert.True(t, st.Stale(time.Millisecond))

	st.MarkActivity()
	assert.False(t, st.Stale(time.Hour))
}

func TestMarkSendAdvances(t *testing.T) {
	st := newTestState(&countingEnumerator{}, &countingOpener{})

	before := st.LastSend()
	time.Sleep(time.Millisecond)
	st.MarkSend()

	assert.True(t, st.LastSend().After(before))
}

func TestStatusRendering(t *testing.T) {
	assert.Equal(t, "Not connected", StatusNotConnected.Label())
	assert.Equal(t, "yellow", StatusNotConnected.IndicatorColor())
	assert.Equal(t, "Connected", StatusConnected.Label())
	assert.Equal(t, "green", StatusConnected.IndicatorColor())
}
