package discovery

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEnumerator struct {
	endpoints []*Endpoint
	err       error
}

func (e *fakeEnumerator) Enumerate() ([]*Endpoint, error) {
	return e.endpoints, e.err
}

type openCall struct {
	name string
	baud int
}

type fakeOpener struct {
	calls []openCall
	err   error
}

func (o *fakeOpener) Open(name string, baud int, timeout time.Duration) (Channel, error) {
	o.calls = append(o.calls, openCall{name: name, baud: baud})
	if o.err != nil {
		return nil, o.err
	}
	return &fakeChannel{}, nil
}

type fakeChannel struct {
	closed bool
}

func (c *fakeChannel) Read(p []byte) (int, error)           { return 0, nil }
func (c *fakeChannel) Write(p []byte) (int, error)          { return len(p), nil }
func (c *fakeChannel) Close() error                         { c.closed = true; return nil }
func (c *fakeChannel) SetReadTimeout(t time.Duration) error { return nil }

func testConfig() *Config {
	return &Config{
		IdentityKey: "AN",
		Bauds: BaudTable{
			Primary:          460800,
			Bridge:           115200,
			Alternate:        921600,
			BridgeKeyword:    "slcan",
			AlternateKeyword: "wch",
		},
		ReadTimeout: 10 * time.Millisecond,
	}
}

func newTestManager(enum Enumerator, opener Opener) *Manager {
	return NewManagerWith(testConfig(), enum, opener, zap.NewNop())
}

func TestDiscoverDirectMatch(t *testing.T) {
	enum := &fakeEnumerator{endpoints: []*Endpoint{
		{Name: "/dev/ttyACM0", IsUSB: true, SerialNumber: "AN"},
	}}
	opener := &fakeOpener{}

	res, err := newTestManager(enum, opener).DiscoverAndOpen()
	require.NoError(t, err)

	assert.Equal(t, KindDirect, res.Kind)
	assert.Equal(t, 460800, res.Baud)
	assert.Equal(t, "/dev/ttyACM0", res.Endpoint.Name)
	assert.NotEmpty(t, res.SessionID)
	require.Len(t, opener.calls, 1)
	assert.Equal(t, openCall{name: "/dev/ttyACM0", baud: 460800}, opener.calls[0])
}

func TestDiscoverDirectWinsOverKeywords(t *testing.T) {
	// A serial-number match is Direct even when the product name also
	// carries the bridge keyword.
	enum := &fakeEnumerator{endpoints: []*Endpoint{
		{Name: "COM7", IsUSB: true, SerialNumber: "AN", Product: "SLCAN-Adapter"},
	}}

	res, err := newTestManager(enum, &fakeOpener{}).DiscoverAndOpen()
	require.NoError(t, err)
	assert.Equal(t, KindDirect, res.Kind)
	assert.Equal(t, 460800, res.Baud)
}

func TestDiscoverBridgeKeywordCaseInsensitive(t *testing.T) {
	enum := &fakeEnumerator{endpoints: []*Endpoint{
		{Name: "/dev/ttyUSB0", IsUSB: true, SerialNumber: "other", Product: "SLCAN-Adapter"},
	}}
	opener := &fakeOpener{}

	res, err := newTestManager(enum, opener).DiscoverAndOpen()
	require.NoError(t, err)

	assert.Equal(t, KindBridged, res.Kind)
	assert.Equal(t, 115200, res.Baud)
}

func TestDiscoverManufacturerOverridesBaudNotKind(t *testing.T) {
	enum := &fakeEnumerator{endpoints: []*Endpoint{
		{Name: "/dev/ttyACM1", IsUSB: true, SerialNumber: "AN", Manufacturer: "WCH.CN"},
	}}

	res, err := newTestManager(enum, &fakeOpener{}).DiscoverAndOpen()
	require.NoError(t, err)

	assert.Equal(t, KindDirect, res.Kind)
	assert.Equal(t, 921600, res.Baud)
}

func TestDiscoverBridgedWithManufacturerOverride(t *testing.T) {
	enum := &fakeEnumerator{endpoints: []*Endpoint{
		{Name: "/dev/ttyUSB1", IsUSB: true, Product: "slcan bridge", Manufacturer: "wch"},
	}}

	res, err := newTestManager(enum, &fakeOpener{}).DiscoverAndOpen()
	require.NoError(t, err)

	assert.Equal(t, KindBridged, res.Kind)
	assert.Equal(t, 921600, res.Baud)
}

func TestDiscoverSkipsNonUSB(t *testing.T) {
	enum := &fakeEnumerator{endpoints: []*Endpoint{
		{Name: "/dev/ttyS0", IsUSB: false, SerialNumber: "AN"},
	}}
	opener := &fakeOpener{}

	_, err := newTestManager(enum, opener).DiscoverAndOpen()
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.Empty(t, opener.calls)
}

func TestDiscoverNoEndpoints(t *testing.T) {
	_, err := newTestManager(&fakeEnumerator{}, &fakeOpener{}).DiscoverAndOpen()
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestDiscoverEnumerationFailure(t *testing.T) {
	enum := &fakeEnumerator{err: errors.New("platform enumeration failed")}

	// A broken enumeration is treated like an empty one.
	_, err := newTestManager(enum, &fakeOpener{}).DiscoverAndOpen()
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestDiscoverFirstMatchWins(t *testing.T) {
	enum := &fakeEnumerator{endpoints: []*Endpoint{
		{Name: "/dev/ttyACM0", IsUSB: true, SerialNumber: "AN"},
		{Name: "/dev/ttyACM1", IsUSB: true, SerialNumber: "AN"},
	}}
	opener := &fakeOpener{}

	res, err := newTestManager(enum, opener).DiscoverAndOpen()
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", res.Endpoint.Name)
	assert.Len(t, opener.calls, 1)
}

func TestDiscoverVanishedPortSwallowed(t *testing.T) {
	enum := &fakeEnumerator{endpoints: []*Endpoint{
		{Name: "/dev/ttyACM0", IsUSB: true, SerialNumber: "AN"},
		{Name: "/dev/ttyACM1", IsUSB: true, SerialNumber: "AN"},
	}}
	opener := &fakeOpener{err: os.ErrNotExist}

	_, err := newTestManager(enum, opener).DiscoverAndOpen()
	assert.ErrorIs(t, err, ErrNoDevice)

	// The scan stops after the first matching open attempt; the
	// second candidate is left for the next poll.
	assert.Len(t, opener.calls, 1)
}

func TestDiscoverTransportFaultReported(t *testing.T) {
	enum := &fakeEnumerator{endpoints: []*Endpoint{
		{Name: "/dev/ttyACM0", IsUSB: true, SerialNumber: "AN"},
	}}
	cause := errors.New("permission denied")
	opener := &fakeOpener{err: cause}

	_, err := newTestManager(enum, opener).DiscoverAndOpen()
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "/dev/ttyACM0", transportErr.Port)
	assert.ErrorIs(t, err, cause)
}

func TestClassifyEmptyIdentityKeyNeverDirect(t *testing.T) {
	cfg := testConfig()
	cfg.IdentityKey = ""
	m := NewManagerWith(cfg, &fakeEnumerator{}, &fakeOpener{}, zap.NewNop())

	// An empty identity key must not match endpoints with empty
	// serial numbers.
	_, _, match := m.classify(&Endpoint{Name: "COM3", IsUSB: true, SerialNumber: ""})
	assert.False(t, match)
}
