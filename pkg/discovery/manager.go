package discovery

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Kind classifies how the device is reached.
type Kind string

const (
	// KindDirect means the device exposes its own USB serial number.
	KindDirect Kind = "DIRECT"

	// KindBridged means the device sits behind a serial-CAN adapter
	// identified by a product-name keyword.
	KindBridged Kind = "BRIDGED"
)

// ErrNoDevice reports a scan that found nothing to open. This is the
// expected steady state while no device is plugged in, not a fault;
// callers simply try again later.
var ErrNoDevice = errors.New("no matching device found")

// TransportError wraps an open fault worth surfacing to the operator:
// permission denied, port busy, I/O error. The "device vanished
// mid-scan" race is never reported this way.
type TransportError struct {
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport fault on %s: %v", e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BaudTable maps classification signals to the baud rate the port is
// opened at.
type BaudTable struct {
	// Primary is used for direct USB connections.
	Primary int `json:"primary"`

	// Bridge is used when the endpoint is a serial-CAN bridge.
	Bridge int `json:"bridge"`

	// Alternate overrides the selected baud when the manufacturer
	// field matches AlternateKeyword.
	Alternate int `json:"alternate"`

	// BridgeKeyword is matched case-insensitively against the USB
	// product name to detect a serial-CAN bridge.
	BridgeKeyword string `json:"bridge_keyword"`

	// AlternateKeyword is matched case-insensitively against the USB
	// manufacturer string. A hit overrides the baud rate but not the
	// Direct/Bridged label.
	AlternateKeyword string `json:"alternate_keyword"`
}

// Config holds the identity and selection rules for one target device.
type Config struct {
	// IdentityKey is the expected USB serial-number string, or empty
	// if the device does not expose one.
	IdentityKey string `json:"identity_key"`

	// Bauds selects the open speed from classification signals.
	Bauds BaudTable `json:"bauds"`

	// ReadTimeout bounds reads on the opened channel.
	ReadTimeout time.Duration `json:"read_timeout"`

	// ResolveManufacturer enables the USB descriptor-string lookup
	// for the manufacturer field.
	ResolveManufacturer bool `json:"resolve_manufacturer"`
}

// Manager finds and opens the one correct serial endpoint for the
// configured device, with minimal false positives. It performs no
// retries; retry cadence belongs to the caller.
type Manager struct {
	cfg    *Config
	enum   Enumerator
	opener Opener
	logger *zap.Logger
}

// NewManager creates a manager backed by the platform serial
// enumeration and real port opening.
func NewManager(cfg *Config, logger *zap.Logger) *Manager {
	return NewManagerWith(cfg, NewSerialEnumerator(cfg.ResolveManufacturer, logger), serialOpener{}, logger)
}

// NewManagerWith wires a custom enumerator and opener, for tests and
// alternative transports.
func NewManagerWith(cfg *Config, enum Enumerator, opener Opener, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		enum:   enum,
		opener: opener,
		logger: logger.With(zap.String("component", "discovery")),
	}
}

// Result carries the outcome of a successful discovery.
type Result struct {
	// Channel is the open connection. Ownership passes to the caller.
	Channel Channel

	// Kind is the connection classification, assigned once at open
	// time.
	Kind Kind

	// Endpoint is the descriptor the channel was opened on.
	Endpoint *Endpoint

	// Baud is the rate the port was opened at.
	Baud int

	// SessionID correlates log and event records for this
	// connection's lifetime.
	SessionID string
}

// DiscoverAndOpen enumerates all visible endpoints, classifies them in
// order, and opens the first match at the selected baud. At most one
// endpoint is opened per call; after the first matching open attempt
// the scan stops, whatever the outcome.
//
// A scan that finds nothing, an enumeration failure, and an endpoint
// that vanished between enumeration and open all return ErrNoDevice.
// Any other open failure returns a *TransportError.
func (m *Manager) DiscoverAndOpen() (*Result, error) {
	endpoints, err := m.enum.Enumerate()
	if err != nil {
		// No enumeration is indistinguishable from no device; an
		// unplugged device is an expected steady state.
		m.logger.Debug("Endpoint enumeration failed", zap.Error(err))
		return nil, ErrNoDevice
	}

	for _, ep := range endpoints {
		if !ep.IsUSB {
			continue
		}

		kind, baud, match := m.classify(ep)
		if !match {
			continue
		}

		ch, err := m.opener.Open(ep.Name, baud, m.cfg.ReadTimeout)
		if err != nil {
			if notPresent(err) {
				// The device was unplugged between enumeration and
				// open. Expected race; the next poll re-scans.
				m.logger.Debug("Matched endpoint vanished before open",
					zap.String("port", ep.Name),
				)
				break
			}

			m.logger.Warn("Failed to open matched endpoint",
				zap.String("port", ep.Name),
				zap.Int("baud", baud),
				zap.Error(err),
			)
			return nil, &TransportError{Port: ep.Name, Err: err}
		}

		res := &Result{
			Channel:   ch,
			Kind:      kind,
			Endpoint:  ep,
			Baud:      baud,
			SessionID: uuid.New().String(),
		}

		m.logger.Info("Device connected",
			zap.String("port", ep.Name),
			zap.String("kind", string(kind)),
			zap.Int("baud", baud),
			zap.String("session_id", res.SessionID),
		)

		return res, nil
	}

	return nil, ErrNoDevice
}

// classify applies the selection rules to one USB endpoint. The serial
// number is checked first, then the bridge product keyword; the
// manufacturer keyword overrides the baud rate of a match without
// changing its kind.
func (m *Manager) classify(ep *Endpoint) (Kind, int, bool) {
	kind := KindDirect
	baud := m.cfg.Bauds.Primary
	match := false

	if m.cfg.IdentityKey != "" && ep.SerialNumber == m.cfg.IdentityKey {
		match = true
	} else if m.cfg.Bauds.BridgeKeyword != "" &&
		containsFold(ep.Product, m.cfg.Bauds.BridgeKeyword) {
		kind = KindBridged
		baud = m.cfg.Bauds.Bridge
		match = true
	}

	if match && m.cfg.Bauds.AlternateKeyword != "" &&
		containsFold(ep.Manufacturer, m.cfg.Bauds.AlternateKeyword) {
		baud = m.cfg.Bauds.Alternate
	}

	return kind, baud, match
}

// notPresent reports whether err means the port disappeared between
// enumeration and open.
func notPresent(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return portErr.Code() == serial.PortNotFound
	}
	return errors.Is(err, os.ErrNotExist)
}

// containsFold is a case-insensitive substring match.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
