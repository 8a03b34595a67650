// Package link tracks the connection to one device: the single open
// channel, its status, and the timestamps callers use to detect
// staleness. A State has exactly one owner; concurrent use requires
// external mutual exclusion.
package link

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"fc-link/pkg/discovery"
)

// Status of the link to the device.
type Status string

const (
	StatusNotConnected Status = "NOT_CONNECTED"
	StatusConnected    Status = "CONNECTED"
)

// Label returns the short human-readable form the host shell renders.
func (s Status) Label() string {
	switch s {
	case StatusConnected:
		return "Connected"
	default:
		return "Not connected"
	}
}

// IndicatorColor returns the color hint the host shell renders next to
// the label.
func (s Status) IndicatorColor() string {
	switch s {
	case StatusConnected:
		return "green"
	default:
		return "yellow"
	}
}

// DefaultDisconnectedTimeout is how long the link may go without
// inbound activity before callers should treat it as dead, drop the
// channel, and rediscover.
const DefaultDisconnectedTimeout = time.Second

// ErrNotConnected reports an operation attempted with no channel held
// and no device found to open one on.
var ErrNotConnected = errors.New("no device connected")

// State is the connection state for one logical device. Create one per
// device the application maintains; never share it between devices.
// Invariant: the status is Connected exactly when a channel is held.
type State struct {
	manager *discovery.Manager
	logger  *zap.Logger

	status    Status
	kind      discovery.Kind
	channel   discovery.Channel
	endpoint  *discovery.Endpoint
	sessionID string

	lastSend     time.Time
	lastActivity time.Time
}

// New creates a disconnected State that discovers through manager.
func New(manager *discovery.Manager, logger *zap.Logger) *State {
	now := time.Now()
	return &State{
		manager:      manager,
		logger:       logger.With(zap.String("component", "link")),
		status:       StatusNotConnected,
		lastSend:     now,
		lastActivity: now,
	}
}

// Channel returns a usable channel, running discovery first if none is
// currently held. A held channel is returned as-is without
// re-enumerating; silent disconnects are left to the caller's
// staleness check. Fails with ErrNotConnected when no device can be
// opened.
func (s *State) Channel() (discovery.Channel, error) {
	if s.channel == nil {
		if err := s.Connect(); err != nil {
			return nil, err
		}
	}

	if s.channel == nil {
		return nil, ErrNotConnected
	}
	return s.channel, nil
}

// Connect drops any held channel and re-runs discovery, adopting
// whatever it returns. When nothing is plugged in the state simply
// stays NotConnected and ErrNotConnected is returned; transport faults
// are surfaced as-is. Safe to call repeatedly.
func (s *State) Connect() error {
	s.drop()

	res, err := s.manager.DiscoverAndOpen()
	if err != nil {
		if errors.Is(err, discovery.ErrNoDevice) {
			return ErrNotConnected
		}
		return err
	}

	s.status = StatusConnected
	s.kind = res.Kind
	s.channel = res.Channel
	s.endpoint = res.Endpoint
	s.sessionID = res.SessionID
	s.lastActivity = time.Now()

	return nil
}

// Reset discards the held channel, returning the state to
// NotConnected. The next Channel call performs a fresh discovery.
func (s *State) Reset() {
	if s.channel != nil {
		s.logger.Info("Link reset",
			zap.String("session_id", s.sessionID),
		)
	}
	s.drop()
}

// drop closes and forgets the held channel.
func (s *State) drop() {
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Debug("Failed to close channel", zap.Error(err))
		}
	}
	s.channel = nil
	s.endpoint = nil
	s.sessionID = ""
	s.kind = ""
	s.status = StatusNotConnected
}

// MarkSend records a transmission attempt that reached the channel
// layer.
func (s *State) MarkSend() {
	s.lastSend = time.Now()
}

// MarkActivity records inbound activity. The link itself never reads;
// callers that saw a response call this.
func (s *State) MarkActivity() {
	s.lastActivity = time.Now()
}

// Stale reports whether the link has gone longer than threshold
// without inbound activity. Stale callers should Reset and rediscover.
// There is no background timer; polling this is the caller's job.
func (s *State) Stale(threshold time.Duration) bool {
	return s.status == StatusConnected && time.Since(s.lastActivity) > threshold
}

// Status returns the current connection status.
func (s *State) Status() Status {
	return s.status
}

// Kind returns the classification assigned at open time, or "" while
// disconnected.
func (s *State) Kind() discovery.Kind {
	return s.kind
}

// Endpoint returns the descriptor the channel was opened on, or nil.
func (s *State) Endpoint() *discovery.Endpoint {
	return s.endpoint
}

// SessionID returns the correlation ID of the current connection, or
// "" while disconnected.
func (s *State) SessionID() string {
	return s.sessionID
}

// LastSend returns the time of the last transmission attempt.
func (s *State) LastSend() time.Time {
	return s.lastSend
}

// LastActivity returns the time of the last recorded inbound activity.
func (s *State) LastActivity() time.Time {
	return s.lastActivity
}
