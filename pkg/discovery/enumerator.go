package discovery

import (
	"fmt"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// SerialEnumerator lists serial endpoints through the platform's
// detailed port enumeration, optionally enriching USB endpoints with
// the manufacturer descriptor string the port list does not carry.
type SerialEnumerator struct {
	usbMeta *USBMetadata
	logger  *zap.Logger
}

// NewSerialEnumerator creates a platform enumerator. When
// resolveManufacturer is set, each USB endpoint's manufacturer string
// is looked up from the device descriptor by VID/PID.
func NewSerialEnumerator(resolveManufacturer bool, logger *zap.Logger) *SerialEnumerator {
	e := &SerialEnumerator{
		logger: logger.With(zap.String("component", "enumerator")),
	}
	if resolveManufacturer {
		e.usbMeta = NewUSBMetadata(logger)
	}
	return e
}

// Enumerate returns the currently visible serial endpoints.
func (e *SerialEnumerator) Enumerate() ([]*Endpoint, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	endpoints := make([]*Endpoint, 0, len(ports))
	for _, p := range ports {
		ep := &Endpoint{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		}

		if ep.IsUSB && e.usbMeta != nil {
			ep.Manufacturer = e.usbMeta.Manufacturer(ep.VID, ep.PID)
		}

		endpoints = append(endpoints, ep)
	}

	e.logger.Debug("Serial endpoints enumerated", zap.Int("count", len(endpoints)))
	return endpoints, nil
}
