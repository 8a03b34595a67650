package discovery

import (
	"strconv"
	"strings"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

// USBMetadata resolves USB descriptor strings that the serial port
// enumeration does not expose, keyed by vendor/product ID. Lookups are
// best-effort: any failure yields an empty string, never an error, so
// classification degrades to the signals the port list already carries.
type USBMetadata struct {
	logger *zap.Logger
}

// NewUSBMetadata creates a descriptor-string resolver.
func NewUSBMetadata(logger *zap.Logger) *USBMetadata {
	return &USBMetadata{
		logger: logger.With(zap.String("component", "usb-metadata")),
	}
}

// Manufacturer returns the manufacturer string of the USB device with
// the given VID/PID hex strings, or "" if it cannot be read.
func (m *USBMetadata) Manufacturer(vid, pid string) string {
	vendor, err := strconv.ParseUint(vid, 16, 16)
	if err != nil {
		return ""
	}
	product, err := strconv.ParseUint(pid, 16, 16)
	if err != nil {
		return ""
	}

	ctx := gousb.NewContext()
	defer func() {
		if err := ctx.Close(); err != nil {
			m.logger.Debug("Failed to close USB context", zap.Error(err))
		}
	}()

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vendor) && desc.Product == gousb.ID(product)
	})
	defer m.closeAll(devices)
	if err != nil || len(devices) == 0 {
		m.logger.Debug("USB descriptor lookup failed",
			zap.String("vid", vid),
			zap.String("pid", pid),
			zap.Error(err),
		)
		return ""
	}

	manufacturer, err := devices[0].Manufacturer()
	if err != nil {
		m.logger.Debug("Failed to read manufacturer descriptor",
			zap.String("vid", vid),
			zap.String("pid", pid),
			zap.Error(err),
		)
		return ""
	}

	return strings.TrimSpace(manufacturer)
}

// closeAll closes every opened device handle.
func (m *USBMetadata) closeAll(devices []*gousb.Device) {
	for _, device := range devices {
		if device == nil {
			continue
		}
		if err := device.Close(); err != nil {
			m.logger.Debug("Failed to close USB device", zap.Error(err))
		}
	}
}
