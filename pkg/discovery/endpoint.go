// Package discovery finds and opens the one correct serial endpoint
// for a target device among everything the platform enumerates. It
// disambiguates a direct USB link from a serial-CAN bridge and selects
// the matching baud rate.
package discovery

// Endpoint describes one platform-visible serial port candidate with
// its optional USB metadata. Endpoints are produced fresh on each
// enumeration and never mutated afterwards.
type Endpoint struct {
	// Name is the platform port name, e.g. "/dev/ttyACM0" or "COM3".
	Name string `json:"name"`

	// IsUSB reports whether the port is backed by a USB device.
	IsUSB bool `json:"is_usb"`

	// VID and PID are the USB vendor/product IDs as hex strings.
	VID string `json:"vid,omitempty"`
	PID string `json:"pid,omitempty"`

	// SerialNumber is the USB serial-number string, if the device
	// exposes one.
	SerialNumber string `json:"serial_number,omitempty"`

	// Product is the USB product-name string.
	Product string `json:"product,omitempty"`

	// Manufacturer is the USB manufacturer string. The serial
	// enumerator does not expose it on every platform; it may be
	// empty even for USB endpoints.
	Manufacturer string `json:"manufacturer,omitempty"`
}

// Enumerator lists the currently visible serial endpoints.
type Enumerator interface {
	Enumerate() ([]*Endpoint, error)
}
