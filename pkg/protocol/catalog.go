// Package protocol carries the wire contract shared with the device
// firmware: frame constants, the per-message-type payload sizing rules,
// and the checksum algorithm. The values themselves are published by
// the firmware build; this package only gives them a shape the link
// layer can consume.
package protocol

// PayloadStart is the byte offset where the payload begins. The header
// is always [start, device code, message type].
const PayloadStart = 3

// MessageType describes one outbound command from the firmware catalog.
type MessageType interface {
	// Val returns the message-type byte placed in the frame header.
	Val() byte

	// PayloadSize returns the declared payload size in bytes.
	PayloadSize() int
}

// Catalog holds the constants a firmware build publishes for its wire
// format. A Catalog is immutable once constructed and safe to share.
type Catalog struct {
	// StartByte marks the beginning of every frame.
	StartByte byte

	// DeviceCode identifies the PC/host as the frame originator,
	// distinguishing host frames from firmware-originated ones.
	DeviceCode byte

	// VariableMsg is the one message type whose payload size is read
	// from the payload itself rather than declared up front.
	VariableMsg byte

	// LengthFieldIndex is the offset of the length byte inside a
	// variable-size payload.
	LengthFieldIndex int

	// VariableOverhead is added to the length byte to obtain the true
	// payload size of a variable-size message.
	VariableOverhead int

	// CRCTable is the polynomial-derived lookup table used for the
	// frame checksum.
	CRCTable [256]byte
}

// Reference firmware constants.
const (
	DefaultStartByte    byte = 0xA5
	DefaultDeviceCodePC byte = 0x02
	DefaultCRCPoly      byte = 0xAB

	// Telemetry frames carry a length byte at payload[1]; the true
	// payload size is that byte plus the encapsulation header size.
	DefaultTelemetryMsg      byte = 0x46
	DefaultLengthFieldIndex       = 1
	DefaultTelemetryOverhead      = 8
)

// DefaultCatalog returns the catalog for the reference firmware build.
// Applications talking to other builds construct their own Catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		StartByte:        DefaultStartByte,
		DeviceCode:       DefaultDeviceCodePC,
		VariableMsg:      DefaultTelemetryMsg,
		LengthFieldIndex: DefaultLengthFieldIndex,
		VariableOverhead: DefaultTelemetryOverhead,
		CRCTable:         TableFromPoly(DefaultCRCPoly),
	}
}

// PayloadSizeFor resolves the effective payload size for msg. For the
// catalog's variable-size message type the size comes from the length
// field inside the payload; every other type uses its declared size.
func (c *Catalog) PayloadSizeFor(msg MessageType, payload []byte) int {
	if msg.Val() == c.VariableMsg && len(payload) > c.LengthFieldIndex {
		return int(payload[c.LengthFieldIndex]) + c.VariableOverhead
	}
	return msg.PayloadSize()
}

// FrameSize returns the full frame size for a payload of n bytes:
// header, payload, and the trailing checksum byte.
func FrameSize(payloadSize int) int {
	return PayloadStart + payloadSize + 1
}
