// Package frame serializes outbound commands into the checksummed byte
// layout the device firmware expects and writes them through the link.
//
// Wire layout: [START, DEVICE_CODE, MSG_TYPE, PAYLOAD..., CRC], where
// the CRC covers every preceding byte.
package frame

import (
	"fmt"

	"fc-link/pkg/link"
	"fc-link/pkg/protocol"
)

// Encode serializes msg and payload into a freshly allocated buffer of
// exactly capacity bytes, including the trailing checksum.
//
// The capacity must equal protocol.FrameSize(payloadSize) for the
// resolved payload size; a mismatch is a caller bug and is rejected
// rather than silently truncated. Payload contents are copied verbatim
// with no validation beyond sizing.
func Encode(cat *protocol.Catalog, msg protocol.MessageType, payload []byte, capacity int) ([]byte, error) {
	payloadSize := cat.PayloadSizeFor(msg, payload)

	if want := protocol.FrameSize(payloadSize); want != capacity {
		return nil, fmt.Errorf("frame capacity mismatch for message 0x%02X: need %d bytes, caller provided %d", msg.Val(), want, capacity)
	}
	if payloadSize > len(payload) {
		return nil, fmt.Errorf("payload too short for message 0x%02X: need %d bytes, have %d", msg.Val(), payloadSize, len(payload))
	}

	buf := make([]byte, capacity)
	buf[0] = cat.StartByte
	buf[1] = cat.DeviceCode
	buf[2] = msg.Val()
	copy(buf[protocol.PayloadStart:protocol.PayloadStart+payloadSize], payload[:payloadSize])

	crcEnd := protocol.PayloadStart + payloadSize
	buf[crcEnd] = protocol.Checksum(&cat.CRCTable, buf, crcEnd)

	return buf, nil
}

// Send encodes msg and writes the whole frame through the link's
// channel in one blocking write. The last-send timestamp is updated on
// every attempt that reaches the channel layer. Write errors and short
// writes are surfaced directly; there is no internal retry.
func Send(st *link.State, cat *protocol.Catalog, msg protocol.MessageType, payload []byte) error {
	ch, err := st.Channel()
	if err != nil {
		return err
	}

	payloadSize := cat.PayloadSizeFor(msg, payload)
	buf, err := Encode(cat, msg, payload, protocol.FrameSize(payloadSize))
	if err != nil {
		return err
	}

	st.MarkSend()

	n, err := ch.Write(buf)
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("incomplete frame write: wrote %d of %d bytes", n, len(buf))
	}

	return nil
}

// SendCmd sends a payload-less command, the only useful data being the
// message type. The resulting frame is four bytes.
func SendCmd(st *link.State, cat *protocol.Catalog, msg protocol.MessageType) error {
	return Send(st, cat, msg, nil)
}
