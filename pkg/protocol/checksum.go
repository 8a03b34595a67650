package protocol

// TableFromPoly builds the 256-entry CRC-8 lookup table for the given
// polynomial, matching the table the firmware generates at init.
func TableFromPoly(poly byte) [256]byte {
	var table [256]byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// Checksum computes the table-driven CRC-8 over data[:length]. The
// result depends on byte order, so it must be computed only after every
// preceding frame byte is final; the checksum byte itself is never part
// of its own input.
func Checksum(table *[256]byte, data []byte, length int) byte {
	var crc byte
	for _, b := range data[:length] {
		crc = table[crc^b]
	}
	return crc
}
