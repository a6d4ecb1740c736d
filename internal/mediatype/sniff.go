// SPDX-License-Identifier: MIT

package mediatype

// tsPacketSize is the fixed MPEG-TS packet length; every packet starts with
// the sync byte 0x47.
const (
	tsPacketSize = 188
	tsSyncByte   = 0x47
)

// SniffTS reports whether the buffer is positively MPEG-TS: the first byte
// is the sync byte and at least one subsequent packet boundary also carries
// it. Buffers shorter than one packet are never positive.
func SniffTS(buf []byte) bool {
	if len(buf) < tsPacketSize || buf[0] != tsSyncByte {
		return false
	}
	for _, off := range []int{188, 376, 564, 752, 940} {
		if off < len(buf) && buf[off] == tsSyncByte {
			return true
		}
	}
	return false
}

// Arbitrate decides the response Content-Type from the payload, the URL, and
// the upstream-declared type, in that order of trust.
func Arbitrate(buf []byte, rawURL, upstreamType string) string {
	if SniffTS(buf) {
		return MimeTS
	}
	if IsM3U8(rawURL) && upstreamType != MimeM3U8 {
		return MimeM3U8
	}
	if IsDisguisedSegment(rawURL) {
		return MimeTS
	}
	if upstreamType != "" {
		return upstreamType
	}
	return MimeOctet
}
