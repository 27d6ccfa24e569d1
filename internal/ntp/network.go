package ntp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
)

// Header is the fixed part of an NTP packet as seen by a client.
type Header struct {
	Leap    byte
	Version byte
	Mode    Mode
	FieldsEncoded
}

type FieldsEncoded struct {
	Stratum   byte             /* stratum */
	Poll      int8             /* poll interval */
	Precision int8             /* precision */
	Rootdelay ShortEncoded     /* root delay */
	Rootdisp  ShortEncoded     /* root dispersion */
	Refid     ShortEncoded     /* reference ID */
	Reftime   TimestampEncoded /* reference time */
	Org       TimestampEncoded /* origin timestamp */
	Rec       TimestampEncoded /* receive timestamp */
	Xmt       TimestampEncoded /* transmit timestamp */
}

type TimestampEncoded = uint64

type ShortEncoded = uint32

var ErrShortPacket = errors.New("packet shorter than an NTP header")

// EncodeRequest writes a client request into packet in place.
func EncodeRequest(packet *[PacketSize]byte) {
	*packet = [PacketSize]byte{}
	packet[0] = requestLiVnMode
	packet[1] = requestStratum
	packet[2] = requestPoll
	packet[3] = requestPrecision
	// 8 bytes of zero for root delay and root dispersion
	copy(packet[12:16], requestFingerprint[:])
}

// TransmitSeconds returns the integer seconds since 1900 of the transmit
// timestamp, assembled from the two big-endian 16-bit words at bytes 40-43.
func TransmitSeconds(packet *[PacketSize]byte) uint32 {
	hi := uint32(binary.BigEndian.Uint16(packet[transmitSecondsOffset:]))
	lo := uint32(binary.BigEndian.Uint16(packet[transmitSecondsOffset+2:]))
	return hi<<16 | lo
}

// ParseHeader decodes the header fields of a received packet. The requester
// itself never calls this; it exists for display.
func ParseHeader(encoded []byte) (*Header, error) {
	if len(encoded) < PacketSize {
		return nil, ErrShortPacket
	}

	reader := bytes.NewReader(encoded)
	firstByte, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	fieldsEncoded := FieldsEncoded{}
	if err := binary.Read(reader, binary.BigEndian, &fieldsEncoded); err != nil {
		return nil, err
	}

	return &Header{
		Leap:          firstByte >> 6,
		Version:       (firstByte >> 3) & 0b111,
		Mode:          Mode(firstByte & 0b111),
		FieldsEncoded: fieldsEncoded,
	}, nil
}

// ReferenceName renders the reference ID the way ntpq does: ASCII for
// stratum 0 and 1 (kiss codes and reference clocks), an IPv4 address above.
func (h *Header) ReferenceName() string {
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], h.Refid)
	if h.Stratum < 2 {
		return string(bytes.TrimRight(raw[:], "\x00"))
	}
	return net.IP(raw[:]).String()
}
