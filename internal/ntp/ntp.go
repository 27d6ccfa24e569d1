package ntp

type Mode byte

const (
	RESERVED Mode = iota
	SYMMETRIC_ACTIVE
	SYMMETRIC_PASSIVE
	CLIENT
	SERVER
	BROADCAST_SERVER
	BROADCAST_CLIENT
	RESERVED_PRIVATE_USE
)

func (m Mode) String() string {
	switch m {
	case SYMMETRIC_ACTIVE:
		return "symmetric active"
	case SYMMETRIC_PASSIVE:
		return "symmetric passive"
	case CLIENT:
		return "client"
	case SERVER:
		return "server"
	case BROADCAST_SERVER:
		return "broadcast"
	case BROADCAST_CLIENT:
		return "broadcast client"
	default:
		return "reserved"
	}
}

const (
	Port       = "123" // NTP port number
	PacketSize = 48    // header without extension fields or MAC
	Version    = 4
)

// Request header values. LI=3 (clock unsynchronized), VN=4, Mode=3.
const (
	requestLiVnMode  byte = 3<<6 | Version<<3 | byte(CLIENT)
	requestStratum   byte = 0
	requestPoll      byte = 6
	requestPrecision byte = 0xEC
)

// Bytes 12-15 of every request. Servers ignore the reference ID of a
// client packet, so this only identifies our requests on the wire.
var requestFingerprint = [4]byte{0x31, 0x4E, 0x31, 0x34}

// Offset of the integer seconds of the transmit timestamp.
const transmitSecondsOffset = 40
