package flowtrack

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/zeebo/xxh3"
)

// IP protocol numbers carried in Flow.Proto.
const (
	ProtoTCP = 6
	ProtoUDP = 17
)

// Flow identifies one direction of a TCP or UDP conversation. Addresses are
// IPv4 in host-independent big-endian order. Flow is comparable and used
// directly as a map key.
type Flow struct {
	SrcIP   uint32
	DstIP   uint32
	SrcPort uint16
	DstPort uint16
	Proto   uint8
}

// Reverse returns the flow with its endpoints swapped.
func (f Flow) Reverse() Flow {
	f.SrcIP, f.DstIP = f.DstIP, f.SrcIP
	f.SrcPort, f.DstPort = f.DstPort, f.SrcPort
	return f
}

// SymmetricDigest hashes the direction-folded tuple, so a flow and its
// reverse share a digest. Used to count conversations rather than
// directions.
func (f Flow) SymmetricDigest() uint64 {
	if f.DstIP < f.SrcIP || (f.DstIP == f.SrcIP && f.DstPort < f.SrcPort) {
		f = f.Reverse()
	}
	var b [13]byte
	binary.BigEndian.PutUint32(b[0:], f.SrcIP)
	binary.BigEndian.PutUint32(b[4:], f.DstIP)
	binary.BigEndian.PutUint16(b[8:], f.SrcPort)
	binary.BigEndian.PutUint16(b[10:], f.DstPort)
	b[12] = f.Proto
	return xxh3.Hash(b[:])
}

func (f Flow) String() string {
	return fmt.Sprintf("%s:%d>%s:%d/%d",
		ipv4Str(f.SrcIP), f.SrcPort, ipv4Str(f.DstIP), f.DstPort, f.Proto)
}

func ipv4Str(ip uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], ip)
	return netip.AddrFrom4(b).String()
}

// Packet is one record extracted from a capture: a timestamp, the on-wire
// length, and the flow tuple when the packet carried IPv4 TCP or UDP.
type Packet struct {
	TS      int64 // unix nanoseconds
	WireLen uint32
	Flow    Flow
	HasFlow bool
}
