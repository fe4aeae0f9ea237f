// Package capture reads packet records out of pcap and pcapng files,
// transparently decompressing zstd, gzip and lz4 streams.
package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pcaplab/flowtrack"
	"github.com/pcaplab/flowtrack/logging"
)

var logger = logging.New("capture")

// ErrUnknownFormat is returned when the input is neither a capture file nor
// a recognized compressed stream.
var ErrUnknownFormat = errors.New("capture: unknown file format")

// crcBytes is the Ethernet FCS, not included in capture record lengths.
const crcBytes = 4

// ethHeaderBytes compensates wire lengths of raw-IP captures, which strip
// the Ethernet header.
const ethHeaderBytes = 14

const sniffBuffer = 64 * 1024

var (
	magicZstd     = []byte{0x28, 0xB5, 0x2F, 0xFD}
	magicGzip     = []byte{0x1F, 0x8B}
	magicLz4      = []byte{0x04, 0x22, 0x4D, 0x18}
	magicPcapBE   = []byte{0xA1, 0xB2, 0xC3, 0xD4}
	magicPcapLE   = []byte{0xD4, 0xC3, 0xB2, 0xA1}
	magicPcapNsBE = []byte{0xA1, 0xB2, 0x3C, 0x4D}
	magicPcapNsLE = []byte{0x4D, 0x3C, 0xB2, 0xA1}
	magicPcapNG   = []byte{0x0A, 0x0D, 0x0D, 0x0A}
)

// packetSource is the common surface of pcapgo.Reader and pcapgo.NgReader.
type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader extracts flowtrack records from a capture stream. It is not safe
// for concurrent use.
type Reader struct {
	src      packetSource
	closers  []io.Closer
	assumeIP bool

	parser  *gopacket.DecodingLayerParser
	eth     layers.Ethernet
	dot1q   layers.Dot1Q
	ip4     layers.IPv4
	tcp     layers.TCP
	udp     layers.UDP
	decoded []gopacket.LayerType
}

// Open opens a capture file. The file is closed by Reader.Close.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader wraps a capture stream. The leading magic decides both the
// compression layer and the capture format.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, sniffBuffer)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("capture: read signature: %w", err)
	}

	rd := &Reader{}

	stream, err := rd.decompressed(br, magic)
	if err != nil {
		return nil, err
	}
	if stream != nil {
		br = bufio.NewReaderSize(stream, sniffBuffer)
		if magic, err = br.Peek(4); err != nil {
			return nil, fmt.Errorf("capture: read decompressed signature: %w", err)
		}
	}

	switch {
	case bytes.HasPrefix(magic, magicPcapBE),
		bytes.HasPrefix(magic, magicPcapLE),
		bytes.HasPrefix(magic, magicPcapNsBE),
		bytes.HasPrefix(magic, magicPcapNsLE):
		src, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("capture: open pcap: %w", err)
		}
		rd.src = src
	case bytes.HasPrefix(magic, magicPcapNG):
		src, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("capture: open pcapng: %w", err)
		}
		rd.src = src
	default:
		return nil, ErrUnknownFormat
	}

	switch lt := rd.src.LinkType(); lt {
	case layers.LinkTypeEthernet:
		rd.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet,
			&rd.eth, &rd.dot1q, &rd.ip4, &rd.tcp, &rd.udp)
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		rd.assumeIP = true
		logger.Warn("raw link type detected, assuming IPv4 packets",
			zap.Stringer("linkType", lt))
		rd.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeIPv4,
			&rd.ip4, &rd.tcp, &rd.udp)
	default:
		return nil, fmt.Errorf("capture: unsupported link type %v", lt)
	}
	rd.parser.IgnoreUnsupported = true
	return rd, nil
}

// decompressed unwraps a recognized compression layer, or returns nil when
// the stream is not compressed.
func (r *Reader) decompressed(br *bufio.Reader, magic []byte) (io.Reader, error) {
	switch {
	case bytes.HasPrefix(magic, magicZstd):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("capture: zstd: %w", err)
		}
		rc := dec.IOReadCloser()
		r.closers = append(r.closers, rc)
		return rc, nil
	case bytes.HasPrefix(magic, magicGzip):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("capture: gzip: %w", err)
		}
		r.closers = append(r.closers, gz)
		return gz, nil
	case bytes.HasPrefix(magic, magicLz4):
		return lz4.NewReader(br), nil
	}
	return nil, nil
}

// ReadPacket returns the next record, or io.EOF at the end of the capture.
// Packets that are not IPv4 TCP/UDP still count: they come back with
// HasFlow unset.
func (r *Reader) ReadPacket() (flowtrack.Packet, error) {
	data, ci, err := r.src.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return flowtrack.Packet{}, io.EOF
		}
		return flowtrack.Packet{}, fmt.Errorf("capture: read packet: %w", err)
	}

	pkt := flowtrack.Packet{
		TS:      ci.Timestamp.UnixNano(),
		WireLen: uint32(ci.Length) + crcBytes,
	}
	if r.assumeIP {
		pkt.WireLen += ethHeaderBytes
	}

	if err := r.parser.DecodeLayers(data, &r.decoded); err != nil {
		// Truncated or malformed headers; keep the packet, drop the flow.
		return pkt, nil
	}

	var haveIP, haveTCP, haveUDP bool
	for _, lt := range r.decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			haveIP = true
		case layers.LayerTypeTCP:
			haveTCP = true
		case layers.LayerTypeUDP:
			haveUDP = true
		}
	}
	if !haveIP || (!haveTCP && !haveUDP) {
		return pkt, nil
	}

	pkt.Flow = flowtrack.Flow{
		SrcIP: ipv4Bits(r.ip4.SrcIP),
		DstIP: ipv4Bits(r.ip4.DstIP),
	}
	if haveTCP {
		pkt.Flow.SrcPort = uint16(r.tcp.SrcPort)
		pkt.Flow.DstPort = uint16(r.tcp.DstPort)
		pkt.Flow.Proto = flowtrack.ProtoTCP
	} else {
		pkt.Flow.SrcPort = uint16(r.udp.SrcPort)
		pkt.Flow.DstPort = uint16(r.udp.DstPort)
		pkt.Flow.Proto = flowtrack.ProtoUDP
	}
	pkt.HasFlow = true
	return pkt, nil
}

// Close releases the decompression layer and the underlying file, if any.
func (r *Reader) Close() error {
	var err error
	for _, c := range r.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

func ipv4Bits(ip []byte) uint32 {
	if len(ip) != 4 {
		return 0
	}
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}
