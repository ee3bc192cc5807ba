package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PubrelPacket represents an MQTT PUBREL control packet (QoS 2, step 2).
type PubrelPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubrelPacket) Type() uint8 {
	return PUBREL
}

// WriteTo writes the PUBREL packet to the writer.
func (p *PubrelPacket) WriteTo(w io.Writer) (int64, error) {
	var total int64

	// PUBREL has fixed header flags = 0x02 (bit 1 set)
	header := &FixedHeader{
		PacketType:      PUBREL,
		Flags:           0x02,
		RemainingLength: 2,
	}

	hN, err := header.WriteTo(w)
	total += hN
	if err != nil {
		return total, err
	}

	var packetIDBytes [2]byte
	binary.BigEndian.PutUint16(packetIDBytes[:], p.PacketID)
	n, err := w.Write(packetIDBytes[:])
	total += int64(n)
	return total, err
}

// DecodePubrel decodes a PUBREL packet from the buffer.
func DecodePubrel(buf []byte) (*PubrelPacket, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("buffer too short for PUBREL packet")
	}
	return &PubrelPacket{PacketID: binary.BigEndian.Uint16(buf[0:2])}, nil
}
