package packets

import (
	"fmt"
	"io"
)

// PacketDecoder decodes a packet from its remaining bytes and fixed header.
type PacketDecoder func(remaining []byte, header *FixedHeader) (Packet, error)

// packetDecoders maps packet types to their decoder functions.
var packetDecoders = map[uint8]PacketDecoder{
	PUBLISH: func(remaining []byte, header *FixedHeader) (Packet, error) {
		return DecodePublish(remaining, header)
	},
	PUBACK:  func(remaining []byte, _ *FixedHeader) (Packet, error) { return DecodePuback(remaining) },
	PUBREC:  func(remaining []byte, _ *FixedHeader) (Packet, error) { return DecodePubrec(remaining) },
	PUBREL:  func(remaining []byte, _ *FixedHeader) (Packet, error) { return DecodePubrel(remaining) },
	PUBCOMP: func(remaining []byte, _ *FixedHeader) (Packet, error) { return DecodePubcomp(remaining) },
	SUBSCRIBE: func(remaining []byte, _ *FixedHeader) (Packet, error) {
		return DecodeSubscribe(remaining)
	},
	SUBACK: func(remaining []byte, _ *FixedHeader) (Packet, error) { return DecodeSuback(remaining) },
	UNSUBSCRIBE: func(remaining []byte, _ *FixedHeader) (Packet, error) {
		return DecodeUnsubscribe(remaining)
	},
	UNSUBACK:   func(remaining []byte, _ *FixedHeader) (Packet, error) { return DecodeUnsuback(remaining) },
	PINGREQ:    func(remaining []byte, _ *FixedHeader) (Packet, error) { return DecodePingreq(remaining) },
	PINGRESP:   func(remaining []byte, _ *FixedHeader) (Packet, error) { return DecodePingresp(remaining) },
	DISCONNECT: func(remaining []byte, _ *FixedHeader) (Packet, error) { return DecodeDisconnect(remaining) },
}

// ReadPacket reads one complete MQTT control packet from r.
// maxIncomingPacket bounds the remaining-length field; 0 or a value above
// the MQTT spec maximum falls back to the spec maximum.
func ReadPacket(r io.Reader, maxIncomingPacket int) (Packet, error) {
	header, err := DecodeFixedHeader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fixed header: %w", err)
	}

	const mqttSpecMax = 268435455
	maxPacketSize := maxIncomingPacket
	if maxPacketSize <= 0 || maxPacketSize > mqttSpecMax {
		maxPacketSize = mqttSpecMax
	}
	if header.RemainingLength > maxPacketSize {
		return nil, fmt.Errorf("packet size %d exceeds maximum %d", header.RemainingLength, maxPacketSize)
	}

	var remaining []byte
	var bufPtr *[]byte

	if header.RemainingLength > 0 {
		bufPtr = GetBuffer(header.RemainingLength)
		remaining = (*bufPtr)[:header.RemainingLength]

		if _, err := io.ReadFull(r, remaining); err != nil {
			PutBuffer(bufPtr)
			return nil, fmt.Errorf("failed to read packet body: %w", err)
		}
	}

	decoder, ok := packetDecoders[header.PacketType]
	if !ok {
		if bufPtr != nil {
			PutBuffer(bufPtr)
		}
		return nil, fmt.Errorf("unknown packet type: %d", header.PacketType)
	}

	pkt, err := decoder(remaining, header)

	if bufPtr != nil {
		PutBuffer(bufPtr)
	}

	return pkt, err
}
