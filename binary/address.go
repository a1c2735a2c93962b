package binary

import (
	"fmt"
	"net"

	"raknet-core/protocol"
)

// Magic is the fixed 16-byte sentinel every unconnected RakNet message
// carries. Deserializing any other 16-byte prefix fails.
var Magic = [16]byte{
	0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78,
}

// InternalAddress is the fixed placeholder RakNet/MCPE embeds 20 times
// in SystemAddresses.
var InternalAddress = &net.UDPAddr{IP: net.IPv4(255, 255, 255, 255), Port: 19132}

func (w *Writer) Magic() {
	w.Raw(Magic[:])
}

func (r *Reader) Magic() error {
	b, err := r.Bytes(16)
	if err != nil {
		return err
	}
	if [16]byte(b) != Magic {
		return fmt.Errorf("binary: magic mismatch")
	}
	return nil
}

// Address writes a RakNet-encoded socket address: a 1-byte family tag
// followed by the IPv4 or IPv6 payload.
func (w *Writer) Address(addr *net.UDPAddr) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		w.U8(4)
		w.Raw(ip4)
		w.U16(uint16(addr.Port))
		return
	}

	ip16 := addr.IP.To16()
	w.U8(6)
	w.U16LE(23)
	w.U16(uint16(addr.Port))
	w.Raw(make([]byte, 4))
	w.Raw(ip16)
	w.Raw(make([]byte, 4))
}

func (r *Reader) Address() (*net.UDPAddr, error) {
	family, err := r.U8()
	if err != nil {
		return nil, err
	}

	switch family {
	case 4:
		octets, err := r.Bytes(4)
		if err != nil {
			return nil, err
		}
		port, err := r.U16()
		if err != nil {
			return nil, err
		}
		ip := make(net.IP, 4)
		copy(ip, octets)
		return &net.UDPAddr{IP: ip, Port: int(port)}, nil
	case 6:
		if _, err := r.U16LE(); err != nil {
			return nil, err
		}
		port, err := r.U16()
		if err != nil {
			return nil, err
		}
		if _, err := r.Bytes(4); err != nil {
			return nil, err
		}
		raw, err := r.Bytes(16)
		if err != nil {
			return nil, err
		}
		if _, err := r.Bytes(4); err != nil {
			return nil, err
		}
		ip := make(net.IP, 16)
		copy(ip, raw)
		return &net.UDPAddr{IP: ip, Port: int(port)}, nil
	default:
		return nil, fmt.Errorf("binary: unsupported address family %d", family)
	}
}

// SystemAddresses writes InternalAddress 20 times, the MCPE convention
// embedded in ConnectionRequestAccepted and NewIncomingConnection.
func (w *Writer) SystemAddresses() {
	for i := 0; i < protocol.SystemAddressCount; i++ {
		w.Address(InternalAddress)
	}
}

// SkipSystemAddresses consumes up to SystemAddressCount addresses,
// stopping early if the remaining buffer matches exactly the 16-byte
// trailer (request timestamp + accept timestamp) the peer encodes after
// the address list.
func (r *Reader) SkipSystemAddresses() error {
	for i := 0; i < protocol.SystemAddressCount; i++ {
		if r.Remaining() == 16 {
			return nil
		}
		if _, err := r.Address(); err != nil {
			return err
		}
	}
	return nil
}
