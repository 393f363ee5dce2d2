package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Field widths of the wire format. Every length prefix is a fixed-width
// big-endian unsigned integer, so frames can be parsed without delimiters.
const (
	MessageTypeSize = 1
	RoomIDSize      = 1
	ErrorSize       = 1
	ClientNameSize  = 2 // names are UTF-8, each symbol may take up to 4 bytes
	PortSize        = 2
	ItemSize        = 2
	NamesListSize   = 4
	VoiceDataSize   = 1024
)

// Wire message type codes.
const (
	TypeVoice uint8 = iota
	TypeConnected
	TypeDisconnected
	TypeShutdown
	TypeListRequest
	TypeListResponse
	TypeRoomChange
	TypeGameStarted
	TypeConnectedResponse
)

// Error reports a malformed or unrecognized frame. It is always fatal for
// the connection that produced it and is never retried.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "protocol: " + e.Reason
}

func errorf(format string, args ...interface{}) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Message is the closed set of frames exchanged over a voice connection.
type Message interface {
	Type() uint8
}

// Voice carries one fixed-size block of opus-encoded audio. The sender name
// travels with the frame so receivers never see raw connection ids.
type Voice struct {
	Name string
	Data []byte
}

// Connected doubles as the handshake frame: the very first Connected sent by
// a client carries its session credential in Name.
type Connected struct {
	Name string
}

// Disconnected announces that a member left the room.
type Disconnected struct {
	Name string
}

// ListRequest asks for the current room roster.
type ListRequest struct{}

// ListResponse carries the sorted room roster.
type ListResponse struct {
	Names []string
}

// RoomChange moves the sending connection into another room.
type RoomChange struct {
	Room uint8
}

// Shutdown tells the peer the server is going away.
type Shutdown struct{}

// GameStarted tells room members which port serves the game session.
type GameStarted struct {
	Port uint16
}

// ConnectedResponse answers the handshake. An empty Error means success.
type ConnectedResponse struct {
	Error string
}

func (Voice) Type() uint8             { return TypeVoice }
func (Connected) Type() uint8         { return TypeConnected }
func (Disconnected) Type() uint8      { return TypeDisconnected }
func (ListRequest) Type() uint8       { return TypeListRequest }
func (ListResponse) Type() uint8      { return TypeListResponse }
func (RoomChange) Type() uint8        { return TypeRoomChange }
func (Shutdown) Type() uint8          { return TypeShutdown }
func (GameStarted) Type() uint8       { return TypeGameStarted }
func (ConnectedResponse) Type() uint8 { return TypeConnectedResponse }

// Encode serializes a message into one wire frame.
func Encode(msg Message) ([]byte, error) {
	buf := []byte{msg.Type()}
	var err error
	switch m := msg.(type) {
	case Voice:
		if len(m.Data) != VoiceDataSize {
			return nil, errorf("wrong voice data size: expected %d, got %d", VoiceDataSize, len(m.Data))
		}
		if buf, err = appendString(buf, m.Name, ClientNameSize); err != nil {
			return nil, err
		}
		buf = append(buf, m.Data...)
	case Connected:
		if buf, err = appendString(buf, m.Name, ClientNameSize); err != nil {
			return nil, err
		}
	case Disconnected:
		if buf, err = appendString(buf, m.Name, ClientNameSize); err != nil {
			return nil, err
		}
	case ListRequest, Shutdown:
		// type byte only
	case ListResponse:
		names, err := encodeNames(m.Names)
		if err != nil {
			return nil, err
		}
		buf = appendUint(buf, uint64(len(names)), NamesListSize)
		buf = append(buf, names...)
	case RoomChange:
		buf = appendUint(buf, uint64(m.Room), RoomIDSize)
	case GameStarted:
		buf = appendUint(buf, uint64(m.Port), PortSize)
	case ConnectedResponse:
		if buf, err = appendString(buf, m.Error, ErrorSize); err != nil {
			return nil, err
		}
	default:
		return nil, errorf("unknown message type: %T", msg)
	}
	return buf, nil
}

// Decode reads exactly one frame from r. A malformed or unrecognized frame
// yields a *Error; anything else is an I/O error from the transport.
func Decode(r io.Reader) (Message, error) {
	typ, err := readUint(r, MessageTypeSize)
	if err != nil {
		return nil, err
	}

	switch uint8(typ) {
	case TypeVoice:
		name, err := readString(r, ClientNameSize)
		if err != nil {
			return nil, err
		}
		data := make([]byte, VoiceDataSize)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		return Voice{Name: name, Data: data}, nil

	case TypeConnected:
		name, err := readString(r, ClientNameSize)
		if err != nil {
			return nil, err
		}
		return Connected{Name: name}, nil

	case TypeDisconnected:
		name, err := readString(r, ClientNameSize)
		if err != nil {
			return nil, err
		}
		return Disconnected{Name: name}, nil

	case TypeListRequest:
		return ListRequest{}, nil

	case TypeShutdown:
		return Shutdown{}, nil

	case TypeListResponse:
		total, err := readUint(r, NamesListSize)
		if err != nil {
			return nil, err
		}
		payload := make([]byte, total)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		names, err := decodeNames(payload)
		if err != nil {
			return nil, err
		}
		return ListResponse{Names: names}, nil

	case TypeRoomChange:
		room, err := readUint(r, RoomIDSize)
		if err != nil {
			return nil, err
		}
		return RoomChange{Room: uint8(room)}, nil

	case TypeGameStarted:
		port, err := readUint(r, PortSize)
		if err != nil {
			return nil, err
		}
		return GameStarted{Port: uint16(port)}, nil

	case TypeConnectedResponse:
		errStr, err := readString(r, ErrorSize)
		if err != nil {
			return nil, err
		}
		return ConnectedResponse{Error: errStr}, nil

	default:
		return nil, errorf("unknown message type code: %d", typ)
	}
}

// encodeNames serializes a name list as repeated [2-byte length][UTF-8 bytes]
// items. The list itself is framed by the caller with a 4-byte total length.
func encodeNames(names []string) ([]byte, error) {
	var buf []byte
	var err error
	for _, name := range names {
		if buf, err = appendString(buf, name, ItemSize); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func decodeNames(payload []byte) ([]string, error) {
	names := []string{}
	for len(payload) > 0 {
		if len(payload) < ItemSize {
			return nil, errorf("truncated name list item header")
		}
		n := int(binary.BigEndian.Uint16(payload))
		payload = payload[ItemSize:]
		if len(payload) < n {
			return nil, errorf("truncated name list item: want %d bytes, have %d", n, len(payload))
		}
		names = append(names, string(payload[:n]))
		payload = payload[n:]
	}
	return names, nil
}

func appendUint(buf []byte, v uint64, width int) []byte {
	tmp := make([]byte, 8)
	binary.BigEndian.PutUint64(tmp, v)
	return append(buf, tmp[8-width:]...)
}

func appendString(buf []byte, s string, widthOfLen int) ([]byte, error) {
	if max := uint64(1)<<(8*widthOfLen) - 1; uint64(len(s)) > max {
		return nil, errorf("string does not fit a %d-byte length prefix: %d bytes", widthOfLen, len(s))
	}
	buf = appendUint(buf, uint64(len(s)), widthOfLen)
	return append(buf, s...), nil
}

func readUint(r io.Reader, width int) (uint64, error) {
	tmp := make([]byte, 8)
	if _, err := io.ReadFull(r, tmp[8-width:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(tmp), nil
}

func readString(r io.Reader, widthOfLen int) (string, error) {
	n, err := readUint(r, widthOfLen)
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
