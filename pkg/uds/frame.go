package uds

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"
)

const maxFrameSize = 16 << 20

// ErrFrameTooLarge is returned when a frame exceeds the size cap.
var ErrFrameTooLarge = errors.New("uds: frame too large")

// WriteFrame sends one length-prefixed JSON frame. A zero deadline means
// no deadline.
func WriteFrame(conn net.Conn, deadline time.Time, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(payload) > maxFrameSize {
		return ErrFrameTooLarge
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := conn.Write(header[:]); err != nil {
		return err
	}
	_, err = conn.Write(payload)
	return err
}

// Exchange writes one request frame and reads one response frame under a
// shared deadline. Any error poisons the framing on the connection, so the
// caller must drop it.
func Exchange(conn net.Conn, deadline time.Time, req, resp any) error {
	if err := WriteFrame(conn, deadline, req); err != nil {
		return err
	}
	return ReadFrame(conn, deadline, resp)
}

// ReadFrame receives one length-prefixed JSON frame into v. A zero
// deadline means no deadline.
func ReadFrame(conn net.Conn, deadline time.Time, v any) error {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return ErrFrameTooLarge
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}
