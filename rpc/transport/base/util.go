package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// headerSize is the size of the frame header: shardId (8) | requestID (8) | length (4)
const headerSize = 20

// maxFrameBytes limits the payload of a single frame, same limit as the http transport
const maxFrameBytes = 32 << 20

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: shardId (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	if len(data) > maxFrameBytes {
		return fmt.Errorf("frame of %d bytes exceeds limit of %d bytes", len(data), maxFrameBytes)
	}
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint64(header[:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	// header and payload in one write
	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from r into buf. A new buffer is allocated if buf is too small.
// The returned data aliases buf.
func readFrame(r io.Reader, buf []byte) (shardID uint64, requestID uint64, data []byte, err error) {
	if len(buf) < headerSize {
		buf = make([]byte, headerSize)
	}
	if _, err = io.ReadFull(r, buf[:headerSize]); err != nil {
		return 0, 0, nil, err
	}

	shardID = binary.BigEndian.Uint64(buf[:8])
	requestID = binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	if contentLength == 0 {
		return shardID, requestID, []byte{}, nil
	}
	if contentLength > maxFrameBytes {
		return shardID, requestID, nil, fmt.Errorf("frame of %d bytes exceeds limit of %d bytes", contentLength, maxFrameBytes)
	}
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}
	if _, err = io.ReadFull(r, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}
	return shardID, requestID, buf[:contentLength], nil
}
