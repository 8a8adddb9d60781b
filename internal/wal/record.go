package wal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"

	"main/internal/schema"
)

const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 28
	recordChecksumSize        = 4
)

var (
	recordMagic = [4]byte{'E', 'W', 'L', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic            = errors.New("wal invalid magic")
	ErrUnsupportedRecordVer    = errors.New("wal unsupported record version")
	ErrInvalidRecordHeaderSize = errors.New("wal invalid header size")
)

// recordHeader duplicates ordering fields of the event so playback can pace
// records without parsing the JSON payload.
type recordHeader struct {
	ingestSeq uint64
	eventTS   int64
}

func encodePayload(event schema.MarketEvent) ([]byte, error) {
	return json.Marshal(event)
}

func decodePayload(payload []byte) (schema.MarketEvent, error) {
	var event schema.MarketEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return schema.MarketEvent{}, err
	}
	return event, nil
}

func encodeHeader(dst []byte, header recordHeader, payloadLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(payloadLen))
	binary.LittleEndian.PutUint64(dst[12:20], header.ingestSeq)
	binary.LittleEndian.PutUint64(dst[20:28], uint64(header.eventTS))
}

func checksum(header []byte, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}

func decodeRecordHeader(src []byte) (recordHeader, uint32, error) {
	if len(src) < recordHeaderSize {
		return recordHeader{}, 0, ErrInvalidRecordHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return recordHeader{}, 0, ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return recordHeader{}, 0, ErrUnsupportedRecordVer
	}
	if headerSize := binary.LittleEndian.Uint16(src[6:8]); headerSize != recordHeaderSize {
		return recordHeader{}, 0, ErrInvalidRecordHeaderSize
	}
	payloadLen := binary.LittleEndian.Uint32(src[8:12])
	h := recordHeader{
		ingestSeq: binary.LittleEndian.Uint64(src[12:20]),
		eventTS:   int64(binary.LittleEndian.Uint64(src[20:28])),
	}
	return h, payloadLen, nil
}
