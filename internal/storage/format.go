package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mindmorass/clipshelf/internal/clipboard"
)

const (
	// MagicBytes identifies a clipshelf history archive
	MagicBytes = "CSHV"

	// CurrentVersion is the current archive format version
	CurrentVersion uint32 = 1

	// MaxHeaderSize limits header size to prevent memory issues
	MaxHeaderSize = 1024 * 1024 // 1 MB

	// MaxPayloadSize limits payload size
	MaxPayloadSize = 512 * 1024 * 1024 // 512 MB

	// ArchiveExtension is the file extension used for archives
	ArchiveExtension = ".cshv"
)

var (
	ErrInvalidMagic     = errors.New("invalid magic bytes")
	ErrInvalidVersion   = errors.New("unsupported archive format version")
	ErrHeaderTooLarge   = errors.New("header size exceeds maximum")
	ErrPayloadTooLarge  = errors.New("payload size exceeds maximum")
	ErrChecksumMismatch = errors.New("checksum verification failed")
	ErrInvalidHeader    = errors.New("invalid header format")
)

// Snapshot is a point-in-time copy of the history and its images
type Snapshot struct {
	CreatedAt     time.Time
	SourceMachine string
	SourceUser    string
	Items         []clipboard.Item
	Images        map[string][]byte // keyed by image filename
}

// ArchiveHeader is the JSON metadata preceding the payload
type ArchiveHeader struct {
	CreatedAt     time.Time `json:"created_at"`
	SourceMachine string    `json:"source_machine"`
	SourceUser    string    `json:"source_user"`
	ItemCount     int       `json:"item_count"`
	Checksum      string    `json:"checksum"`
	Size          int64     `json:"size"`
}

type archivePayload struct {
	Items  []record          `json:"items"`
	Images map[string][]byte `json:"images"`
}

// Encode serializes a snapshot to the archive format:
// magic, version, header length, JSON header, JSON payload.
func Encode(snap *Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, errors.New("snapshot is nil")
	}

	images := snap.Images
	if images == nil {
		images = map[string][]byte{}
	}
	payload, err := json.Marshal(archivePayload{Items: toRecords(snap.Items), Images: images})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	sum := sha256.Sum256(payload)
	header := ArchiveHeader{
		CreatedAt:     snap.CreatedAt.UTC(),
		SourceMachine: snap.SourceMachine,
		SourceUser:    snap.SourceUser,
		ItemCount:     len(snap.Items),
		Checksum:      hex.EncodeToString(sum[:]),
		Size:          int64(len(payload)),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}

	// 4 (magic) + 4 (version) + 4 (header length) + header + payload
	buf := bytes.NewBuffer(make([]byte, 0, 12+len(headerBytes)+len(payload)))
	buf.WriteString(MagicBytes)
	if err := binary.Write(buf, binary.BigEndian, CurrentVersion); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(headerBytes))); err != nil {
		return nil, err
	}
	buf.Write(headerBytes)
	buf.Write(payload)

	return buf.Bytes(), nil
}

// DecodeHeader reads only the archive header
func DecodeHeader(data []byte) (*ArchiveHeader, error) {
	header, _, err := readHeader(bytes.NewReader(data))
	return header, err
}

// Decode parses an archive and verifies its checksum
func Decode(data []byte) (*Snapshot, error) {
	header, reader, err := readHeader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if header.Size < 0 || header.Size > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	payload := make([]byte, header.Size)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != header.Checksum {
		return nil, ErrChecksumMismatch
	}

	var p archivePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	if p.Images == nil {
		p.Images = map[string][]byte{}
	}

	return &Snapshot{
		CreatedAt:     header.CreatedAt,
		SourceMachine: header.SourceMachine,
		SourceUser:    header.SourceUser,
		Items:         fromRecords(p.Items),
		Images:        p.Images,
	}, nil
}

func readHeader(reader *bytes.Reader) (*ArchiveHeader, *bytes.Reader, error) {
	if reader.Len() < 12 {
		return nil, nil, ErrInvalidMagic
	}

	magic := make([]byte, 4)
	if _, err := io.ReadFull(reader, magic); err != nil {
		return nil, nil, err
	}
	if string(magic) != MagicBytes {
		return nil, nil, ErrInvalidMagic
	}

	var version uint32
	if err := binary.Read(reader, binary.BigEndian, &version); err != nil {
		return nil, nil, err
	}
	if version == 0 || version > CurrentVersion {
		return nil, nil, ErrInvalidVersion
	}

	var headerLen uint32
	if err := binary.Read(reader, binary.BigEndian, &headerLen); err != nil {
		return nil, nil, err
	}
	if headerLen > MaxHeaderSize {
		return nil, nil, ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(reader, headerBytes); err != nil {
		return nil, nil, err
	}

	var header ArchiveHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, nil, ErrInvalidHeader
	}
	return &header, reader, nil
}
