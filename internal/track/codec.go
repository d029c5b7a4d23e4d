package track

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// CurrentVersion is the only encoded-track layout version this node writes.
// Decode refuses any other version outright: earlier Lavalink nodes shipped
// versions 1 and 2 with a different field set, and silently coercing them
// would mask the kind of wire mismatch the control surface is supposed to
// surface as a 400.
const CurrentVersion = 3

const (
	flagIsStream byte = 1 << iota
	flagHasURI
	flagHasArtwork
	flagHasISRC
)

// DecodeError reports why an encoded track string could not be parsed:
// truncation, an unsupported version, or a malformed length-prefixed field.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode track: " + e.Reason
}

func truncated(field string) error {
	return &DecodeError{Reason: fmt.Sprintf("truncated while reading %s", field)}
}

// Encode serializes a Track into the versioned, base64 url-safe wire
// format. Encode never fails: any Track constructed via this package's
// accessors already satisfies the format's constraints.
func Encode(t Track) string {
	var flags byte
	if t.IsStream {
		flags |= flagIsStream
	}
	if t.URI != nil {
		flags |= flagHasURI
	}
	if t.ArtworkURL != nil {
		flags |= flagHasArtwork
	}
	if t.ISRC != nil {
		flags |= flagHasISRC
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentVersion)
	buf.WriteByte(flags)
	writeString(&buf, t.Title)
	writeString(&buf, t.Author)
	writeUint64(&buf, uint64(t.LengthMs))
	writeString(&buf, t.Identifier)
	writeString(&buf, t.SourceName)
	if t.URI != nil {
		writeString(&buf, *t.URI)
	}
	if t.ArtworkURL != nil {
		writeString(&buf, *t.ArtworkURL)
	}
	if t.ISRC != nil {
		writeString(&buf, *t.ISRC)
	}
	writeUint64(&buf, uint64(t.PositionMs))

	return base64.URLEncoding.EncodeToString(buf.Bytes())
}

// Decode parses the base64 url-safe wire format back into a Track.
// Decode(Encode(t)) == t for every Track produced by this package.
func Decode(encoded string) (Track, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return Track{}, &DecodeError{Reason: "invalid base64: " + err.Error()}
	}

	r := bytes.NewReader(raw)
	version, err := r.ReadByte()
	if err != nil {
		return Track{}, truncated("version")
	}
	if version != CurrentVersion {
		return Track{}, &DecodeError{Reason: fmt.Sprintf("unsupported version %d", version)}
	}
	flags, err := r.ReadByte()
	if err != nil {
		return Track{}, truncated("flags")
	}

	title, err := readString(r)
	if err != nil {
		return Track{}, err
	}
	author, err := readString(r)
	if err != nil {
		return Track{}, err
	}
	length, err := readUint64(r)
	if err != nil {
		return Track{}, err
	}
	identifier, err := readString(r)
	if err != nil {
		return Track{}, err
	}
	sourceName, err := readString(r)
	if err != nil {
		return Track{}, err
	}

	t := Track{
		Identifier: identifier,
		Title:      title,
		Author:     author,
		LengthMs:   int64(length),
		IsStream:   flags&flagIsStream != 0,
		SourceName: sourceName,
	}
	t.IsSeekable = !t.IsStream

	if flags&flagHasURI != 0 {
		uri, err := readString(r)
		if err != nil {
			return Track{}, err
		}
		t.URI = &uri
	}
	if flags&flagHasArtwork != 0 {
		artwork, err := readString(r)
		if err != nil {
			return Track{}, err
		}
		t.ArtworkURL = &artwork
	}
	if flags&flagHasISRC != 0 {
		isrc, err := readString(r)
		if err != nil {
			return Track{}, err
		}
		t.ISRC = &isrc
	}

	position, err := readUint64(r)
	if err != nil {
		return Track{}, err
	}
	t.PositionMs = int64(position)

	return t, nil
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readString(r *bytes.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return "", truncated("string length")
	}
	length := binary.BigEndian.Uint16(lenBuf[:])
	data := make([]byte, length)
	if _, err := readFull(r, data); err != nil {
		return "", truncated("string data")
	}
	return string(data), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, truncated("uint64")
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, fmt.Errorf("short read")
	}
	return n, nil
}
