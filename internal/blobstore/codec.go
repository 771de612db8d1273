package blobstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/example/face-attend/internal/faceencoder"
)

// Signature files use a self-describing binary layout instead of an opaque
// serializer: 4-byte magic, uint32 element count, then little-endian float32s.
var signatureMagic = [4]byte{'F', 'S', 'G', '1'}

const signatureHeaderSize = 8

// ErrCorruptSignature is returned when a signature file fails validation.
var ErrCorruptSignature = errors.New("corrupt signature blob")

// EncodeSignature serializes an encoding into the signature wire format.
func EncodeSignature(enc faceencoder.Encoding) []byte {
	buf := make([]byte, signatureHeaderSize+4*len(enc))
	copy(buf[:4], signatureMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(enc)))
	for i, v := range enc {
		binary.LittleEndian.PutUint32(buf[signatureHeaderSize+4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeSignature parses and validates the signature wire format.
func DecodeSignature(data []byte) (faceencoder.Encoding, error) {
	if len(data) < signatureHeaderSize {
		return nil, fmt.Errorf("%w: truncated header (%d bytes)", ErrCorruptSignature, len(data))
	}
	if [4]byte(data[:4]) != signatureMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptSignature, data[:4])
	}
	count := binary.LittleEndian.Uint32(data[4:8])
	if want := signatureHeaderSize + 4*int(count); len(data) != want {
		return nil, fmt.Errorf("%w: expected %d bytes for %d floats, got %d", ErrCorruptSignature, want, count, len(data))
	}

	enc := make(faceencoder.Encoding, count)
	for i := range enc {
		enc[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[signatureHeaderSize+4*i:]))
	}
	return enc, nil
}
