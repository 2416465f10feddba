package biometric

import (
	"encoding/binary"
	"errors"
	"math"
)

const codecVersion = 1

var errBadEmbedding = errors.New("biometric: malformed embedding encoding")

// EncodeEmbedding packs e as version byte, uint32 dimension and
// little-endian float64 components.
func EncodeEmbedding(e Embedding) []byte {
	buf := make([]byte, 5+8*len(e))
	buf[0] = codecVersion
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(e)))
	for i, v := range e {
		binary.LittleEndian.PutUint64(buf[5+8*i:], math.Float64bits(v))
	}
	return buf
}

func DecodeEmbedding(b []byte) (Embedding, error) {
	if len(b) < 5 || b[0] != codecVersion {
		return nil, errBadEmbedding
	}
	n := int(binary.LittleEndian.Uint32(b[1:5]))
	if len(b) != 5+8*n {
		return nil, errBadEmbedding
	}
	e := make(Embedding, n)
	for i := range e {
		e[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[5+8*i:]))
	}
	return e, nil
}
