package utils

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// HashVectors hashes feature vectors bit-exactly. Vectors are length-prefixed
// so that ([a], [b c]) and ([a b], [c]) do not collide.
func HashVectors(vectors ...[]float64) string {
	h := md5.New()
	var buf [8]byte
	for _, vec := range vectors {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(vec)))
		h.Write(buf[:])
		for _, v := range vec {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
