// Package crc64 implements the CRC-64/Jones checksum Redis uses to trailer
// its RDB file format, built on the Go standard library's hash/crc64 with
// the Jones polynomial.
package crc64

import (
	"hash"
	"hash/crc64"
)

// jonesPoly is the reversed polynomial for CRC-64/Jones, the variant Redis
// uses for RDB file checksums.
const jonesPoly = 0xad93d23594c935a9

var table = crc64.MakeTable(jonesPoly)

// New returns a hash.Hash64 computing the CRC-64/Jones checksum.
func New() hash.Hash64 {
	return crc64.New(table)
}
