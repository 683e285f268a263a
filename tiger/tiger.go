// Package tiger implements the Tiger-192 hash function as used by the
// Advanced Direct Connect protocol for content hashing (feature "TIGR").
//
// Tiger's output convention is little-endian within each of the three
// 8-byte state words; that byte stream is exactly the digest form the
// DC network uses in CIDs and TTH identifiers, so Sum's output can be
// Base32-encoded and put on the wire as-is.
package tiger

import "hash"

// Size is the size, in bytes, of a Tiger-192 checksum.
const Size = 24

// BlockSize is the block size, in bytes, of the Tiger hash function.
const BlockSize = 64

const (
	initA uint64 = 0x0123456789ABCDEF
	initB uint64 = 0xFEDCBA9876543210
	initC uint64 = 0xF096A5B4C3B2E187
)

type digest struct {
	a, b, c uint64
	x       [BlockSize]byte
	nx      int
	len     uint64
}

// New returns a new hash.Hash computing the Tiger-192 checksum.
func New() hash.Hash {
	d := new(digest)
	d.Reset()
	return d
}

func (d *digest) Reset() {
	d.a, d.b, d.c = initA, initB, initC
	d.nx, d.len = 0, 0
}

func (d *digest) Size() int      { return Size }
func (d *digest) BlockSize() int { return BlockSize }

func (d *digest) Write(p []byte) (n int, err error) {
	n = len(p)
	d.len += uint64(n)
	if d.nx > 0 {
		c := copy(d.x[d.nx:], p)
		d.nx += c
		p = p[c:]
		if d.nx == BlockSize {
			block(d, d.x[:])
			d.nx = 0
		}
	}
	for len(p) >= BlockSize {
		block(d, p[:BlockSize])
		p = p[BlockSize:]
	}
	if len(p) > 0 {
		d.nx = copy(d.x[:], p)
	}
	return
}

func (d *digest) Sum(in []byte) []byte {
	d0 := *d
	hash := d0.checkSum()
	return append(in, hash[:]...)
}

// checkSum pads the message per the Tiger specification (a 0x01 byte,
// zero bytes to 56 mod 64, then the 64-bit little-endian bit length)
// and processes the final block(s).
func (d *digest) checkSum() [Size]byte {
	length := d.len
	var tmp [BlockSize]byte
	tmp[0] = 0x01
	if d.nx < 56 {
		d.Write(tmp[0 : 56-d.nx])
	} else {
		d.Write(tmp[0 : 64+56-d.nx])
	}

	length <<= 3
	var lenBytes [8]byte
	for i := 0; i < 8; i++ {
		lenBytes[i] = byte(length >> (8 * uint(i)))
	}
	d.Write(lenBytes[:])

	if d.nx != 0 {
		panic("tiger: d.nx != 0 after padding")
	}

	var out [Size]byte
	putUint64LE(out[0:8], d.a)
	putUint64LE(out[8:16], d.b)
	putUint64LE(out[16:24], d.c)
	return out
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func getUint64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}

// block runs the Tiger compression function over a single 64-byte block,
// updating d.a, d.b, d.c in place. The three passes rotate the roles of
// the state registers: pass(a,b,c,5), pass(c,a,b,7), pass(b,c,a,9).
func block(d *digest, p []byte) {
	var x [8]uint64
	for i := 0; i < 8; i++ {
		x[i] = getUint64LE(p[i*8 : i*8+8])
	}

	a, b, c := d.a, d.b, d.c
	aa, bb, cc := a, b, c

	a, b, c = pass(a, b, c, &x, 5)
	keySchedule(&x)
	c, a, b = pass(c, a, b, &x, 7)
	keySchedule(&x)
	b, c, a = pass(b, c, a, &x, 9)

	d.a = a ^ aa
	d.b = b - bb
	d.c = c + cc
}

func pass(a, b, c uint64, x *[8]uint64, mul uint64) (uint64, uint64, uint64) {
	a, b, c = round(a, b, c, x[0], mul)
	b, c, a = round(b, c, a, x[1], mul)
	c, a, b = round(c, a, b, x[2], mul)
	a, b, c = round(a, b, c, x[3], mul)
	b, c, a = round(b, c, a, x[4], mul)
	c, a, b = round(c, a, b, x[5], mul)
	a, b, c = round(a, b, c, x[6], mul)
	b, c, a = round(b, c, a, x[7], mul)
	return a, b, c
}

func round(a, b, c uint64, x uint64, mul uint64) (ra, rb, rc uint64) {
	c ^= x
	a -= t1[byte(c)] ^ t2[byte(c>>16)] ^ t3[byte(c>>32)] ^ t4[byte(c>>48)]
	b += t4[byte(c>>8)] ^ t3[byte(c>>24)] ^ t2[byte(c>>40)] ^ t1[byte(c>>56)]
	b *= mul
	return a, b, c
}

func keySchedule(x *[8]uint64) {
	x[0] -= x[7] ^ 0xA5A5A5A5A5A5A5A5
	x[1] ^= x[0]
	x[2] += x[1]
	x[3] -= x[2] ^ ((^x[1]) << 19)
	x[4] ^= x[3]
	x[5] += x[4]
	x[6] -= x[5] ^ ((^x[4]) >> 23)
	x[7] ^= x[6]
	x[0] += x[7]
	x[1] -= x[0] ^ ((^x[7]) << 19)
	x[2] ^= x[1]
	x[3] += x[2]
	x[4] -= x[3] ^ ((^x[2]) >> 23)
	x[5] ^= x[4]
	x[6] += x[5]
	x[7] -= x[6] ^ 0x0123456789ABCDEF
}

// Sum computes the Tiger-192 digest of data. The returned byte order is
// the DC-network form used for CIDs and TTH roots.
func Sum(data []byte) [Size]byte {
	d := New()
	d.Write(data)
	var out [Size]byte
	copy(out[:], d.Sum(nil))
	return out
}
