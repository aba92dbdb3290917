// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package le implements decoding of short little-endian signed
// integer fields.
package le

import "encoding/binary"

// Int returns the sign-extended value of the little-endian two's
// complement integer held in b. The length of b must be 1, 2 or 3.
//
// The bytes of b are copied into a zeroed buffer of the next native
// integer width. When the most significant bit of the last byte is
// set, the remaining high-order bytes of the buffer are filled with
// 0xff before the buffer is interpreted as a signed integer.
func Int(b []byte) int32 {
	switch len(b) {
	case 1:
		return int32(int8(b[0]))
	case 2:
		var buf [2]byte
		copy(buf[:], b)
		return int32(int16(binary.LittleEndian.Uint16(buf[:])))
	case 3:
		var buf [4]byte
		n := copy(buf[:], b)
		if b[n-1]&0x80 != 0 {
			for i := n; i < len(buf); i++ {
				buf[i] = 0xff
			}
		}
		return int32(binary.LittleEndian.Uint32(buf[:]))
	default:
		panic("le: invalid field width")
	}
}
