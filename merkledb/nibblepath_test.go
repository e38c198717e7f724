// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_NibblePath_PushGet(t *testing.T) {
	require := require.New(t)

	p := EmptyNibblePath
	require.Equal(0, p.Size())

	p, err := p.Push(0xA)
	require.NoError(err)
	require.Equal(1, p.Size())
	n, err := p.Get(0)
	require.NoError(err)
	require.Equal(byte(0xA), n)

	p, err = p.Push(0x3)
	require.NoError(err)
	require.Equal(2, p.Size())
	n, err = p.Get(1)
	require.NoError(err)
	require.Equal(byte(0x3), n)

	_, err = p.Get(2)
	require.ErrorIs(err, ErrOutOfRange)
}

func Test_NibblePath_PushRejectsOutOfRange(t *testing.T) {
	_, err := EmptyNibblePath.Push(16)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func Test_NibblePath_PopIsInverseOfPush(t *testing.T) {
	require := require.New(t)

	p := EmptyNibblePath
	for _, n := range []byte{1, 2, 3} {
		var err error
		p, err = p.Push(n)
		require.NoError(err)
	}

	p, last := p.Pop()
	require.Equal(byte(3), last)
	require.Equal(2, p.Size())

	p, last = p.Pop()
	require.Equal(byte(2), last)
	p, last = p.Pop()
	require.Equal(byte(1), last)
	require.Equal(0, p.Size())

	// popping empty is a no-op
	p, last = p.Pop()
	require.Equal(byte(0), last)
	require.Equal(0, p.Size())
}

func Test_NibblePath_FromBytesRoundTrip(t *testing.T) {
	require := require.New(t)

	b := []byte{0x12, 0x34, 0xAB}
	p := NibblePathFromBytes(b)
	require.Equal(6, p.Size())
	require.Equal(b, p.Bytes())

	decoded, err := nibblePathFromPacked(p.Bytes(), p.Size())
	require.NoError(err)
	require.True(p.Equal(decoded))
}

func Test_NibblePath_FromPackedRejectsBadPadding(t *testing.T) {
	// 3 nibbles packed into 2 bytes; low nibble of byte 2 must be zero, so
	// 0x30 is accepted and 0x3F is rejected.
	_, err := nibblePathFromPacked([]byte{0x12, 0x30}, 3)
	require.NoError(t, err)

	_, err = nibblePathFromPacked([]byte{0x12, 0x3F}, 3)
	require.ErrorIs(t, err, ErrMalformed)
}

func Test_NibblePath_FromPackedRejectsWrongLength(t *testing.T) {
	_, err := nibblePathFromPacked([]byte{0x12}, 4)
	require.ErrorIs(t, err, ErrMalformed)
}

func Test_NibblePath_CompareOrdersByLengthThenBytes(t *testing.T) {
	require := require.New(t)

	short := NibblePathFromBytes([]byte{0xFF})
	long := NibblePathFromBytes([]byte{0x00, 0x00})
	require.Equal(-1, short.Compare(long))
	require.Equal(1, long.Compare(short))

	a := NibblePathFromBytes([]byte{0x01})
	b := NibblePathFromBytes([]byte{0x02})
	require.Equal(-1, a.Compare(b))
	require.Equal(1, b.Compare(a))
	require.Equal(0, a.Compare(a))
}

func Test_NibblePath_HasPrefix(t *testing.T) {
	require := require.New(t)

	full := NibblePathFromBytes([]byte{0x12, 0x34})
	prefix := full.Slice(0, 3)
	require.True(full.HasPrefix(prefix))
	require.True(full.HasPrefix(EmptyNibblePath))
	require.False(prefix.HasPrefix(full))

	other := NibblePathFromBytes([]byte{0x13})
	require.False(full.HasPrefix(other.Slice(0, 2)))
}

func Test_NibblePath_AppendConcatenatesNibbles(t *testing.T) {
	require := require.New(t)

	head := NibblePathFromBytes([]byte{0x12}).Slice(0, 1)
	tail := NibblePathFromBytes([]byte{0x34})
	joined := head.Append(tail)
	require.Equal(3, joined.Size())
	n0, _ := joined.Get(0)
	n1, _ := joined.Get(1)
	n2, _ := joined.Get(2)
	require.Equal(byte(0x1), n0)
	require.Equal(byte(0x3), n1)
	require.Equal(byte(0x4), n2)
}

func Test_NibblePath_IsComparable(t *testing.T) {
	a := NibblePathFromBytes([]byte{0xAB})
	b := NibblePathFromBytes([]byte{0xAB})
	m := map[NibblePath]int{a: 1}
	require.Equal(t, 1, m[b])
}
