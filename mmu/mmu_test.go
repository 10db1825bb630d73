package mmu

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMmuInitial(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(64)
	assert.Equal(uint64(64), mm.Size())

	perms, err := mm.Perms(0, 64)
	assert.NoError(err)
	for _, perm := range perms {
		assert.Equal(PERM_WRITE|PERM_RAW, perm)
	}

	table := [](struct {
		addr   uint64
		length uint64
	}){
		{0, 1},
		{0, 64},
		{10, 5},
		{63, 1},
	}

	for _, entry := range table {
		data, err := mm.Read(entry.addr, entry.length)
		assert.ErrorIs(err, ErrPermission, "%+v", entry)
		assert.Nil(data)
	}
}

func TestMmuWriteRead(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(32)

	err := mm.Write(7, []byte("hello, world"))
	assert.NoError(err)

	data, err := mm.Read(7, 12)
	assert.NoError(err)
	assert.Equal([]byte("hello, world"), data)

	// Bytes around the write are still unreadable.
	_, err = mm.Read(6, 2)
	assert.ErrorIs(err, ErrPermission)
	_, err = mm.Read(18, 2)
	assert.ErrorIs(err, ErrPermission)
}

func TestMmuRawPromotion(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(16)

	err := mm.Write(0, []byte{1, 2, 3, 4, 5})
	assert.NoError(err)

	perms, err := mm.Perms(0, 6)
	assert.NoError(err)
	for _, perm := range perms[:5] {
		assert.Equal(PERM_READ|PERM_WRITE, perm)
	}
	assert.Equal(PERM_WRITE|PERM_RAW, perms[5])

	data, err := mm.Read(0, 5)
	assert.NoError(err)
	assert.Equal([]byte{1, 2, 3, 4, 5}, data)
}

func TestMmuRawPromotionWholeSpan(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(16)

	// A write-only byte next to a virgin byte: one write covering both
	// promotes both.
	assert.NoError(mm.SetPerms(0, 1, PERM_WRITE))
	assert.NoError(mm.Write(0, []byte{0xaa, 0xbb}))

	perms, err := mm.Perms(0, 2)
	assert.NoError(err)
	assert.Equal([]Perm{PERM_READ | PERM_WRITE, PERM_READ | PERM_WRITE}, perms)

	// Without any virgin byte, nothing is promoted.
	assert.NoError(mm.SetPerms(4, 2, PERM_WRITE))
	assert.NoError(mm.Write(4, []byte{1, 2}))
	perms, err = mm.Perms(4, 2)
	assert.NoError(err)
	assert.Equal([]Perm{PERM_WRITE, PERM_WRITE}, perms)
}

func TestMmuWriteGate(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(16)
	assert.NoError(mm.Write(0, bytes.Repeat([]byte{0x11}, 16)))
	assert.NoError(mm.SetPerms(6, 1, PERM_READ))

	err := mm.Write(4, []byte{0xde, 0xad, 0xbe, 0xef})
	assert.ErrorIs(err, ErrPermission)

	var access *ErrAccess
	assert.True(errors.As(err, &access))
	assert.Equal("write", access.Op)
	assert.Equal(uint64(4), access.Addr)
	assert.Equal(uint64(4), access.Len)

	data, err := mm.Read(0, 16)
	assert.NoError(err)
	assert.Equal(bytes.Repeat([]byte{0x11}, 16), data)
}

func TestMmuBounds(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(16)

	table := [](struct {
		addr   uint64
		length uint64
	}){
		{16, 1},
		{15, 2},
		{0, 17},
		{^uint64(0), 2},
		{8, ^uint64(0)},
	}

	for _, entry := range table {
		err := mm.Write(entry.addr, make([]byte, min(entry.length, 32)))
		assert.ErrorIs(err, ErrBounds, "%+v", entry)

		_, err = mm.Perms(entry.addr, entry.length)
		assert.ErrorIs(err, ErrBounds, "%+v", entry)

		err = mm.SetPerms(entry.addr, entry.length, PERM_RWX)
		assert.ErrorIs(err, ErrBounds, "%+v", entry)
	}

	err := mm.ReadInto(15, make([]byte, 2))
	assert.ErrorIs(err, ErrBounds)

	// Oversized reads fault before anything is allocated.
	for _, length := range []uint64{17, 1 << 40, 1 << 62, ^uint64(0)} {
		assert.NotPanics(func() {
			data, err := mm.Read(8, length)
			assert.ErrorIs(err, ErrBounds, "%#x", length)
			assert.Nil(data)
		})
	}
}

func TestMmuZeroLength(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(16)

	data, err := mm.Read(4, 0)
	assert.NoError(err)
	assert.Empty(data)

	assert.NoError(mm.Write(4, nil))
	assert.NoError(mm.Write(16, []byte{}))
	assert.NoError(mm.SetPerms(99, 0, PERM_RWX))

	perms, err := mm.Perms(4, 1)
	assert.NoError(err)
	assert.Equal([]Perm{PERM_WRITE | PERM_RAW}, perms)
}

func TestMmuSetPerms(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(8)
	assert.NoError(mm.SetPerms(2, 4, PERM_READ|PERM_EXEC))

	perms, err := mm.Perms(0, 8)
	assert.NoError(err)
	assert.Equal([]Perm{
		PERM_WRITE | PERM_RAW, PERM_WRITE | PERM_RAW,
		PERM_READ | PERM_EXEC, PERM_READ | PERM_EXEC, PERM_READ | PERM_EXEC, PERM_READ | PERM_EXEC,
		PERM_WRITE | PERM_RAW, PERM_WRITE | PERM_RAW,
	}, perms)

	// Readable now, contents are the zero initialized bytes.
	data, err := mm.Read(2, 4)
	assert.NoError(err)
	assert.Equal([]byte{0, 0, 0, 0}, data)

	assert.ErrorIs(mm.Write(2, []byte{1}), ErrPermission)
}

func TestMmuReadUintPerm(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(8)
	assert.NoError(mm.Write(0, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	assert.NoError(mm.SetPerms(0, 4, PERM_READ|PERM_EXEC))

	word, err := ReadUintPerm[uint32](mm, 0, PERM_READ|PERM_EXEC)
	assert.NoError(err)
	assert.Equal(uint32(0x04030201), word)

	_, err = ReadUintPerm[uint32](mm, 2, PERM_READ|PERM_EXEC)
	assert.ErrorIs(err, ErrPermission)

	word, err = ReadUintPerm[uint32](mm, 2, PERM_READ)
	assert.NoError(err)
	assert.Equal(uint32(0x06050403), word)
}

func TestMmuUint(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(32)

	assert.NoError(WriteUint(mm, 0, uint64(0x0102030405060708)))
	assert.NoError(WriteUint(mm, 8, uint32(0xcafef00d)))
	assert.NoError(WriteUint(mm, 12, uint16(0xbeef)))
	assert.NoError(WriteUint(mm, 14, uint8(0x7f)))

	data, err := mm.Read(0, 8)
	assert.NoError(err)
	assert.Equal([]byte{8, 7, 6, 5, 4, 3, 2, 1}, data)

	v64, err := ReadUint[uint64](mm, 0)
	assert.NoError(err)
	assert.Equal(uint64(0x0102030405060708), v64)

	v32, err := ReadUint[uint32](mm, 8)
	assert.NoError(err)
	assert.Equal(uint32(0xcafef00d), v32)

	v16, err := ReadUint[uint16](mm, 12)
	assert.NoError(err)
	assert.Equal(uint16(0xbeef), v16)

	v8, err := ReadUint[uint8](mm, 14)
	assert.NoError(err)
	assert.Equal(uint8(0x7f), v8)

	_, err = ReadUint[uint32](mm, 14)
	assert.ErrorIs(err, ErrPermission)

	_, err = ReadUint[uint64](mm, 28)
	assert.ErrorIs(err, ErrBounds)

	assert.Equal(8, Width[uint64]())
	assert.Equal(1, Width[uint8]())

	_, err = ReadUintPerm[uint32](mm, 30, PERM_READ)
	assert.ErrorIs(err, ErrBounds)
}

func TestMmuFork(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(8)
	assert.NoError(mm.Write(0, []byte{1, 2}))

	fork := mm.Fork()
	assert.NoError(fork.Write(0, []byte{9, 9, 9}))

	data, err := mm.Read(0, 2)
	assert.NoError(err)
	assert.Equal([]byte{1, 2}, data)

	_, err = mm.Read(2, 1)
	assert.ErrorIs(err, ErrPermission)

	data, err = fork.Read(0, 3)
	assert.NoError(err)
	assert.Equal([]byte{9, 9, 9}, data)
}

func TestPermString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("-w-?", (PERM_WRITE | PERM_RAW).String())
	assert.Equal("r-x-", (PERM_READ | PERM_EXEC).String())
	assert.Equal("rwx-", PERM_RWX.String())
	assert.Equal("----", Perm(0).String())

	assert.Equal(byte('.'), (PERM_WRITE | PERM_RAW).Category())
	assert.Equal(byte('x'), (PERM_READ | PERM_EXEC).Category())
	assert.Equal(byte('w'), (PERM_READ | PERM_WRITE).Category())
	assert.Equal(byte('r'), PERM_READ.Category())
	assert.Equal(byte('o'), PERM_WRITE.Category())
	assert.Equal(byte('!'), Perm(0).Category())
}

func TestMmuDump(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(32)
	assert.NoError(mm.Write(0, []byte{0xde, 0xad}))
	assert.NoError(mm.SetPerms(16, 2, PERM_READ|PERM_EXEC))

	out := &strings.Builder{}
	assert.NoError(mm.Dump(out, 0, 18))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assert.Equal(2, len(lines))
	assert.True(strings.HasPrefix(lines[0], "0000000000000000: de ad ?? ??"))
	assert.True(strings.HasSuffix(lines[0], "|ww..............|"))
	assert.True(strings.HasPrefix(lines[1], "0000000000000010: 00 00   "))
	assert.True(strings.HasSuffix(lines[1], "|xx              |"))

	assert.ErrorIs(mm.Dump(out, 0, 33), ErrBounds)
}

func TestMmuDefines(t *testing.T) {
	assert := assert.New(t)

	mm := NewMmu(1)
	defines := map[string]string{}
	for k, v := range mm.Defines() {
		defines[k] = v
	}
	assert.Equal("0x4", defines["PERM_RAW"])
	assert.Equal("0x8", defines["PERM_EXEC"])
}
