// Package loader turns executable images into loadable segments.
package loader

import (
	"debug/elf"
	"errors"
	"io"
	"math"

	"github.com/ezrec/rvperm/mmu"
	"github.com/ezrec/rvperm/translate"
)

var f = translate.From

var (
	ErrElfClass         = errors.New(f("not a 64-bit little endian ELF"))
	ErrElfMachine       = errors.New(f("not a RISC-V ELF"))
	ErrSegmentSize      = errors.New(f("segment file size exceeds memory size"))
	ErrSegmentTruncated = errors.New(f("segment extends past end of file"))
)

// Segment is a contiguous span of guest memory to be loaded.
// MemSize may exceed len(Data); the remainder is zero filled.
type Segment struct {
	Addr    uint64
	MemSize uint64
	Perm    mmu.Perm
	Data    []byte
}

// End returns the first address past the segment.
func (seg Segment) End() uint64 {
	return seg.Addr + seg.MemSize
}

// Image is a loadable program: an entry address and its segments.
type Image struct {
	Entry    uint64
	Segments []Segment
}

// Top returns the first address past the highest segment.
func (img *Image) Top() (top uint64) {
	for _, seg := range img.Segments {
		top = max(top, seg.End())
	}
	return
}

// PermFromElf maps ELF program header flags to a memory permission.
func PermFromElf(flags elf.ProgFlag) (perm mmu.Perm) {
	if flags&elf.PF_R != 0 {
		perm |= mmu.PERM_READ
	}
	if flags&elf.PF_W != 0 {
		perm |= mmu.PERM_WRITE
	}
	if flags&elf.PF_X != 0 {
		perm |= mmu.PERM_EXEC
	}
	return
}

// ReadELF reads the PT_LOAD segments of a 64-bit RISC-V ELF executable.
func ReadELF(r io.ReaderAt) (img *Image, err error) {
	file, err := elf.NewFile(r)
	if err != nil {
		return
	}
	defer file.Close()

	if file.Class != elf.ELFCLASS64 || file.Data != elf.ELFDATA2LSB {
		err = ErrElfClass
		return
	}

	if file.Machine != elf.EM_RISCV {
		err = ErrElfMachine
		return
	}

	img = &Image{Entry: file.Entry}

	for _, prog := range file.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Filesz > prog.Memsz {
			img = nil
			err = ErrSegmentSize
			return
		}

		// Read no more than the file holds.
		var data []byte
		data, err = io.ReadAll(io.LimitReader(prog.Open(), int64(min(prog.Filesz, math.MaxInt64))))
		if err != nil {
			img = nil
			return
		}
		if uint64(len(data)) != prog.Filesz {
			img = nil
			err = ErrSegmentTruncated
			return
		}

		img.Segments = append(img.Segments, Segment{
			Addr:    prog.Vaddr,
			MemSize: prog.Memsz,
			Perm:    PermFromElf(prog.Flags),
			Data:    data,
		})
	}

	return
}
