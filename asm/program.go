package asm

import (
	"cmp"
	"encoding/binary"
	"iter"
	"slices"

	"github.com/ezrec/rvperm/loader"
	"github.com/ezrec/rvperm/mmu"
)

// Statement is one assembled source statement.
type Statement struct {
	LineNo int      // Line number of the source text.
	Line   string   // Source text, without comments.
	Addr   uint64   // Address of the first generated word.
	Words  []string // Mnemonic and operands, pseudo instructions expanded.
	Codes  []uint32 // Generated words.
}

// Program is the output of the assembler.
type Program struct {
	Entry      uint64      // Address of the first instruction to run.
	Statements []Statement // Statements in source order.
}

// Codes iterates over every generated word and its address.
func (prog *Program) Codes() iter.Seq2[uint64, uint32] {
	return func(yield func(addr uint64, code uint32) bool) {
		for _, stmt := range prog.Statements {
			for n, code := range stmt.Codes {
				if !yield(stmt.Addr+uint64(n*WORD_WIDTH), code) {
					return
				}
			}
		}
	}
}

// Debug returns the statement that generated the word at addr.
func (prog *Program) Debug(addr uint64) (stmt *Statement, ok bool) {
	for n, st := range prog.Statements {
		if addr >= st.Addr && addr < st.Addr+uint64(len(st.Codes)*WORD_WIDTH) {
			return &prog.Statements[n], true
		}
	}

	return
}

// Segments packs the generated words into contiguous segments, in
// address order. Where statements overlap, the later one wins.
func (prog *Program) Segments(perm mmu.Perm) (segs []loader.Segment) {
	type placed struct {
		addr uint64
		code uint32
	}

	var codes []placed
	for addr, code := range prog.Codes() {
		codes = append(codes, placed{addr, code})
	}

	slices.SortStableFunc(codes, func(a, b placed) int {
		return cmp.Compare(a.addr, b.addr)
	})

	for _, pc := range codes {
		if len(segs) == 0 || pc.addr > segs[len(segs)-1].End() {
			segs = append(segs, loader.Segment{Addr: pc.addr, Perm: perm})
		}

		seg := &segs[len(segs)-1]
		offset := pc.addr - seg.Addr
		if offset == uint64(len(seg.Data)) {
			seg.Data = binary.LittleEndian.AppendUint32(seg.Data, pc.code)
		} else {
			binary.LittleEndian.PutUint32(seg.Data[offset:], pc.code)
		}
		seg.MemSize = uint64(len(seg.Data))
	}

	return
}

// Image returns a loadable image of the program.
func (prog *Program) Image(perm mmu.Perm) *loader.Image {
	return &loader.Image{
		Entry:    prog.Entry,
		Segments: prog.Segments(perm),
	}
}
