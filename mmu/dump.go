package mmu

import (
	"fmt"
	"io"
	"strings"
)

const DUMP_WIDTH = 16 // Bytes per Dump line.

// Dump writes a hex listing of [start, end) to w. Each line shows the
// address, the bytes, and one Perm.Category character per byte.
// Bytes that are not readable are shown as "??".
func (mm *Mmu) Dump(w io.Writer, start, end uint64) (err error) {
	if end < start {
		end = start
	}

	lo, hi, err := mm.span("dump", start, end-start)
	if err != nil {
		return
	}

	for line := lo; line < hi; line += DUMP_WIDTH {
		var hex strings.Builder
		var cat strings.Builder
		for n := line; n < line+DUMP_WIDTH; n++ {
			if n >= hi {
				hex.WriteString("   ")
				cat.WriteByte(' ')
				continue
			}
			perm := mm.permissions[n]
			if perm.Has(PERM_READ) {
				fmt.Fprintf(&hex, " %02x", mm.memory[n])
			} else {
				hex.WriteString(" ??")
			}
			cat.WriteByte(perm.Category())
		}
		_, err = fmt.Fprintf(w, "%016x:%v  |%v|\n", line, hex.String(), cat.String())
		if err != nil {
			return
		}
	}

	return
}
