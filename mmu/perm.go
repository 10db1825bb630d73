package mmu

// Perm is the per-byte permission mask.
type Perm uint8

const (
	PERM_READ  = Perm(1 << 0) // Byte may be read.
	PERM_WRITE = Perm(1 << 1) // Byte may be written.
	PERM_RAW   = Perm(1 << 2) // Byte has never been written; reads fault.
	PERM_EXEC  = Perm(1 << 3) // Byte may be fetched as code.

	PERM_RWX = PERM_READ | PERM_WRITE | PERM_EXEC
)

// Has returns true if every flag in want is set.
func (p Perm) Has(want Perm) bool {
	return (p & want) == want
}

// String renders the mask as "rwx?", with '-' for each absent flag.
// The trailing '?' marks a byte that is still waiting for its first write.
func (p Perm) String() string {
	out := []byte("----")
	if p.Has(PERM_READ) {
		out[0] = 'r'
	}
	if p.Has(PERM_WRITE) {
		out[1] = 'w'
	}
	if p.Has(PERM_EXEC) {
		out[2] = 'x'
	}
	if p.Has(PERM_RAW) {
		out[3] = '?'
	}
	return string(out)
}

// Category is the single character used by Dump:
//
//	.  never written
//	x  executable
//	w  readable and writable
//	r  read only
//	o  write only
//	!  no access
func (p Perm) Category() byte {
	switch {
	case p.Has(PERM_RAW):
		return '.'
	case p.Has(PERM_EXEC):
		return 'x'
	case p.Has(PERM_READ | PERM_WRITE):
		return 'w'
	case p.Has(PERM_READ):
		return 'r'
	case p.Has(PERM_WRITE):
		return 'o'
	}
	return '!'
}
