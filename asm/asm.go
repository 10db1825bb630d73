// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package asm is a two pass macro assembler for the RV64I subset that
// the cpu package executes.
//
// Source is one statement per line. Comments start with ';' or '#'.
// A statement may be preceded by any number of 'label:' definitions.
//
//	.equ NAME VALUE         ; define an equate
//	.org ADDRESS            ; move the assembly address
//	.word VALUE, ...        ; emit literal 32-bit words
//	.macro NAME ARG...      ; begin a macro, ended by .endm
//
// Operands may be registers (ABI or xN names), numbers, 'c' characters,
// equates, labels, or $(...) Starlark expressions over the equates and
// labels. Branch and jump targets written as a label are converted to a
// pc relative offset; any other target value is taken as the offset.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/rvperm/cpu"
)

const (
	DEFAULT_ORIGIN    = 0x1000   // Assembly address when none is given.
	ENTRY_LABEL       = "_start" // Label of the program entry, if present.
	MAX_EQUATE_DEPTH  = 16       // Nesting limit of equate references.
	MAX_MACRO_DEPTH   = 16       // Nesting limit of macro invocations.
	WORD_WIDTH        = 4        // Bytes emitted per word.
	MACRO_LABEL_TOKEN = "@"      // Replaced by a unique prefix in macro bodies.
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO":         "0",
	"HERE":           "0",
	"DEFAULT_ORIGIN": fmt.Sprintf("%#x", DEFAULT_ORIGIN),
}

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Assembler is a two pass macro assembler.
type Assembler struct {
	Verbose bool   // If set, verbosely logs the assembler actions.
	Origin  uint64 // Initial assembly address. Zero selects DEFAULT_ORIGIN.

	predefine map[string]string   // Predefines
	Label     map[string]uint64   // Map of labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	statements []Statement
	here       uint64
	expansions int
	depth      int
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// stripComment removes a trailing ';' or '#' comment.
func stripComment(text string) string {
	quoted := false
	for n, c := range text {
		switch {
		case c == '\'':
			quoted = !quoted
		case !quoted && (c == ';' || c == '#'):
			return text[:n]
		}
	}
	return text
}

// splitFirst splits off the first whitespace delimited word.
func splitFirst(text string) (head, tail string) {
	text = strings.TrimSpace(text)
	n := strings.IndexAny(text, " \t")
	if n < 0 {
		return text, ""
	}
	return text[:n], strings.TrimSpace(text[n+1:])
}

// splitOperands splits comma separated operands, ignoring commas inside
// parentheses or character quotes.
func splitOperands(text string) (args []string) {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return
	}

	depth := 0
	quoted := false
	start := 0
	for n, c := range text {
		switch {
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(text[start:n]))
			start = n + 1
		}
	}
	args = append(args, strings.TrimSpace(text[start:]))

	return
}

// parseNumber parses a signed or unsigned integer literal.
func parseNumber(word string) (value int64, err error) {
	value, err = strconv.ParseInt(word, 0, 64)
	if err == nil {
		return
	}

	u64, err := strconv.ParseUint(word, 0, 64)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	value = int64(u64)
	return
}

// valueOf returns the value of a single operand.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	return asm.resolve(word, 0)
}

func (asm *Assembler) resolve(word string, depth int) (value int64, err error) {
	if depth > MAX_EQUATE_DEPTH {
		err = ErrEquateDepth
		return
	}

	word = strings.TrimSpace(word)
	if len(word) == 0 {
		err = ErrOpcodeValueMissing
		return
	}

	invert := false
	if word[0] == '~' {
		invert = true
		word = word[1:]
		if len(word) == 0 {
			err = ErrOpcodeValueMissing
			return
		}
	}

	switch {
	case strings.HasPrefix(word, "$(") && strings.HasSuffix(word, ")"):
		value, err = asm.parenEval(word[2:len(word)-1], depth)
	case word[0] == '\'':
		str, qerr := strconv.Unquote(word)
		if qerr != nil || utf8.RuneCountInString(str) != 1 {
			err = ErrParseNumber(word)
			return
		}
		r, _ := utf8.DecodeRuneInString(str)
		value = int64(r)
	default:
		if equate, ok := asm.Equate[word]; ok {
			value, err = asm.resolve(equate, depth+1)
		} else if addr, ok := asm.Label[word]; ok {
			value = int64(addr)
		} else {
			value, err = parseNumber(word)
		}
	}
	if err != nil {
		return
	}

	if invert {
		value = ^value
	}

	return
}

// regOf returns the register named by word, or by the equate word names.
func (asm *Assembler) regOf(word string) (reg cpu.Register, err error) {
	name := strings.TrimSpace(word)
	for range MAX_EQUATE_DEPTH {
		var index cpu.ErrRegisterIndex
		reg, err = cpu.RegisterFromName(name)
		if err == nil {
			return
		}
		if errors.As(err, &index) {
			err = errors.Join(ErrParseRegister(name), err)
			return
		}
		var ok bool
		name, ok = asm.Equate[name]
		if !ok {
			break
		}
		name = strings.TrimSpace(name)
	}

	err = ErrParseRegister(strings.TrimSpace(word))
	return
}

// memOf splits an 'offset(register)' operand.
func (asm *Assembler) memOf(word string) (offset int64, reg cpu.Register, err error) {
	word = strings.TrimSpace(word)
	open := strings.LastIndex(word, "(")
	if open < 0 || !strings.HasSuffix(word, ")") {
		err = ErrParseRegister(word)
		return
	}

	reg, err = asm.regOf(word[open+1 : len(word)-1])
	if err != nil {
		return
	}

	if disp := strings.TrimSpace(word[:open]); len(disp) != 0 {
		offset, err = asm.valueOf(disp)
	}

	return
}

// targetOf returns the pc relative offset of a branch or jump target.
func (asm *Assembler) targetOf(here uint64, word string) (offset int64, err error) {
	word = strings.TrimSpace(word)
	if addr, ok := asm.Label[word]; ok {
		offset = int64(addr - here)
		return
	}

	offset, err = asm.valueOf(word)
	var pn ErrParseNumber
	if errors.As(err, &pn) && string(pn) == word {
		err = ErrLabelMissing(word)
	}
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string, depth int) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		if !strings.Contains(expr, key) {
			continue
		}
		var v64 int64
		v64, err = asm.resolve(str, depth+1)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}
	for key, addr := range asm.Label {
		if _, ok := pred[key]; !ok {
			pred[key] = starlark.MakeUint64(addr)
		}
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if ok {
		return
	}
	u64, ok := st_int.Uint64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = int64(u64)
	return
}

// expandMacro substitutes the arguments of a macro invocation into its
// body, and parses the resulting lines.
func (asm *Assembler) expandMacro(name string, macro *Macro, args []string) (err error) {
	if len(args) != len(macro.Args) {
		err = ErrMacroSyntax
		return
	}

	if asm.depth >= MAX_MACRO_DEPTH {
		err = ErrMacroDepth
		return
	}
	asm.depth++
	defer func() { asm.depth-- }()

	asm.expansions++
	prefix := fmt.Sprintf("%v_%v_", name, asm.expansions)

	for n, line := range macro.Lines {
		lineno := macro.LineNo + n

		line = strings.ReplaceAll(line, MACRO_LABEL_TOKEN, prefix)
		for i, arg := range macro.Args {
			re := regexp.MustCompile(`\b` + regexp.QuoteMeta(arg) + `\b`)
			line = re.ReplaceAllLiteralString(line, args[i])
		}

		err = asm.parseLine(line, lineno)
		if err != nil {
			err = ErrMacro{Macro: name, Line: lineno, Err: err}
			return
		}
	}

	return
}

// parseLine performs the first pass over a line: labels are bound,
// directives are applied, and statements are sized and recorded.
func (asm *Assembler) parseLine(line string, lineno int) (err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)
	asm.Equate["HERE"] = fmt.Sprintf("%#x", asm.here)

	rest := strings.TrimSpace(line)
	for {
		head, tail := splitFirst(rest)
		if !strings.HasSuffix(head, ":") {
			break
		}
		label := head[:len(head)-1]
		if len(label) == 0 {
			err = ErrOpcodeInvalid
			return
		}
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}
		asm.Label[label] = asm.here
		rest = tail
	}

	if len(rest) == 0 {
		return
	}

	mnemonic, operands := splitFirst(rest)

	switch mnemonic {
	case ".equ":
		// .equ CONST VALUE
		name, value := splitFirst(operands)
		name = strings.TrimSuffix(name, ",")
		value = strings.TrimSpace(strings.TrimPrefix(value, ","))
		if len(name) == 0 || len(value) == 0 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[name]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[name] = value
		return
	case ".org":
		args := splitOperands(operands)
		if len(args) != 1 {
			err = ErrOrgSyntax
			return
		}
		var value int64
		value, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if value%WORD_WIDTH != 0 {
			err = ErrOrgAlign
			return
		}
		asm.here = uint64(value)
		return
	}

	args := splitOperands(operands)

	// .macro processing
	macro, ok := asm.Macro[mnemonic]
	if ok {
		err = asm.expandMacro(mnemonic, macro, args)
		return
	}

	words, err := expandPseudo(mnemonic, args)
	if err != nil {
		return
	}

	size := uint64(WORD_WIDTH)
	if words[0] == ".word" {
		if len(words) == 1 {
			err = ErrOpcodeValueMissing
			return
		}
		size = uint64(len(words)-1) * WORD_WIDTH
	} else if _, ok := cpu.Instructions.Lookup(words[0]); !ok {
		err = ErrOpcodeInvalid
		return
	}

	asm.statements = append(asm.statements, Statement{
		LineNo: lineno,
		Line:   strings.TrimSpace(line),
		Addr:   asm.here,
		Words:  words,
	})
	asm.here += size

	return
}

// link performs the second pass over a statement, generating its words.
func (asm *Assembler) link(stmt *Statement) (err error) {
	asm.Equate["LINENO"] = fmt.Sprintf("%v", stmt.LineNo)
	asm.Equate["HERE"] = fmt.Sprintf("%#x", stmt.Addr)

	if stmt.Words[0] == ".word" {
		for _, word := range stmt.Words[1:] {
			var value int64
			value, err = asm.valueOf(word)
			if err != nil {
				return
			}
			err = checkRange(value, -(1 << 31), (1<<32)-1)
			if err != nil {
				return
			}
			stmt.Codes = append(stmt.Codes, uint32(value))
		}
	} else {
		var code uint32
		code, err = asm.encode(stmt.Addr, stmt.Words[0], stmt.Words[1:])
		if err != nil {
			return
		}
		stmt.Codes = []uint32{code}
	}

	if asm.Verbose {
		for n, code := range stmt.Codes {
			log.Printf("%#08x: %08x %v", stmt.Addr+uint64(n*WORD_WIDTH), code, cpu.Disassemble(code))
		}
	}

	return
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	origin := asm.Origin
	if origin == 0 {
		origin = DEFAULT_ORIGIN
	}
	if origin%WORD_WIDTH != 0 {
		err = ErrOrgAlign
		return
	}

	asm.here = origin
	asm.expansions = 0
	asm.statements = nil
	asm.Label = make(map[string]uint64, 16)
	asm.Macro = make(map[string](*Macro))
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		line = strings.TrimSpace(stripComment(text))
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Second pass, now that every label is bound.
	for n := range asm.statements {
		stmt := &asm.statements[n]
		err = asm.link(stmt)
		if err != nil {
			lineno = stmt.LineNo
			line = stmt.Line
			return
		}
	}

	entry, ok := asm.Label[ENTRY_LABEL]
	if !ok {
		entry = origin
	}

	prog = &Program{
		Entry:      entry,
		Statements: slices.Clone(asm.statements),
	}

	return
}
