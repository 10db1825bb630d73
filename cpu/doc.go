// Package cpu implements the register file, instruction decoding and the
// instruction handlers of a 64-bit RISC-V style processor.
//
// The Processor holds 32 general purpose registers plus the program
// counter, which is addressed as an ordinary register (REG_PC). Instruction
// words are matched against an ordered Table of mask/match entries; the first
// entry whose masked bits match identifies the handler. Handlers decode the
// operand fields they need with DecodeR, DecodeI, DecodeS, DecodeB, DecodeU
// or DecodeJ and report the address execution continues from.
package cpu
