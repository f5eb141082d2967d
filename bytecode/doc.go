// Package bytecode provides the code arena, the instruction encoding and the
// image format of the block machine.
//
// # Key Types
//
//   - [Arena]: one growable byte buffer shared by a whole compilation
//   - [Segment]: a handle naming a byte range of the arena or an ordered list of other segments
//   - [Builder]: the single open scope through which bytes enter the arena
//   - [Instruction]: a decoded instruction (value type)
//   - [Image]: a parsed binary image
//
// # Segments
//
// Code is composed bottom-up. A generator first produces the segments of its
// children, then opens a builder, splices those segments in by reference and
// appends its own instructions around them:
//
//	cond, _ := gen(ifNode)
//	body, _ := gen(doNode)
//
//	b := arena.Start()
//	b.Segment(cond)
//	b.JumpIfZero(arena.Size(body))
//	b.Segment(body)
//	seg, err := b.End()
//
// Bytes are only copied when a finished segment is linearized with
// [Arena.Bytes]. Only one builder may be open per arena; opening a second
// one, or writing through a builder that has been ended, panics with a
// builder error.
//
// # Jump offsets
//
// A jump with a non-negative offset continues at the byte after the jump
// instruction plus the offset. A jump with a negative offset continues at the
// first byte of the jump instruction plus the offset. Both forms therefore
// only need the size of the code being skipped or repeated, never the size of
// the jump itself.
package bytecode
