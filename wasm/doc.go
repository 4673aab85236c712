// Package wasm encodes and decodes the subset of the WebAssembly binary
// format that the blowhai compiler produces.
//
// A module is the 8-byte preamble (magic "\x00asm", version 1) followed by
// sections. Each section is written as
//
//	id:byte  size:uleb128  payload:size bytes
//
// and sections appear in strictly ascending id order. Sections without
// content are left out entirely; the encoder never writes a zero-length
// placeholder.
//
// # Components
//
//   - LEB128: AppendULEB128 / AppendSLEB128 and their readers. Every count,
//     size and index is written as unsigned LEB128; i32.const immediates are
//     signed LEB128.
//
//   - Opcodes: the numeric instruction set used by generated function bodies,
//     with a metadata table (name, stack effect, immediate kind) shared by the
//     code writer and the disassembler.
//
//   - Module: an ordered list of sections plus helpers that build the
//     payload of the type, function, export and code sections.
//
//   - Decode / Disassemble: the inverse direction, used by the CLI dump and
//     by tests to check the structure of generated modules.
package wasm
