package wasm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of a decoded module.
func Disassemble(m *Module) (string, error) {
	var sb strings.Builder

	sb.WriteString("; wasm module v1\n")
	for _, s := range m.Sections {
		sb.WriteString(fmt.Sprintf("; section %s (id %d, %d bytes)\n", s.ID, byte(s.ID), len(s.Payload)))
	}
	sb.WriteString("\n")

	if s, ok := m.Section(SectionType); ok {
		types, err := DecodeTypes(s.Payload)
		if err != nil {
			return "", err
		}
		for i, t := range types {
			sb.WriteString(fmt.Sprintf("(type %d (func%s%s))\n", i, typeList("param", t.Params), typeList("result", t.Results)))
		}
	}

	var funcTypes []uint32
	if s, ok := m.Section(SectionFunction); ok {
		var err error
		if funcTypes, err = DecodeFunctions(s.Payload); err != nil {
			return "", err
		}
	}

	if s, ok := m.Section(SectionExport); ok {
		exports, err := DecodeExports(s.Payload)
		if err != nil {
			return "", err
		}
		for _, e := range exports {
			kind := "func"
			if e.Kind != ExportFunc {
				kind = fmt.Sprintf("kind%d", e.Kind)
			}
			sb.WriteString(fmt.Sprintf("(export %q (%s %d))\n", e.Name, kind, e.Index))
		}
	}

	if s, ok := m.Section(SectionCode); ok {
		bodies, err := DecodeCode(s.Payload)
		if err != nil {
			return "", err
		}
		for i, b := range bodies {
			typeIdx := "?"
			if i < len(funcTypes) {
				typeIdx = fmt.Sprintf("%d", funcTypes[i])
			}
			sb.WriteString(fmt.Sprintf("\n(func %d (type %s)\n", i, typeIdx))
			for _, g := range b.Locals {
				sb.WriteString(fmt.Sprintf("  (local %s x%d)\n", g.Type, g.Count))
			}
			instrs, err := DecodeInstructions(b.Code)
			if err != nil {
				return "", err
			}
			for _, in := range instrs {
				sb.WriteString(fmt.Sprintf("  %04X  %s\n", in.Offset, in))
			}
			sb.WriteString(")\n")
		}
	}

	return sb.String(), nil
}

func typeList(label string, types []ValueType) string {
	if len(types) == 0 {
		return ""
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return fmt.Sprintf(" (%s %s)", label, strings.Join(names, " "))
}
