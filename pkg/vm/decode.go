package vm

import (
	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/term"
)

func (m *VM) readU8() (uint8, error) {
	if m.ip >= len(m.chunk.Code) {
		return 0, fatalf("truncated instruction at ip=%d", m.ip)
	}
	v := m.chunk.Code[m.ip]
	m.ip++
	return v, nil
}

func (m *VM) readI8() (int8, error) {
	v, err := m.readU8()
	return int8(v), err
}

func (m *VM) readU16() (uint16, error) {
	if m.ip+1 >= len(m.chunk.Code) {
		return 0, fatalf("truncated instruction at ip=%d", m.ip)
	}
	v := uint16(m.chunk.Code[m.ip])<<8 | uint16(m.chunk.Code[m.ip+1])
	m.ip += 2
	return v, nil
}

func (m *VM) readI16() (int16, error) {
	v, err := m.readU16()
	return int16(v), err
}

func (m *VM) constant(idx uint16) (term.Value, error) {
	return m.constantIn(m.chunk, idx)
}

func (m *VM) constantIn(c *bytecode.Chunk, idx uint16) (term.Value, error) {
	if int(idx) >= len(c.Constants) {
		return nil, fatalf("constant index %d out of bounds", idx)
	}
	return c.Constants[idx], nil
}

func (m *VM) subChunk(idx uint16) (*bytecode.Chunk, error) {
	if int(idx) >= len(m.chunk.SubChunks) {
		return nil, fatalf("sub-chunk index %d out of bounds", idx)
	}
	return m.chunk.SubChunks[idx], nil
}
