package dis

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/compiler"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
	"github.com/stretchr/testify/require"
)

func noColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func emit(t *testing.T, code []byte, c op.Class, param int, data ...byte) []byte {
	t.Helper()
	code, err := bytecode.AppendInstruction(code, c, param)
	require.NoError(t, err)
	return append(code, data...)
}

func loopCode(t *testing.T) []byte {
	one := math.Float32bits(1.5)
	var code []byte
	code = emit(t, code, op.Push, 1, 5)
	code = emit(t, code, op.JumpIfZero, 1)
	code = emit(t, code, op.Call, int(native.BasicYield))
	code = emit(t, code, op.Push, 4, byte(one), byte(one>>8), byte(one>>16), byte(one>>24))
	code = emit(t, code, op.Call, int(native.BasicDelay))
	code = emit(t, code, op.Jump, -10)
	return code
}

func TestDisassemble(t *testing.T) {
	instructions, err := Disassemble(loopCode(t))
	require.NoError(t, err)
	require.Len(t, instructions, 6)

	require.Equal(t, uint8(5), instructions[0].Constant)
	require.Equal(t, "-> 4", instructions[1].Annotation)
	require.Equal(t, "basicYield", instructions[2].Annotation)
	require.Equal(t, float32(1.5), instructions[3].Constant)
	require.Equal(t, "basicDelay", instructions[4].Annotation)
	require.Equal(t, 10, instructions[5].Offset)
	require.Equal(t, -10, instructions[5].Param)
	require.Equal(t, "-> 0", instructions[5].Annotation)
	require.Len(t, instructions[5].Operands, 1)
}

func TestPrint(t *testing.T) {
	noColor(t)
	instructions, err := Disassemble(loopCode(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Print(instructions, &buf))
	expected := strings.TrimSpace(`
+--------+--------------+----------+------------+
| OFFSET |    OPCODE    | OPERANDS |    INFO    |
+--------+--------------+----------+------------+
|      0 | PUSH         |        1 | u8 5       |
|      2 | JUMP_IF_ZERO |       +1 | -> 4       |
|      3 | CALL         |        0 | basicYield |
|      4 | PUSH         |        4 | 1.5        |
|      9 | CALL         |        9 | basicDelay |
|     10 | JUMP         |      -10 | -> 0       |
+--------+--------------+----------+------------+
`)
	require.Equal(t, expected+"\n", buf.String())
}

func TestTruncatedCode(t *testing.T) {
	code := emit(t, nil, op.Push, 4, 1, 2)
	_, err := Disassemble(code)
	require.Error(t, err)
}

func TestDisassembleImage(t *testing.T) {
	noColor(t)
	prog, err := block.ParseYAML([]byte(`
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: text_print
          inputs:
            TEXT:
              block:
                type: text
                fields:
                  TEXT: hello
`))
	require.NoError(t, err)
	res, err := compiler.Compile(prog)
	require.NoError(t, err)
	img, err := bytecode.ParseImage(res.Image)
	require.NoError(t, err)

	d, err := DisassembleImage(img)
	require.NoError(t, err)
	require.Len(t, d.Threads, 1)
	require.Equal(t, res.Threads[0].CodeOffset, d.Threads[0].CodeOffset)
	require.Equal(t, res.PoolSize, d.PoolSize)

	var found bool
	for _, instr := range d.Threads[0].Instructions {
		if instr.Constant == "hello" {
			found = true
		}
	}
	require.True(t, found, "pool string not resolved")

	var buf bytes.Buffer
	require.NoError(t, PrintProgram(d, &buf))
	out := buf.String()
	require.Contains(t, out, "1 threads")
	require.Contains(t, out, "thread 0 code@")
	require.Contains(t, out, `"hello"`)
	require.Contains(t, out, "textPrintString")
}
