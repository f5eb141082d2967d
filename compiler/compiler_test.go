package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
	"github.com/stretchr/testify/require"
)

func compileYAML(t *testing.T, src string, opts ...Option) (*Result, error) {
	t.Helper()
	prog, err := block.ParseYAML([]byte(src))
	require.NoError(t, err)
	return Compile(prog, opts...)
}

func mustCompile(t *testing.T, src string, opts ...Option) *Result {
	t.Helper()
	res, err := compileYAML(t, src, append(opts, WithFragmentChecks(true))...)
	require.NoError(t, err)
	return res
}

func threadInstructions(t *testing.T, res *Result, i int) []bytecode.Instruction {
	t.Helper()
	img, err := bytecode.ParseImage(res.Image)
	require.NoError(t, err)
	instrs, err := bytecode.NewInstructionIter(img.ThreadCode(i)).All()
	require.NoError(t, err)
	return instrs
}

func calls(instrs []bytecode.Instruction) []native.Function {
	var fns []native.Function
	for _, in := range instrs {
		if in.Class == op.Call {
			fns = append(fns, native.Function(in.Param))
		}
	}
	return fns
}

const pinSetProgram = `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: pin_set
          fields: {PIN: 5}
          inputs:
            VALUE:
              block: {type: logic_boolean, fields: {BOOL: "TRUE"}}
`

func TestPinSetImage(t *testing.T) {
	res := mustCompile(t, pinSetProgram)
	require.Equal(t, []byte{
		'M', 'B', 0, // magic, version
		1, 0, // one thread
		2, 0, // memory: no variables, 2 stack bytes
		11, 0, 0, 0, // thread 0: code at 11, stack at 0
		0x01, 5, // push pin
		0x01, 1, // push true
		0xc3, // call pinSet
		0xcb, // call basicEndThread
	}, res.Image)
	require.Len(t, res.Threads, 1)
	require.Equal(t, "basic_on_start", res.Threads[0].Kind)
	require.Equal(t, 2, res.Threads[0].StackSize)

	delta, ok := res.Deltas.Delta(native.PinSet)
	require.True(t, ok)
	require.Equal(t, -2, delta)
}

func TestCountedLoopStackDepth(t *testing.T) {
	res := mustCompile(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: controls_repeat_ext
          inputs:
            TIMES: {block: {type: math_number, fields: {NUM: 3}}}
            DO:
              block:
                type: pin_set
                fields: {PIN: 1}
                inputs:
                  VALUE: {block: {type: logic_boolean, fields: {BOOL: "FALSE"}}}
`)
	require.Equal(t, 6, res.Threads[0].StackSize)
	require.Equal(t, uint16(6), res.Header.MemorySize)
	require.Equal(t, []native.Function{
		native.PinSet, native.ControlsRepeatExtDone, native.BasicPop32, native.BasicEndThread,
	}, calls(threadInstructions(t, res, 0)))
}

func TestThreadLayout(t *testing.T) {
	res := mustCompile(t, `
variables:
  - {name: x, type: Number}
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: text_print
          inputs:
            TEXT: {block: {type: text, fields: {TEXT: hi}}}
  - type: basic_forever
    inputs:
      BODY:
        block:
          type: basic_delay
          inputs:
            DELAY: {block: {type: variables_get_dynamic, fields: {VAR: x}}}
`)
	require.Len(t, res.Threads, 2)
	first, second := res.Threads[0], res.Threads[1]
	require.Equal(t, "basic_on_start", first.Kind)
	require.Equal(t, "basic_forever", second.Kind)

	// header, table, then "hi\x00"
	require.Equal(t, 15, bytecode.PoolOffset(2))
	require.Equal(t, 3, res.PoolSize)
	require.Equal(t, 18, first.CodeOffset)
	require.Equal(t, first.CodeOffset+first.CodeSize, second.CodeOffset)
	require.Equal(t, len(res.Image), second.CodeOffset+second.CodeSize)

	require.Equal(t, 4, first.StackOffset)
	require.Equal(t, 4+first.StackSize, second.StackOffset)
	require.Equal(t, uint16(second.StackOffset+second.StackSize), res.Header.MemorySize)

	img, err := bytecode.ParseImage(res.Image)
	require.NoError(t, err)
	require.Equal(t, []byte("hi\x00"), img.Pool)
	require.Equal(t, first.StackSize, img.StackSize(0))
	require.Equal(t, 4, first.StackSize)
}

func TestForeverLoopJumpsBack(t *testing.T) {
	res := mustCompile(t, `
blocks:
  - type: basic_forever
    inputs:
      BODY:
        block:
          type: basic_delay
          inputs:
            DELAY: {block: {type: math_number, fields: {NUM: 1}}}
`)
	instrs := threadInstructions(t, res, 0)
	last := instrs[len(instrs)-1]
	require.Equal(t, op.Jump, last.Class)
	require.Equal(t, 0, last.Target())
}

func TestEmptyForeverEndsThread(t *testing.T) {
	res := mustCompile(t, "blocks:\n  - type: basic_forever\n")
	require.Equal(t, []native.Function{native.BasicEndThread}, calls(threadInstructions(t, res, 0)))
}

func TestEmptySocketsUseZeroValues(t *testing.T) {
	res := mustCompile(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: basic_delay
`)
	instrs := threadInstructions(t, res, 0)
	require.Equal(t, op.Push, instrs[0].Class)
	require.Equal(t, []byte{0, 0, 0, 0}, instrs[0].Data)
}

func TestStringConstantsAreShared(t *testing.T) {
	res := mustCompile(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: text_print
          inputs:
            TEXT: {block: {type: text, fields: {TEXT: hello}}}
          next:
            block:
              type: text_print
              inputs:
                TEXT: {block: {type: text, fields: {TEXT: hello}}}
`)
	require.Equal(t, len("hello")+1, res.PoolSize)
}

func TestVariableLayout(t *testing.T) {
	res := mustCompile(t, `
variables:
  - {id: a, name: a, type: Number}
  - {id: b, name: b, type: Boolean}
  - {id: c, name: c, type: Colour}
  - {id: d, name: d, type: String}
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: variables_set_dynamic
          fields: {VAR: {id: c}}
`)
	offsets := map[string]int{}
	for _, v := range res.Variables {
		offsets[v.Name] = v.Offset
	}
	require.Equal(t, map[string]int{"a": 0, "b": 4, "c": 5, "d": 17}, offsets)
	require.Equal(t, 21, res.Threads[0].StackOffset)

	// set colour variable: offset (2 bytes) + zero colour (12 bytes)
	require.Equal(t, 14, res.Threads[0].StackSize)
	require.Equal(t, []native.Function{native.ColourSetVar, native.BasicEndThread},
		calls(threadInstructions(t, res, 0)))
}

func TestButtonHandlerThreads(t *testing.T) {
	res := mustCompile(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: gui_button
          fields: {X: 1, Y: 2, COL_SPAN: 1, ROW_SPAN: 1}
          inputs:
            TEXT: {shadow: {type: text, fields: {TEXT: OK}}}
            ON_PRESS:
              block:
                type: pin_set
                fields: {PIN: 3}
                inputs:
                  VALUE: {block: {type: logic_boolean, fields: {BOOL: "TRUE"}}}
`)
	require.Len(t, res.Threads, 2)
	require.Equal(t, "gui_button", res.Threads[1].Kind)

	var pushed [][]byte
	for _, in := range threadInstructions(t, res, 0) {
		if in.Class == op.Push && len(in.Data) == 2 {
			pushed = append(pushed, in.Data)
		}
	}
	// click, press, release; the text load offset is pushed later
	require.Equal(t, []byte{0xff, 0xff}, pushed[0])
	require.Equal(t, []byte{1, 0}, pushed[1])
	require.Equal(t, []byte{0xff, 0xff}, pushed[2])

	handler := threadInstructions(t, res, 1)
	require.Equal(t, native.BasicCallbackReady, native.Function(handler[0].Param))
	last := handler[len(handler)-1]
	require.Equal(t, op.Jump, last.Class)
	require.Equal(t, 0, last.Target())
}

func TestInitThreadComesFirst(t *testing.T) {
	res := mustCompile(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: rgbLed_show
          fields: {LED: {id: strip}}
  - type: rgbLed_config
    id: strip
    fields: {NAME: strip, COUNT: 30, PIN: 16}
`)
	require.Len(t, res.Threads, 2)
	require.Equal(t, InitKind, res.Threads[0].Kind)
	require.Equal(t, "basic_on_start", res.Threads[1].Kind)
	require.Equal(t, []native.Function{native.RgbLedSetup, native.BasicEndThread},
		calls(threadInstructions(t, res, 0)))
	require.Equal(t, []native.Function{native.RgbLedShow, native.BasicEndThread},
		calls(threadInstructions(t, res, 1)))
}

func TestUnknownDeviceReference(t *testing.T) {
	_, err := compileYAML(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: rgbLed_show
          fields: {LED: {id: nowhere}}
`)
	require.True(t, errz.Is(err, errz.ErrStructural))
	require.Contains(t, err.Error(), "nowhere")
}

func TestUnknownKindsAreReportedTogether(t *testing.T) {
	_, err := compileYAML(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: teleport
          next:
            block: {type: levitate}
`)
	require.Error(t, err)
	require.True(t, errz.Is(err, errz.ErrStructural))
	require.Contains(t, err.Error(), `"teleport"`)
	require.Contains(t, err.Error(), `"levitate"`)
}

func TestStatementAfterThreadBlockRejected(t *testing.T) {
	for _, kind := range []string{"basic_on_start", "basic_forever", "rgbLed_config"} {
		t.Run(kind, func(t *testing.T) {
			prog, err := block.ParseYAML([]byte(`
blocks:
  - type: ` + kind + `
    id: hat
    next:
      block: {type: basic_delay}
`))
			require.NoError(t, err)
			err = Validate(prog, DefaultRegistry())
			require.Error(t, err)
			require.True(t, errz.Is(err, errz.ErrStructural))
			require.Contains(t, err.Error(), `"basic_delay"`)
			require.Contains(t, err.Error(), "hat")
		})
	}
}

func TestStatementAfterThreadBlockFailsCompile(t *testing.T) {
	_, err := compileYAML(t, `
blocks:
  - type: basic_on_start
    next:
      block: {type: basic_delay}
`)
	require.True(t, errz.Is(err, errz.ErrStructural))
}

func TestStatementInValuePosition(t *testing.T) {
	_, err := compileYAML(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: basic_delay
          inputs:
            DELAY: {block: {type: logic_boolean, fields: {BOOL: "TRUE"}}}
`)
	require.True(t, errz.Is(err, errz.ErrType))
	require.Contains(t, err.Error(), "logic_boolean")
}

func TestValueInStatementPosition(t *testing.T) {
	_, err := compileYAML(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block: {type: math_number, fields: {NUM: 1}}
`)
	require.True(t, errz.Is(err, errz.ErrType))
}

func TestTernaryTypes(t *testing.T) {
	res := mustCompile(t, `
variables:
  - {name: x, type: Number}
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: variables_set_dynamic
          fields: {VAR: x}
          inputs:
            VALUE:
              block:
                type: logic_ternary
                inputs:
                  IF: {block: {type: logic_boolean, fields: {BOOL: "TRUE"}}}
                  ELSE: {block: {type: math_number, fields: {NUM: 2}}}
`)
	require.Equal(t, 6, res.Threads[0].StackSize)

	_, err := compileYAML(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: text_print
          inputs:
            TEXT: {block: {type: logic_ternary}}
`)
	require.True(t, errz.Is(err, errz.ErrType))

	_, err = compileYAML(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: text_print
          inputs:
            TEXT:
              block:
                type: logic_ternary
                inputs:
                  THEN: {block: {type: math_number, fields: {NUM: 2}}}
                  ELSE: {block: {type: text, fields: {TEXT: two}}}
`)
	require.True(t, errz.Is(err, errz.ErrType))
	require.Contains(t, err.Error(), "different types")
}

func customRegistry(regs ...Registration) *Registry {
	r := DefaultRegistry().Clone()
	for _, reg := range regs {
		r.Register(reg)
	}
	return r
}

const liarProgram = `
variables:
  - {name: x, type: Number}
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: variables_set_dynamic
          fields: {VAR: x}
          inputs:
            VALUE: {block: {type: liar}}
`

func TestFragmentTypeContract(t *testing.T) {
	liar := Registration{
		Kind:    "liar",
		Returns: Number,
		Generate: func(n *block.Node, ctx *Context) (TypedCode, error) {
			b := ctx.Start()
			b.PushBool(true)
			return ctx.Typed(b, Number)
		},
	}
	_, err := compileYAML(t, liarProgram, WithRegistry(customRegistry(liar)), WithFragmentChecks(true))
	require.True(t, errz.Is(err, errz.ErrType))
	require.Contains(t, err.Error(), "leaves 1 bytes")

	// without fragment checks the thread analysis still rejects the image
	_, err = compileYAML(t, liarProgram, WithRegistry(customRegistry(liar)))
	require.True(t, errz.Is(err, errz.ErrAnalysis))
}

func TestDeclaredReturnType(t *testing.T) {
	wrong := Registration{
		Kind:    "liar",
		Returns: Number,
		Generate: func(n *block.Node, ctx *Context) (TypedCode, error) {
			return ctx.Zero(Boolean)
		},
	}
	_, err := compileYAML(t, liarProgram, WithRegistry(customRegistry(wrong)))
	require.True(t, errz.Is(err, errz.ErrType))
	require.Contains(t, err.Error(), "declared to produce Number")
}

func TestConflictingCallDeltas(t *testing.T) {
	odd := Registration{
		Kind:    "odd_pin",
		Returns: Void,
		Generate: func(n *block.Node, ctx *Context) (TypedCode, error) {
			return ctx.Statement(native.PinSet, U8(1))
		},
	}
	_, err := compileYAML(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: pin_set
          fields: {PIN: 1}
          next:
            block: {type: odd_pin}
`, WithRegistry(customRegistry(odd)))
	require.True(t, errz.Is(err, errz.ErrConvention))
	require.Contains(t, err.Error(), "odd_pin")
}

func TestBuilderDisciplineIsRecovered(t *testing.T) {
	greedy := Registration{
		Kind:    "greedy",
		Returns: Void,
		Generate: func(n *block.Node, ctx *Context) (TypedCode, error) {
			_ = ctx.Start()
			_, err := ctx.Input(n, "X", Number)
			return TypedCode{}, err
		},
	}
	res, err := compileYAML(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block: {type: greedy}
`, WithRegistry(customRegistry(greedy)))
	require.Nil(t, res)
	require.True(t, errz.Is(err, errz.ErrBuilder))
}

func TestThreadsOnlyDuringExtraction(t *testing.T) {
	late := Registration{
		Kind:    "late",
		Returns: Void,
		Generate: func(n *block.Node, ctx *Context) (TypedCode, error) {
			_, err := ctx.AddThread(n, nil)
			return TypedCode{}, err
		},
	}
	_, err := compileYAML(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block: {type: late}
`, WithRegistry(customRegistry(late)))
	require.True(t, errz.Is(err, errz.ErrBuilder))
}

func TestNestedThreadBlockRejected(t *testing.T) {
	_, err := compileYAML(t, `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block: {type: basic_forever}
`)
	require.True(t, errz.Is(err, errz.ErrStructural))
}

func TestCompileIsDeterministic(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "kitchen_sink.yaml"))
	require.NoError(t, err)
	first := mustCompile(t, string(data))
	second := mustCompile(t, string(data))
	require.Equal(t, first.Image, second.Image)
}

func TestFixtures(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			prog, err := block.ParseFile(file)
			require.NoError(t, err)
			res, err := Compile(prog, WithFragmentChecks(true))
			require.NoError(t, err)

			img, err := bytecode.ParseImage(res.Image)
			require.NoError(t, err)
			require.Len(t, img.Threads, len(res.Threads))
			for i, ti := range res.Threads {
				require.Equal(t, ti.CodeOffset, int(img.Threads[i].CodeOffset))
				require.Equal(t, ti.StackOffset, int(img.Threads[i].StackOffset))
				_, err := bytecode.NewInstructionIter(img.ThreadCode(i)).All()
				require.NoError(t, err)
			}
		})
	}
}

func TestKitchenSinkThreads(t *testing.T) {
	prog, err := block.ParseFile(filepath.Join("testdata", "kitchen_sink.yaml"))
	require.NoError(t, err)
	res, err := Compile(prog)
	require.NoError(t, err)

	var kinds []string
	for _, ti := range res.Threads {
		kinds = append(kinds, ti.Kind)
	}
	require.Equal(t, []string{
		InitKind,
		"basic_on_start",
		"gui_button",
		"gui_button",
		"basic_forever",
		"pin_on_change",
		"sensor_on_gravity_values",
	}, kinds)
	require.Equal(t, []native.Function{
		native.RgbLedSetup, native.RgbMatrixSetup, native.BasicEndThread,
	}, calls(threadInstructions(t, res, 0)))

	// the image pixels: 2x2 RGB
	img, err := bytecode.ParseImage(res.Image)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(img.Pool), 12)
}
