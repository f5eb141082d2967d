package compiler

import (
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/native"
)

var guiBlocks = []Registration{
	{
		Kind:     "gui_button",
		Doc:      "Shows a button. Each connected ON_CLICK, ON_PRESS and ON_RELEASE handler runs in a thread of its own.",
		Returns:  Void,
		Generate: genButton,
		Extract:  extractButton,
	},
	{Kind: "gui_text", Doc: "Shows TEXT in a grid cell.", Returns: Void, Generate: genGuiText},
	{Kind: "gui_signal_light", Doc: "Shows a light of colour COLOUR in a grid cell.", Returns: Void, Generate: genSignalLight},
}

// buttonThreads holds the handler thread of each button event, or
// bytecode.NoThread.
type buttonThreads struct {
	Click   uint16
	Press   uint16
	Release uint16
}

func extractButton(n *block.Node, ctx *Context) error {
	threads := buttonThreads{Click: bytecode.NoThread, Press: bytecode.NoThread, Release: bytecode.NoThread}
	for _, h := range []struct {
		input string
		index *uint16
	}{
		{"ON_CLICK", &threads.Click},
		{"ON_PRESS", &threads.Press},
		{"ON_RELEASE", &threads.Release},
	} {
		handler := n.Input(h.input)
		if handler == nil {
			continue
		}
		idx, err := ctx.AddThread(n, callbackThread(handler))
		if err != nil {
			return err
		}
		*h.index = idx
	}
	ctx.SetData(n, threads)
	return nil
}

// callbackThread signals that the handler is ready, runs it and loops back
// to wait for the next event.
func callbackThread(handler *block.Node) ThreadFunc {
	return func(ctx *Context) (bytecode.Segment, error) {
		ready, err := ctx.Statement(native.BasicCallbackReady)
		if err != nil {
			return bytecode.Empty, err
		}
		body, err := ctx.Sequence(handler)
		if err != nil {
			return bytecode.Empty, err
		}
		return loopBack(ctx, ctx.Compose(ready.Code, body))
	}
}

// cell reads the grid position fields shared by the GUI blocks.
func cell(n *block.Node) ([]Arg, error) {
	args := make([]Arg, 0, 4)
	for _, name := range []string{"X", "Y", "COL_SPAN", "ROW_SPAN"} {
		v, err := fieldU8(n, name)
		if err != nil {
			return nil, err
		}
		args = append(args, U8(v))
	}
	return args, nil
}

func genButton(n *block.Node, ctx *Context) (TypedCode, error) {
	args, err := cell(n)
	if err != nil {
		return TypedCode{}, err
	}
	threads, ok := ctx.Data(n).(buttonThreads)
	if !ok {
		threads = buttonThreads{Click: bytecode.NoThread, Press: bytecode.NoThread, Release: bytecode.NoThread}
	}
	text, err := ctx.Input(n, "TEXT", String)
	if err != nil {
		return TypedCode{}, err
	}
	args = append(args, U16(threads.Click), U16(threads.Press), U16(threads.Release), Value(text))
	return ctx.Statement(native.GuiShowButton, args...)
}

func genGuiText(n *block.Node, ctx *Context) (TypedCode, error) {
	args, err := cell(n)
	if err != nil {
		return TypedCode{}, err
	}
	text, err := inputString(n, ctx, "TEXT")
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Statement(native.GuiShowText, append(args, Value(text))...)
}

func genSignalLight(n *block.Node, ctx *Context) (TypedCode, error) {
	args, err := cell(n)
	if err != nil {
		return TypedCode{}, err
	}
	colour, err := ctx.Input(n, "COLOUR", Colour)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Statement(native.GuiShowSignalLight, append(args, Value(colour))...)
}
