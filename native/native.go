// Package native enumerates the functions implemented by the device runtime
// and invoked through the call instruction.
package native

import (
	"fmt"
	"sort"
	"strings"
)

// Function is the index of a native function in the device function table.
type Function uint16

const (
	BasicYield                 Function = 0
	PinSetupOnChange           Function = 1
	PinWaitForChange           Function = 2
	PinSet                     Function = 3
	VariablesSetVar32          Function = 4
	VariablesGetVar32          Function = 5
	MathArithmetic             Function = 6
	LogicCompare               Function = 7
	MathModulo                 Function = 8
	BasicDelay                 Function = 9
	ControlsRepeatExtDone      Function = 10
	BasicEndThread             Function = 11
	BasicPop32                 Function = 12
	LogicOperation             Function = 13
	LogicNegate                Function = 14
	MathNumberProperty         Function = 15
	MathUnary                  Function = 16
	MathRandomFloat            Function = 17
	MathConstrain              Function = 18
	PinSetAnalog               Function = 19
	SensorGetGravityValue      Function = 20
	SensorSetupOnGravityValues Function = 21
	SensorWaitForGravityValues Function = 22
	TextLoad                   Function = 23
	TextNumToString            Function = 24
	TextPrintString            Function = 25
	TextBoolToString           Function = 26
	TextJoinString             Function = 27
	GuiShowText                Function = 28
	GuiShowSignalLight         Function = 29
	GuiShowButton              Function = 30
	BasicCallbackReady         Function = 31
	VariablesGetResourceHandle Function = 32
	VariablesSetResourceHandle Function = 33
	MathMapLinear              Function = 34
	MathMapTemperature         Function = 35
	PinReadDigital             Function = 36
	PinReadAnalog              Function = 37
	ColourGetChannel           Function = 38
	ColourSetVar               Function = 39
	ColourBlend                Function = 40
	ColourGetVar               Function = 45
	VariablesGetVar8           Function = 46
	ColourFromHSV              Function = 47
	RgbLedSetup                Function = 48
	RgbLedSetColour            Function = 49
	RgbLedShow                 Function = 50
	VariablesSetVar8           Function = 51
	RgbMatrixSetup             Function = 52
	RgbMatrixSetPixel          Function = 53
	RgbMatrixDrawImage         Function = 54
	RgbMatrixShow              Function = 55
)

// Kind is the type of a native argument or result on the operand stack.
type Kind uint8

const (
	Void Kind = iota
	Uint8
	Uint16
	Boolean
	Number
	String
	Colour
	// Word is an untyped 32 bit cell, used where a Number or a String handle
	// is stored without interpretation.
	Word
)

var kindNames = [...]string{"void", "u8", "u16", "bool", "number", "string", "colour", "word"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Size returns the number of stack bytes a value of the kind occupies.
func (k Kind) Size() int {
	switch k {
	case Uint8, Boolean:
		return 1
	case Uint16:
		return 2
	case Number, String, Word:
		return 4
	case Colour:
		return 12
	default:
		return 0
	}
}

// Param is a named native argument.
type Param struct {
	Name string
	Kind Kind
}

// Signature describes the arguments a native function pops, in push order,
// and the values it pushes back.
type Signature struct {
	Name    string
	Params  []Param
	Results []Kind
}

// Delta returns the net stack change in bytes caused by pushing the
// arguments and executing the call.
func (s Signature) Delta() int {
	delta := 0
	for _, p := range s.Params {
		delta -= p.Kind.Size()
	}
	for _, r := range s.Results {
		delta += r.Size()
	}
	return delta
}

func (s Signature) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s %s", p.Name, p.Kind)
	}
	sb.WriteString(")")
	if len(s.Results) > 0 {
		results := make([]string, len(s.Results))
		for i, r := range s.Results {
			results[i] = r.String()
		}
		sb.WriteString(" ")
		sb.WriteString(strings.Join(results, ", "))
	}
	return sb.String()
}

func p(name string, kind Kind) Param {
	return Param{Name: name, Kind: kind}
}

var signatures = map[Function]Signature{
	BasicYield:                 {Name: "basicYield"},
	PinSetupOnChange:           {Name: "pinSetupOnChange", Params: []Param{p("pin", Uint8), p("pull", Uint8), p("edge", Uint8), p("debounce", Number)}},
	PinWaitForChange:           {Name: "pinWaitForChange"},
	PinSet:                     {Name: "pinSet", Params: []Param{p("pin", Uint8), p("value", Boolean)}},
	VariablesSetVar32:          {Name: "variablesSetVar32", Params: []Param{p("offset", Uint16), p("value", Word)}},
	VariablesGetVar32:          {Name: "variablesGetVar32", Params: []Param{p("offset", Uint16)}, Results: []Kind{Word}},
	MathArithmetic:             {Name: "mathArithmetic", Params: []Param{p("a", Number), p("b", Number), p("op", Uint8)}, Results: []Kind{Number}},
	LogicCompare:               {Name: "logicCompare", Params: []Param{p("a", Number), p("b", Number), p("op", Uint8)}, Results: []Kind{Boolean}},
	MathModulo:                 {Name: "mathModulo", Params: []Param{p("a", Number), p("b", Number)}, Results: []Kind{Number}},
	BasicDelay:                 {Name: "basicDelay", Params: []Param{p("ms", Number)}},
	ControlsRepeatExtDone:      {Name: "controlsRepeatExtDone", Params: []Param{p("times", Number)}, Results: []Kind{Number, Boolean}},
	BasicEndThread:             {Name: "basicEndThread"},
	BasicPop32:                 {Name: "basicPop32", Params: []Param{p("value", Word)}},
	LogicOperation:             {Name: "logicOperation", Params: []Param{p("a", Boolean), p("b", Boolean), p("op", Uint8)}, Results: []Kind{Boolean}},
	LogicNegate:                {Name: "logicNegate", Params: []Param{p("a", Boolean)}, Results: []Kind{Boolean}},
	MathNumberProperty:         {Name: "mathNumberProperty", Params: []Param{p("n", Number), p("property", Uint8)}, Results: []Kind{Boolean}},
	MathUnary:                  {Name: "mathUnary", Params: []Param{p("n", Number), p("op", Uint8)}, Results: []Kind{Number}},
	MathRandomFloat:            {Name: "mathRandomFloat", Results: []Kind{Number}},
	MathConstrain:              {Name: "mathConstrain", Params: []Param{p("n", Number), p("low", Number), p("high", Number)}, Results: []Kind{Number}},
	PinSetAnalog:               {Name: "pinSetAnalog", Params: []Param{p("pin", Uint8), p("value", Number)}},
	SensorGetGravityValue:      {Name: "sensorGetGravityValue", Params: []Param{p("axis", Uint8)}, Results: []Kind{Number}},
	SensorSetupOnGravityValues: {Name: "sensorSetupOnGravityValues"},
	SensorWaitForGravityValues: {Name: "sensorWaitForGravityValues"},
	TextLoad:                   {Name: "textLoad", Params: []Param{p("offset", Uint16)}, Results: []Kind{String}},
	TextNumToString:            {Name: "textNumToString", Params: []Param{p("n", Number)}, Results: []Kind{String}},
	TextPrintString:            {Name: "textPrintString", Params: []Param{p("text", String)}},
	TextBoolToString:           {Name: "textBoolToString", Params: []Param{p("b", Boolean)}, Results: []Kind{String}},
	TextJoinString:             {Name: "textJoinString", Params: []Param{p("a", String), p("b", String)}, Results: []Kind{String}},
	GuiShowText: {Name: "guiShowText", Params: []Param{
		p("x", Uint8), p("y", Uint8), p("colSpan", Uint8), p("rowSpan", Uint8), p("text", String)}},
	GuiShowSignalLight: {Name: "guiShowSignalLight", Params: []Param{
		p("x", Uint8), p("y", Uint8), p("colSpan", Uint8), p("rowSpan", Uint8), p("colour", Colour)}},
	GuiShowButton: {Name: "guiShowButton", Params: []Param{
		p("x", Uint8), p("y", Uint8), p("colSpan", Uint8), p("rowSpan", Uint8),
		p("onClick", Uint16), p("onPress", Uint16), p("onRelease", Uint16), p("text", String)}},
	BasicCallbackReady:         {Name: "basicCallbackReady"},
	VariablesGetResourceHandle: {Name: "variablesGetResourceHandle", Params: []Param{p("offset", Uint16)}, Results: []Kind{String}},
	VariablesSetResourceHandle: {Name: "variablesSetResourceHandle", Params: []Param{p("offset", Uint16), p("value", String)}},
	MathMapLinear: {Name: "mathMapLinear", Params: []Param{
		p("value", Number), p("x1", Number), p("y1", Number), p("x2", Number), p("y2", Number)}, Results: []Kind{Number}},
	MathMapTemperature: {Name: "mathMapTemperature", Params: []Param{p("value", Number), p("a", Number), p("b", Number)}, Results: []Kind{Number}},
	PinReadDigital:     {Name: "pinReadDigital", Params: []Param{p("pin", Uint8)}, Results: []Kind{Boolean}},
	PinReadAnalog:      {Name: "pinReadAnalog", Params: []Param{p("pin", Uint8)}, Results: []Kind{Number}},
	ColourGetChannel:   {Name: "colourGetChannel", Params: []Param{p("colour", Colour), p("channel", Uint8)}, Results: []Kind{Number}},
	ColourSetVar:       {Name: "colourSetVar", Params: []Param{p("offset", Uint16), p("colour", Colour)}},
	ColourBlend:        {Name: "colourBlend", Params: []Param{p("a", Colour), p("b", Colour), p("ratio", Number)}, Results: []Kind{Colour}},
	ColourGetVar:       {Name: "colourGetVar", Params: []Param{p("offset", Uint16)}, Results: []Kind{Colour}},
	VariablesGetVar8:   {Name: "variablesGetVar8", Params: []Param{p("offset", Uint16)}, Results: []Kind{Boolean}},
	ColourFromHSV:      {Name: "colourFromHSV", Params: []Param{p("h", Number), p("s", Number), p("v", Number)}, Results: []Kind{Colour}},
	RgbLedSetup:        {Name: "rgbLedSetup", Params: []Param{p("id", Uint16), p("count", Uint16), p("pin", Uint8)}},
	RgbLedSetColour:    {Name: "rgbLedSetColour", Params: []Param{p("id", Uint16), p("index", Number), p("colour", Colour)}},
	RgbLedShow:         {Name: "rgbLedShow", Params: []Param{p("id", Uint16)}},
	VariablesSetVar8:   {Name: "variablesSetVar8", Params: []Param{p("offset", Uint16), p("value", Boolean)}},
	RgbMatrixSetup: {Name: "rgbMatrixSetup", Params: []Param{
		p("id", Uint16), p("width", Uint8), p("height", Uint8), p("pin", Uint8)}},
	RgbMatrixSetPixel: {Name: "rgbMatrixSetPixel", Params: []Param{
		p("id", Uint16), p("x", Number), p("y", Number), p("colour", Colour)}},
	RgbMatrixDrawImage: {Name: "rgbMatrixDrawImage", Params: []Param{p("id", Uint16), p("image", Uint16)}},
	RgbMatrixShow:      {Name: "rgbMatrixShow", Params: []Param{p("id", Uint16)}},
}

var byName map[string]Function

func init() {
	byName = make(map[string]Function, len(signatures))
	for fn, sig := range signatures {
		byName[sig.Name] = fn
	}
}

// String returns the name of the function, or its number if unknown.
func (f Function) String() string {
	if sig, ok := signatures[f]; ok {
		return sig.Name
	}
	return fmt.Sprintf("fn%d", uint16(f))
}

// Signature returns the declared signature of the function.
func (f Function) Signature() (Signature, bool) {
	sig, ok := signatures[f]
	return sig, ok
}

// Lookup finds a function by its name.
func Lookup(name string) (Function, bool) {
	fn, ok := byName[name]
	return fn, ok
}

// All returns every known function ordered by number.
func All() []Function {
	fns := make([]Function, 0, len(signatures))
	for fn := range signatures {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i] < fns[j] })
	return fns
}
