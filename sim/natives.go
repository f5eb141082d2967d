package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
)

func defaultHandlers() map[native.Function]Handler {
	return map[native.Function]Handler{
		native.BasicYield:                 func(t *Thread) error { t.Yield(); return nil },
		native.BasicEndThread:             func(t *Thread) error { t.End(); return nil },
		native.BasicCallbackReady:         callbackReady,
		native.BasicDelay:                 delay,
		native.BasicPop32:                 func(t *Thread) error { t.pop(4); return nil },
		native.ControlsRepeatExtDone:      repeatDone,
		native.PinSetupOnChange:           pinSetupOnChange,
		native.PinWaitForChange:           pinWaitForChange,
		native.PinSet:                     pinSet,
		native.PinSetAnalog:               pinSetAnalog,
		native.PinReadDigital:             pinReadDigital,
		native.PinReadAnalog:              pinReadAnalog,
		native.VariablesSetVar32:          setVar32,
		native.VariablesGetVar32:          getVar32,
		native.VariablesSetResourceHandle: setVar32,
		native.VariablesGetResourceHandle: getVar32,
		native.VariablesSetVar8:           setVar8,
		native.VariablesGetVar8:           getVar8,
		native.MathArithmetic:             arithmetic,
		native.MathModulo:                 modulo,
		native.MathNumberProperty:         numberProperty,
		native.MathUnary:                  unary,
		native.MathRandomFloat:            func(t *Thread) error { t.PushNumber(t.m.rand.Float32()); return nil },
		native.MathConstrain:              constrain,
		native.MathMapLinear:              mapLinear,
		native.MathMapTemperature:         mapTemperature,
		native.LogicCompare:               compare,
		native.LogicOperation:             logicOperation,
		native.LogicNegate:                func(t *Thread) error { t.PushBool(!t.PopBool()); return nil },
		native.SensorGetGravityValue:      gravityValue,
		native.SensorSetupOnGravityValues: gravitySetup,
		native.SensorWaitForGravityValues: gravityWait,
		native.TextLoad:                   textLoad,
		native.TextNumToString:            func(t *Thread) error { t.PushString(formatNumber(t.PopNumber())); return nil },
		native.TextBoolToString:           func(t *Thread) error { t.PushString(strconv.FormatBool(t.PopBool())); return nil },
		native.TextJoinString:             textJoin,
		native.TextPrintString:            func(t *Thread) error { t.m.print(t.PopString()); return nil },
		native.GuiShowText:                guiText,
		native.GuiShowSignalLight:         guiSignalLight,
		native.GuiShowButton:              guiButton,
		native.ColourGetChannel:           colourChannel,
		native.ColourSetVar:               colourSetVar,
		native.ColourGetVar:               colourGetVar,
		native.ColourBlend:                colourBlend,
		native.ColourFromHSV:              colourFromHSV,
		native.RgbLedSetup:                rgbLedSetup,
		native.RgbLedSetColour:            rgbLedSetColour,
		native.RgbLedShow:                 rgbLedShow,
		native.RgbMatrixSetup:             rgbMatrixSetup,
		native.RgbMatrixSetPixel:          rgbMatrixSetPixel,
		native.RgbMatrixDrawImage:         rgbMatrixDrawImage,
		native.RgbMatrixShow:              rgbMatrixShow,
	}
}

func callbackReady(t *Thread) error {
	if t.m.triggered[t.index] {
		delete(t.m.triggered, t.index)
		t.Yield()
		return nil
	}
	t.wait(waitCallback)
	return nil
}

// delay takes milliseconds.
func delay(t *Thread) error {
	ms := t.PopNumber()
	if ms < 0 || math.IsNaN(float64(ms)) {
		ms = 0
	}
	t.Sleep(time.Duration(float64(ms) * float64(time.Millisecond)))
	return nil
}

// repeatDone counts down the loop counter on top of the stack and pushes 1
// once it is used up.
func repeatDone(t *Thread) error {
	times := t.PopNumber() - 1
	t.PushNumber(times)
	t.PushBool(times <= 0)
	return nil
}

func pinSetupOnChange(t *Thread) error {
	t.PopNumber() // debounce
	edge := t.PopUint8()
	pull := t.PopUint8()
	pin := t.PopUint8()
	if _, set := t.m.pins[pin]; !set && pull == 1 {
		t.m.pins[pin] = 1
	}
	t.m.watches[t.index] = pinWatch{pin: pin, edge: edge}
	return nil
}

func pinWaitForChange(t *Thread) error {
	if _, ok := t.m.watches[t.index]; !ok {
		return fmt.Errorf("thread %d waits for a pin it did not set up", t.index)
	}
	t.wait(waitPin)
	return nil
}

func pinSet(t *Thread) error {
	v := t.PopBool()
	pin := t.PopUint8()
	if v {
		t.m.pins[pin] = 1
	} else {
		t.m.pins[pin] = 0
	}
	return nil
}

func pinSetAnalog(t *Thread) error {
	v := t.PopNumber()
	pin := t.PopUint8()
	t.m.pins[pin] = float32(math.Max(0, math.Min(1, float64(v))))
	return nil
}

func pinReadDigital(t *Thread) error {
	t.PushBool(t.m.pins[t.PopUint8()] >= 0.5)
	return nil
}

func pinReadAnalog(t *Thread) error {
	t.PushNumber(t.m.pins[t.PopUint8()])
	return nil
}

func variable(t *Thread, offset uint16, size int) ([]byte, error) {
	if int(offset)+size > t.stackBaseOfMemory() {
		return nil, fmt.Errorf("variable at offset %d is outside the variable region", offset)
	}
	return t.m.mem[offset : int(offset)+size], nil
}

// stackBaseOfMemory returns where the first thread's stack starts, which is
// the end of the variable region.
func (t *Thread) stackBaseOfMemory() int {
	if len(t.m.threads) == 0 {
		return len(t.m.mem)
	}
	return t.m.threads[0].stackBase
}

func setVar32(t *Thread) error {
	v := t.PopUint32()
	dst, err := variable(t, t.PopUint16(), 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(dst, v)
	return nil
}

func getVar32(t *Thread) error {
	src, err := variable(t, t.PopUint16(), 4)
	if err != nil {
		return err
	}
	t.PushUint32(binary.LittleEndian.Uint32(src))
	return nil
}

func setVar8(t *Thread) error {
	v := t.PopUint8()
	dst, err := variable(t, t.PopUint16(), 1)
	if err != nil {
		return err
	}
	dst[0] = v
	return nil
}

func getVar8(t *Thread) error {
	src, err := variable(t, t.PopUint16(), 1)
	if err != nil {
		return err
	}
	t.PushUint8(src[0])
	return nil
}

func arithmetic(t *Thread) error {
	operation := op.ArithmeticOp(t.PopUint8())
	b := float64(t.PopNumber())
	a := float64(t.PopNumber())
	var r float64
	switch operation {
	case op.Add:
		r = a + b
	case op.Subtract:
		r = a - b
	case op.Multiply:
		r = a * b
	case op.Divide:
		r = a / b
	case op.Power:
		r = math.Pow(a, b)
	case op.Modulo:
		r = math.Mod(a, b)
	case op.RandomInt:
		r = randomInt(t, a, b)
	case op.Atan2:
		r = math.Atan2(a, b)
	default:
		return fmt.Errorf("invalid arithmetic operation %d", operation)
	}
	t.PushNumber(float32(r))
	return nil
}

// randomInt picks an integer in [low, high).
func randomInt(t *Thread, low, high float64) float64 {
	lo, hi := math.Ceil(low), math.Floor(high)
	if hi <= lo {
		return lo
	}
	return lo + float64(t.m.rand.Int63n(int64(hi-lo)))
}

func modulo(t *Thread) error {
	b := float64(t.PopNumber())
	a := float64(t.PopNumber())
	t.PushNumber(float32(math.Mod(a, b)))
	return nil
}

func numberProperty(t *Thread) error {
	property := op.NumberProperty(t.PopUint8())
	n := float64(t.PopNumber())
	var r bool
	switch property {
	case op.Even:
		r = int64(n)%2 == 0
	case op.Odd:
		r = int64(n)%2 != 0
	case op.Prime:
		r = isPrime(int64(n))
	case op.Whole:
		r = n == math.Trunc(n)
	case op.Positive:
		r = n > 0
	case op.Negative:
		r = n < 0
	default:
		return fmt.Errorf("invalid number property %d", property)
	}
	t.PushBool(r)
	return nil
}

func isPrime(n int64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for i := int64(3); i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}

var unaryFuncs = map[op.UnaryOp]func(float64) float64{
	op.Sin:   math.Sin,
	op.Cos:   math.Cos,
	op.Tan:   math.Tan,
	op.Asin:  math.Asin,
	op.Acos:  math.Acos,
	op.Atan:  math.Atan,
	op.Round: math.Round,
	op.Ceil:  math.Ceil,
	op.Floor: math.Floor,
	op.Sqrt:  math.Sqrt,
	op.Abs:   math.Abs,
	op.Neg:   func(x float64) float64 { return -x },
	op.Ln:    math.Log,
	op.Log10: math.Log10,
	op.Exp:   math.Exp,
	op.Pow10: func(x float64) float64 { return math.Pow(10, x) },
}

func unary(t *Thread) error {
	operation := op.UnaryOp(t.PopUint8())
	n := float64(t.PopNumber())
	f, ok := unaryFuncs[operation]
	if !ok {
		return fmt.Errorf("invalid unary operation %d", operation)
	}
	t.PushNumber(float32(f(n)))
	return nil
}

func constrain(t *Thread) error {
	high := t.PopNumber()
	low := t.PopNumber()
	n := t.PopNumber()
	if n < low {
		n = low
	}
	if n > high {
		n = high
	}
	t.PushNumber(n)
	return nil
}

func mapLinear(t *Thread) error {
	y2 := t.PopNumber()
	x2 := t.PopNumber()
	y1 := t.PopNumber()
	x1 := t.PopNumber()
	v := t.PopNumber()
	if x2 == x1 {
		t.PushNumber(v)
		return nil
	}
	t.PushNumber(y1 + (v-x1)*(y2-y1)/(x2-x1))
	return nil
}

// mapTemperature converts the reading of a thermistor divider, as a
// fraction of the reference voltage, to degrees Celsius using the
// simplified Steinhart-Hart coefficients a and b.
func mapTemperature(t *Thread) error {
	b := float64(t.PopNumber())
	a := float64(t.PopNumber())
	v := float64(t.PopNumber())
	r := 1e5
	if math.Abs(1-v) >= 1e-6 {
		r = v / (1 - v)
	}
	t.PushNumber(float32(1/(a+b*math.Log(r)) - 273.15))
	return nil
}

func compare(t *Thread) error {
	operation := op.CompareOp(t.PopUint8())
	b := t.PopNumber()
	a := t.PopNumber()
	var r bool
	switch operation {
	case op.Equal:
		r = a == b
	case op.NotEqual:
		r = a != b
	case op.LessThan:
		r = a < b
	case op.LessThanOrEqual:
		r = a <= b
	case op.GreaterThan:
		r = a > b
	case op.GreaterThanOrEqual:
		r = a >= b
	default:
		return fmt.Errorf("invalid comparison %d", operation)
	}
	t.PushBool(r)
	return nil
}

func logicOperation(t *Thread) error {
	operation := op.LogicOp(t.PopUint8())
	b := t.PopBool()
	a := t.PopBool()
	switch operation {
	case op.And:
		t.PushBool(a && b)
	case op.Or:
		t.PushBool(a || b)
	default:
		return fmt.Errorf("invalid logic operation %d", operation)
	}
	return nil
}

func gravityValue(t *Thread) error {
	axis := t.PopUint8()
	if int(axis) >= len(t.m.gravity) {
		return fmt.Errorf("invalid gravity axis %d", axis)
	}
	t.PushNumber(t.m.gravity[axis])
	return nil
}

func gravitySetup(t *Thread) error {
	t.m.gravityWait[t.index] = true
	return nil
}

func gravityWait(t *Thread) error {
	t.wait(waitGravity)
	return nil
}

func textLoad(t *Thread) error {
	s, err := t.m.poolString(int(t.PopUint16()))
	if err != nil {
		return err
	}
	t.PushString(s)
	return nil
}

func textJoin(t *Thread) error {
	b := t.PopString()
	a := t.PopString()
	t.PushString(a + b)
	return nil
}

// formatNumber prints numbers with two decimals like the device does.
func formatNumber(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', 2, 32)
}

func popCell(t *Thread, kind string) Widget {
	w := Widget{Kind: kind}
	w.RowSpan = t.PopUint8()
	w.ColSpan = t.PopUint8()
	w.Y = t.PopUint8()
	w.X = t.PopUint8()
	return w
}

func (m *Machine) show(w Widget) {
	m.widgets[[2]uint8{w.X, w.Y}] = w
}

func guiText(t *Thread) error {
	text := t.PopString()
	w := popCell(t, "text")
	w.Text = text
	t.m.show(w)
	return nil
}

func guiSignalLight(t *Thread) error {
	c := t.PopColour()
	w := popCell(t, "signal_light")
	w.Colour = c
	t.m.show(w)
	return nil
}

func guiButton(t *Thread) error {
	text := t.PopString()
	release := t.PopUint16()
	press := t.PopUint16()
	click := t.PopUint16()
	w := popCell(t, "button")
	w.Text = text
	w.OnClick, w.OnPress, w.OnRelease = click, press, release
	t.m.show(w)
	return nil
}

func colourChannel(t *Thread) error {
	channel := op.ColourChannel(t.PopUint8())
	c := t.PopColour()
	h, s, v := rgbToHSV(c)
	var r float32
	switch channel {
	case op.Red:
		r = c.R
	case op.Green:
		r = c.G
	case op.Blue:
		r = c.B
	case op.Hue:
		r = h
	case op.Saturation:
		r = s
	case op.Value:
		r = v
	default:
		return fmt.Errorf("invalid colour channel %d", channel)
	}
	t.PushNumber(r)
	return nil
}

func colourSetVar(t *Thread) error {
	c := t.PopColour()
	dst, err := variable(t, t.PopUint16(), 12)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(dst, math.Float32bits(c.R))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(c.G))
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(c.B))
	return nil
}

func colourGetVar(t *Thread) error {
	offset := t.PopUint16()
	if _, err := variable(t, offset, 12); err != nil {
		return err
	}
	t.PushColour(t.m.VarColour(int(offset)))
	return nil
}

// colourBlend mixes in linear light.
func colourBlend(t *Thread) error {
	ratio := float64(t.PopNumber())
	b := t.PopColour()
	a := t.PopColour()
	mix := func(x, y float32) float32 {
		lx, ly := math.Pow(float64(x), 2.2), math.Pow(float64(y), 2.2)
		return float32(math.Pow(lx+(ly-lx)*ratio, 1/2.2))
	}
	t.PushColour(Colour{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B)})
	return nil
}

func colourFromHSV(t *Thread) error {
	v := t.PopNumber()
	s := t.PopNumber()
	h := t.PopNumber()
	t.PushColour(hsvToRGB(h, s, v))
	return nil
}

// rgbToHSV returns hue in degrees, saturation and value between 0 and 1.
func rgbToHSV(c Colour) (h, s, v float32) {
	lo := min(c.R, c.G, c.B)
	hi := max(c.R, c.G, c.B)
	v = hi
	delta := hi - lo
	if delta < 0.00001 || hi <= 0 {
		return 0, 0, v
	}
	s = delta / hi
	switch {
	case c.R >= hi:
		h = (c.G - c.B) / delta
	case c.G >= hi:
		h = 2 + (c.B-c.R)/delta
	default:
		h = 4 + (c.R-c.G)/delta
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func hsvToRGB(h, s, v float32) Colour {
	if s <= 0 {
		return Colour{v, v, v}
	}
	hh := float64(h)
	if hh >= 360 || hh < 0 {
		hh = 0
	}
	hh /= 60
	i := int(hh)
	ff := float32(hh - float64(i))
	p := v * (1 - s)
	q := v * (1 - s*ff)
	u := v * (1 - s*(1-ff))
	switch i {
	case 0:
		return Colour{v, u, p}
	case 1:
		return Colour{q, v, p}
	case 2:
		return Colour{p, v, u}
	case 3:
		return Colour{p, q, v}
	case 4:
		return Colour{u, p, v}
	default:
		return Colour{v, p, q}
	}
}

func rgbLedSetup(t *Thread) error {
	pin := t.PopUint8()
	count := t.PopUint16()
	id := t.PopUint16()
	t.m.strips[id] = &Strip{Pin: pin, LEDs: make([]Colour, count)}
	return nil
}

func strip(t *Thread, id uint16) (*Strip, error) {
	s, ok := t.m.strips[id]
	if !ok {
		return nil, fmt.Errorf("no LED strip with id %d", id)
	}
	return s, nil
}

func rgbLedSetColour(t *Thread) error {
	c := t.PopColour()
	index := int(t.PopNumber())
	s, err := strip(t, t.PopUint16())
	if err != nil {
		return err
	}
	if index >= 0 && index < len(s.LEDs) {
		s.LEDs[index] = c
	}
	return nil
}

func rgbLedShow(t *Thread) error {
	s, err := strip(t, t.PopUint16())
	if err != nil {
		return err
	}
	s.Shown = append(s.Shown[:0], s.LEDs...)
	s.Shows++
	return nil
}

func rgbMatrixSetup(t *Thread) error {
	pin := t.PopUint8()
	height := int(t.PopUint8())
	width := int(t.PopUint8())
	id := t.PopUint16()
	t.m.matrices[id] = &Matrix{Width: width, Height: height, Pin: pin, Pixels: make([]Colour, width*height)}
	return nil
}

func matrix(t *Thread, id uint16) (*Matrix, error) {
	mx, ok := t.m.matrices[id]
	if !ok {
		return nil, fmt.Errorf("no LED matrix with id %d", id)
	}
	return mx, nil
}

func rgbMatrixSetPixel(t *Thread) error {
	c := t.PopColour()
	y := int(t.PopNumber())
	x := int(t.PopNumber())
	mx, err := matrix(t, t.PopUint16())
	if err != nil {
		return err
	}
	if x >= 0 && x < mx.Width && y >= 0 && y < mx.Height {
		mx.Pixels[y*mx.Width+x] = c
	}
	return nil
}

// rgbMatrixDrawImage copies RGB bytes from the constant pool.
func rgbMatrixDrawImage(t *Thread) error {
	offset := int(t.PopUint16())
	mx, err := matrix(t, t.PopUint16())
	if err != nil {
		return err
	}
	raw := t.m.img.Raw()
	n := mx.Width * mx.Height * 3
	if offset+n > len(raw) {
		return fmt.Errorf("image at offset %d runs past the end of the image", offset)
	}
	for i := range mx.Pixels {
		p := raw[offset+3*i:]
		mx.Pixels[i] = Colour{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255}
	}
	return nil
}

func rgbMatrixShow(t *Thread) error {
	mx, err := matrix(t, t.PopUint16())
	if err != nil {
		return err
	}
	mx.Shown = append(mx.Shown[:0], mx.Pixels...)
	mx.Shows++
	return nil
}
