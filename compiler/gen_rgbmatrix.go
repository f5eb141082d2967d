package compiler

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
)

var rgbMatrixBlocks = []Registration{
	{
		Kind:    "rgbMatrix_config",
		Doc:     "Declares a WIDTH by HEIGHT matrix of RGB LEDs attached to PIN.",
		Returns: Void,
		Extract: extractRgbMatrix,
		Init:    initRgbMatrix,
	},
	{Kind: "rgbMatrix_set_pixel", Doc: "Sets the pixel at X, Y to COLOUR.", Returns: Void, Generate: genRgbMatrixSetPixel},
	{Kind: "rgbMatrix_show_image", Doc: "Draws the embedded IMAGE scaled to the matrix.", Returns: Void, Generate: genRgbMatrixImage},
	{Kind: "rgbMatrix_show", Doc: "Sends the pixels of a matrix to the LEDs.", Returns: Void, Generate: genRgbMatrixShow},
}

// matrix is the data attached to an rgbMatrix_config node.
type matrix struct {
	id     uint16
	width  int
	height int
}

func extractRgbMatrix(n *block.Node, ctx *Context) error {
	w, err := n.FieldUint("WIDTH", 0xff)
	if err != nil {
		return err
	}
	h, err := n.FieldUint("HEIGHT", 0xff)
	if err != nil {
		return err
	}
	if w == 0 || h == 0 {
		return fmt.Errorf("matrix size %dx%d is empty", w, h)
	}
	ctx.SetData(n, matrix{id: ctx.NextID(), width: w, height: h})
	return nil
}

func matrixRef(n *block.Node, ctx *Context) (matrix, error) {
	ref := n.FieldString("MATRIX")
	v, _ := ctx.DataByID(ref)
	m, ok := v.(matrix)
	if !ok {
		return matrix{}, errz.New(errz.ErrStructural, "field MATRIX refers to %q, which is not a configured matrix", ref)
	}
	return m, nil
}

func initRgbMatrix(n *block.Node, ctx *Context) (bytecode.Segment, error) {
	m, ok := ctx.Data(n).(matrix)
	if !ok {
		return bytecode.Empty, errz.New(errz.ErrStructural, "RGB matrix configuration has no device id")
	}
	pin, err := fieldU8(n, "PIN")
	if err != nil {
		return bytecode.Empty, err
	}
	tc, err := ctx.Statement(native.RgbMatrixSetup, U16(m.id), U8(uint8(m.width)), U8(uint8(m.height)), U8(pin))
	return tc.Code, err
}

func genRgbMatrixSetPixel(n *block.Node, ctx *Context) (TypedCode, error) {
	m, err := matrixRef(n, ctx)
	if err != nil {
		return TypedCode{}, err
	}
	args, err := numbers(n, ctx, "X", "Y")
	if err != nil {
		return TypedCode{}, err
	}
	colour, err := ctx.Input(n, "COLOUR", Colour)
	if err != nil {
		return TypedCode{}, err
	}
	args = append([]Arg{U16(m.id)}, args...)
	return ctx.Statement(native.RgbMatrixSetPixel, append(args, Value(colour))...)
}

// genRgbMatrixImage scales the image to the matrix at compile time and
// stores its pixels in the constant pool as RGB bytes, row by row.
func genRgbMatrixImage(n *block.Node, ctx *Context) (TypedCode, error) {
	m, err := matrixRef(n, ctx)
	if err != nil {
		return TypedCode{}, err
	}
	img, err := decodeImage(n.FieldString("IMAGE"))
	if err != nil {
		return TypedCode{}, err
	}
	off, err := ctx.AddConstant(matrixPixels(img, m.width, m.height))
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Statement(native.RgbMatrixDrawImage, U16(m.id), U16(off))
}

func genRgbMatrixShow(n *block.Node, ctx *Context) (TypedCode, error) {
	m, err := matrixRef(n, ctx)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Statement(native.RgbMatrixShow, U16(m.id))
}

// decodeImage decodes a base64 PNG or JPEG, optionally given as a data URL.
func decodeImage(s string) (image.Image, error) {
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("image is not valid base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

func matrixPixels(img image.Image, width, height int) []byte {
	scaled := transform.Resize(img, width, height, transform.Linear)
	out := make([]byte, 0, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := scaled.RGBAAt(x, y)
			out = append(out, c.R, c.G, c.B)
		}
	}
	return out
}
