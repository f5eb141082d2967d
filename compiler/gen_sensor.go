package compiler

import (
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/native"
)

var sensorBlocks = []Registration{
	{
		Kind:    "sensor_on_gravity_values",
		Doc:     "Runs BODY in a thread of its own for every new accelerometer sample.",
		Returns: Void,
		Extract: extractOnGravity,
	},
	{Kind: "sensor_get_gravity_value", Doc: "The last accelerometer reading on AXIS.", Returns: Number, Generate: genGravityValue},
}

var axes = map[string]uint8{"X": 0, "Y": 1, "Z": 2}

func extractOnGravity(n *block.Node, ctx *Context) error {
	_, err := ctx.AddThread(n, func(ctx *Context) (bytecode.Segment, error) {
		setup, err := ctx.Statement(native.SensorSetupOnGravityValues)
		if err != nil {
			return bytecode.Empty, err
		}
		return waitLoop(ctx, n, setup.Code, native.SensorWaitForGravityValues)
	})
	return err
}

func genGravityValue(n *block.Node, ctx *Context) (TypedCode, error) {
	axis, err := choice(n, "AXIS", axes)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.SensorGetGravityValue, Number, U8(axis))
}
