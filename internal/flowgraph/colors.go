package flowgraph

import (
	"github.com/pkg/errors"
	colors "gopkg.in/go-playground/colors.v1"

	"triage/internal/flow"
)

func hex(c flow.RGB) (string, error) {
	rgb, err := colors.RGB(c.R, c.G, c.B)
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}
	return rgb.ToHEX().String(), nil
}
