//go:build !linux

package upower

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/powerinfo"
)

// Open always fails on non-Linux platforms.
func Open(_ context.Context, _ logrus.FieldLogger) (powerinfo.Source, error) {
	return nil, ErrUnsupported
}
