package log

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var global atomic.Pointer[zap.Logger]

func init() { global.Store(zap.NewNop()) }

// Init builds the process logger (JSON in production, console otherwise)
// and installs it as L().
func Init(dev bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	global.Store(l)
	return l, nil
}

func L() *zap.Logger { return global.Load() }
