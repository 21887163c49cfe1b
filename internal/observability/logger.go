package observability

import (
	"go.uber.org/zap"
)

// NewLogger returns a development logger when debug is set, otherwise a
// production JSON logger.
func NewLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
