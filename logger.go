package xdal

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/imdario/mergo"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

var Logger = watermill.NewStdLogger(false, false)

type llogger struct {
	log    *zap.SugaredLogger
	fields watermill.LogFields
}

// StdLogger adapts a zap logger to watermill's LoggerAdapter.
func StdLogger(logger *zap.Logger) watermill.LoggerAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &llogger{
		log: logger.Sugar(),
	}
}

func (log *llogger) fieldsArgs(fields watermill.LogFields) []interface{} {
	var (
		args []interface{}
		m    = make(map[string]interface{})
	)

	if len(log.fields) > 0 {
		copier.Copy(&m, log.fields)
	}

	mergo.Map(&m, map[string]interface{}(fields), mergo.WithOverride)

	for key, field := range m {
		args = append(args, key, field)
	}

	return args
}

func (log *llogger) Error(msg string, err error, fields watermill.LogFields) {
	log.log.Errorw(fmt.Sprintf("%s: %v", msg, err), log.fieldsArgs(fields)...)
}

func (log *llogger) Info(msg string, fields watermill.LogFields) {
	log.log.Infow(msg, log.fieldsArgs(fields)...)
}

func (log *llogger) Debug(msg string, fields watermill.LogFields) {
	log.log.Debugw(msg, log.fieldsArgs(fields)...)
}

func (log *llogger) Trace(msg string, fields watermill.LogFields) {
	log.log.Debugw(msg, log.fieldsArgs(fields)...)
}

func (log *llogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(map[string]interface{})
	copier.Copy(&merged, log.fields)
	mergo.Map(&merged, map[string]interface{}(fields), mergo.WithOverride)

	return &llogger{
		log:    log.log,
		fields: merged,
	}
}
