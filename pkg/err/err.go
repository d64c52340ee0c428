package errprocess

import (
	"errors"

	"direct_message_service/pkg/logger"

	"go.uber.org/zap"
)

// Set log errMsg and return it as an error
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Log log err with op at the boundary and return it unchanged
func Log(op string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	logger.Log.Error(op, append(fields, zap.Error(err))...)
	return err
}
