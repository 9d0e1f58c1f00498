package errprocess

import (
	"errors"
	"fmt"

	"video_pipeline_service/pkg/logger"

	"go.uber.org/zap"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap log errMsg with its cause and return an error that still matches the cause with errors.Is
func Wrap(err error, errMsg string) error {
	logger.Log.Error(errMsg, zap.Error(err))
	return fmt.Errorf("%s : %w", errMsg, err)
}
