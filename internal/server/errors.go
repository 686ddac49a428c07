package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/file-hub/file-hub/internal/filecache"
	"github.com/file-hub/file-hub/internal/repository"
)

// statusFor 将领域错误映射为 HTTP 状态码与错误码。
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, filecache.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, filecache.ErrInvalidRange):
		return fiber.StatusRequestedRangeNotSatisfiable, "invalid_range"
	case errors.Is(err, filecache.ErrAlreadyExists), errors.Is(err, repository.ErrExists):
		return fiber.StatusConflict, "already_exists"
	case errors.Is(err, filecache.ErrDownloadFailed):
		return fiber.StatusBadGateway, "download_failed"
	case errors.Is(err, errFileRequired), errors.Is(err, errInvalidFilename):
		return fiber.StatusBadRequest, "invalid_upload"
	case errors.Is(err, errTooLarge):
		return fiber.StatusRequestEntityTooLarge, "too_large"
	default:
		return fiber.StatusInternalServerError, "internal"
	}
}

func renderError(c fiber.Ctx, logger *logrus.Logger, err error) error {
	status, code := statusFor(err)
	fields := logrus.Fields{
		"action":     "render_error",
		"request_id": RequestID(c),
		"path":       c.Path(),
		"code":       code,
	}
	if status >= fiber.StatusInternalServerError {
		logger.WithError(err).WithFields(fields).Error("request_failed")
	} else {
		logger.WithError(err).WithFields(fields).Debug("request_rejected")
	}
	return c.Status(status).JSON(fiber.Map{"error": code})
}
