package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/file-hub/file-hub/internal/logging"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger        *logrus.Logger
	Cache         Cache
	Catalog       Catalog
	MaxUploadSize int64
}

const contextKeyRequestID = "_filehub_request_id"

// multipart 头与分隔符的额外开销。
const multipartOverhead = 1 << 20

// NewApp builds the Fiber application with request-id middleware, access
// logging and the file routes.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache manager is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("file catalog is required")
	}
	if opts.MaxUploadSize <= 0 {
		return nil, errors.New("max upload size must be positive")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		BodyLimit:     int(opts.MaxUploadSize + multipartOverhead),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	h := &fileHandler{
		logger:        opts.Logger,
		cache:         opts.Cache,
		catalog:       opts.Catalog,
		maxUploadSize: opts.MaxUploadSize,
	}
	app.Post("/upload", h.upload)
	// HEAD 需先于 GET 注册，否则会命中 GET 自动附带的 HEAD 路由。
	app.Head("/:link", h.head)
	app.Get("/:link", h.download)
	app.Delete("/:link", h.delete)

	return app, nil
}

// requestContextMiddleware 生成请求 ID，并在请求结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		fields := logging.RequestFields(reqID, c.Method(), c.Path(), status)
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		entry := logger.WithFields(fields)
		if status >= fiber.StatusInternalServerError {
			entry.Warn("request_complete")
		} else {
			entry.Debug("request_complete")
		}
		return err
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
