package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/file-hub/file-hub/internal/filecache"
	"github.com/file-hub/file-hub/internal/files"
	"github.com/file-hub/file-hub/internal/logging"
)

// Cache 是 HTTP 层使用的缓存引擎能力，由 *filecache.Manager 实现。
type Cache interface {
	Lookup(ctx context.Context, key string) (files.File, error)
	Read(ctx context.Context, key string, start, end int64) (*filecache.Stream, error)
	Upload(ctx context.Context, file files.File, body io.ReadSeeker) error
	Delete(ctx context.Context, key string) (bool, error)
}

// Catalog 持久化文件元数据，由 *repository.FileRepository 实现。
type Catalog interface {
	Create(ctx context.Context, file files.File) error
	Delete(ctx context.Context, key string) (bool, error)
}

var filenamePattern = regexp.MustCompile(`^[-_.A-Za-z0-9 ()]+$`)

const cacheControl = "public, max-age=2592000, immutable"

type fileHandler struct {
	logger        *logrus.Logger
	cache         Cache
	catalog       Catalog
	maxUploadSize int64
}

type uploadResponse struct {
	Link        string `json:"link"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

// upload 接收 multipart 字段 file，先登记元数据，再写入远端与本地缓存。
func (h *fileHandler) upload(c fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return renderError(c, h.logger, errFileRequired)
	}
	if header.Size > h.maxUploadSize {
		return renderError(c, h.logger, errTooLarge)
	}
	if !filenamePattern.MatchString(header.Filename) {
		return renderError(c, h.logger, errInvalidFilename)
	}

	key, err := files.NewKey(header.Filename)
	if err != nil {
		return renderError(c, h.logger, err)
	}
	contentType := header.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	file := files.File{
		Key:         key,
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		UploadedAt:  time.Now().UTC(),
	}

	body, err := header.Open()
	if err != nil {
		return renderError(c, h.logger, err)
	}
	defer body.Close()

	ctx := requestContext(c)
	if err := h.catalog.Create(ctx, file); err != nil {
		return renderError(c, h.logger, err)
	}
	if err := h.cache.Upload(ctx, file, body); err != nil {
		if _, delErr := h.catalog.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			h.logger.WithError(delErr).WithFields(logging.FileFields("upload", key)).Warn("catalog_rollback_failed")
		}
		return renderError(c, h.logger, err)
	}

	h.logger.WithFields(logging.FileFields("upload", key)).
		WithFields(logrus.Fields{"request_id": RequestID(c), "size": file.Size}).
		Info("file_uploaded")
	return c.Status(fiber.StatusCreated).JSON(uploadResponse{
		Link:        key,
		Filename:    file.Name,
		Size:        file.Size,
		ContentType: file.ContentType,
	})
}

func (h *fileHandler) lookup(c fiber.Ctx) (files.File, error) {
	key := c.Params("link")
	if !files.ValidKey(key) {
		return files.File{}, fmt.Errorf("%w: %s", filecache.ErrNotFound, key)
	}
	return h.cache.Lookup(requestContext(c), key)
}

func setFileHeaders(c fiber.Ctx, file files.File) {
	c.Set(fiber.HeaderContentType, safeContentType(file.ContentType))
	c.Set(fiber.HeaderContentDisposition, contentDisposition(file.Name))
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderCacheControl, cacheControl)
}

func (h *fileHandler) head(c fiber.Ctx) error {
	file, err := h.lookup(c)
	if err != nil {
		return renderError(c, h.logger, err)
	}
	setFileHeaders(c, file)
	c.Status(fiber.StatusOK)
	c.Response().Header.SetContentLength(int(file.Size))
	return nil
}

// download 通过缓存引擎读取文件，支持单段 Range 请求。
func (h *fileHandler) download(c fiber.Ctx) error {
	file, err := h.lookup(c)
	if err != nil {
		return renderError(c, h.logger, err)
	}

	byteRange, err := parseRange(c.Get(fiber.HeaderRange), file.Size)
	if err != nil {
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", file.Size))
		return renderError(c, h.logger, err)
	}

	stream, err := h.cache.Read(requestContext(c), file.Key, byteRange.start, byteRange.end)
	if err != nil {
		return renderError(c, h.logger, err)
	}

	setFileHeaders(c, file)
	status := fiber.StatusOK
	if byteRange.partial {
		status = fiber.StatusPartialContent
		c.Set(fiber.HeaderContentRange, byteRange.contentRange(file.Size))
	}
	c.Status(status)
	// fasthttp 写完正文后关闭 stream，从而释放读者预约。
	return c.SendStream(stream, int(byteRange.length()))
}

// delete 删除远端对象与元数据；本地缓存异步淘汰。
func (h *fileHandler) delete(c fiber.Ctx) error {
	key := c.Params("link")
	if !files.ValidKey(key) {
		return renderError(c, h.logger, fmt.Errorf("%w: %s", filecache.ErrNotFound, key))
	}
	ctx := requestContext(c)
	remoteDeleted, err := h.cache.Delete(ctx, key)
	if err != nil {
		return renderError(c, h.logger, err)
	}
	catalogDeleted, err := h.catalog.Delete(ctx, key)
	if err != nil {
		return renderError(c, h.logger, err)
	}
	h.logger.WithFields(logging.FileFields("delete", key)).
		WithFields(logrus.Fields{"request_id": RequestID(c), "remote": remoteDeleted, "catalog": catalogDeleted}).
		Info("file_deleted")
	return c.JSON(fiber.Map{"deleted": remoteDeleted || catalogDeleted})
}

var (
	errFileRequired    = errors.New("multipart field file is required")
	errTooLarge        = errors.New("upload exceeds size limit")
	errInvalidFilename = errors.New("invalid filename")
)
