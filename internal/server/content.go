package server

import (
	"mime"
	"net/url"
	"strings"
)

// 允许浏览器按原类型内联展示的类型，其余一律降级。
var inlineContentTypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"image/gif":       {},
	"image/webp":      {},
	"video/mp4":       {},
	"video/ogg":       {},
	"video/mpeg":      {},
	"video/webm":      {},
	"text/plain":      {},
	"audio/mp4":       {},
	"audio/ogg":       {},
	"audio/mpeg":      {},
	"audio/mp3":       {},
	"application/pdf": {},
}

var forcedTextTypes = map[string]struct{}{
	"application/json": {},
	"application/xml":  {},
}

// safeContentType 防止上传的 HTML/SVG 等在本域内被执行。
func safeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if _, ok := inlineContentTypes[mediaType]; ok {
		return mediaType
	}
	if _, ok := forcedTextTypes[mediaType]; ok {
		return "text/plain"
	}
	return "application/octet-stream"
}

func contentDisposition(filename string) string {
	return "inline; filename*=UTF-8''" + url.PathEscape(filename)
}
