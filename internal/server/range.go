package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/file-hub/file-hub/internal/filecache"
)

// byteRange 是半开区间 [start, end)。
type byteRange struct {
	start   int64
	end     int64
	partial bool
}

func (r byteRange) length() int64 {
	return r.end - r.start
}

func (r byteRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end-1, size)
}

// parseRange 解析单段 Range 头（bytes=a-b、bytes=a-、bytes=-n）。
// 无法识别或多段的 Range 被忽略并返回整个文件；无法满足的区间返回
// filecache.ErrInvalidRange。
func parseRange(header string, size int64) (byteRange, error) {
	full := byteRange{start: 0, end: size}
	header = strings.TrimSpace(header)
	if header == "" {
		return full, nil
	}
	set, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(set, ",") {
		return full, nil
	}
	first, last, ok := strings.Cut(strings.TrimSpace(set), "-")
	if !ok {
		return full, nil
	}

	unsatisfiable := fmt.Errorf("%w: %q of %d", filecache.ErrInvalidRange, header, size)
	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return full, nil
		}
		if n == 0 || size == 0 {
			return byteRange{}, unsatisfiable
		}
		if n > size {
			n = size
		}
		return byteRange{start: size - n, end: size, partial: true}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return full, nil
	}
	end := size
	if last != "" {
		inclusive, err := strconv.ParseInt(last, 10, 64)
		if err != nil || inclusive < start {
			return full, nil
		}
		if inclusive+1 < end {
			end = inclusive + 1
		}
	}
	if start >= size {
		return byteRange{}, unsatisfiable
	}
	return byteRange{start: start, end: end, partial: true}, nil
}
