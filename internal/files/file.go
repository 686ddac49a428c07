// Package files holds the file record shared by the catalog, the cache engine
// and the HTTP layer, plus helpers for generating and validating links.
package files

import (
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// LinkLength is the number of random characters in a generated link.
const LinkLength = 16

const linkAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// maxExtensionLength 限制 link 中保留的扩展名长度。
const maxExtensionLength = 4

var linkPattern = regexp.MustCompile(`^\w{16}(?:\.\w{1,4})?$`)

// ErrInvalidKey 表示 link 不符合 16 位字母数字 + 可选扩展名的格式。
var ErrInvalidKey = errors.New("invalid file key")

// File 描述一个已上传文件的不可变元数据，Key 同时用于远端存储、磁盘缓存与索引。
type File struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// ValidKey reports whether key has the shape produced by NewKey.
func ValidKey(key string) bool {
	return linkPattern.MatchString(key)
}

// NewKey 生成一个新的 link，并尽量保留原始文件名中的扩展名（最多 4 个字符）。
func NewKey(filename string) (string, error) {
	var b strings.Builder
	b.Grow(LinkLength + maxExtensionLength + 1)
	max := big.NewInt(int64(len(linkAlphabet)))
	for i := 0; i < LinkLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(linkAlphabet[n.Int64()])
	}
	b.WriteString(extension(filename))
	return b.String(), nil
}

func extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	var ext strings.Builder
	for _, r := range name[idx+1:] {
		if ext.Len() == maxExtensionLength {
			break
		}
		if r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			ext.WriteRune(r)
		}
	}
	if ext.Len() == 0 {
		return ""
	}
	return "." + ext.String()
}

// CacheRecord 是缓存索引中的一行：某个 key 已缓存在本地磁盘，以及最后使用时间。
type CacheRecord struct {
	Key      string
	LastUsed time.Time
}
