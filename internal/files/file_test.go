package files

import (
	"strings"
	"testing"
)

func TestNewKeyKeepsShortExtension(t *testing.T) {
	key, err := NewKey("holiday.jpeg")
	if err != nil {
		t.Fatalf("NewKey error: %v", err)
	}
	if !strings.HasSuffix(key, ".jpeg") {
		t.Fatalf("expected .jpeg suffix, got %s", key)
	}
	if !ValidKey(key) {
		t.Fatalf("generated key should be valid: %s", key)
	}
}

func TestNewKeyTruncatesExtension(t *testing.T) {
	key, err := NewKey("archive.tar.gzipped")
	if err != nil {
		t.Fatalf("NewKey error: %v", err)
	}
	if !strings.HasSuffix(key, ".gzip") {
		t.Fatalf("expected truncated extension, got %s", key)
	}
}

func TestNewKeyWithoutExtension(t *testing.T) {
	key, err := NewKey("README")
	if err != nil {
		t.Fatalf("NewKey error: %v", err)
	}
	if len(key) != LinkLength {
		t.Fatalf("expected %d characters, got %q", LinkLength, key)
	}
}

func TestValidKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "../etc/passwd", "abc", "aaaaaaaaaaaaaaaa/b", "aaaaaaaaaaaaaaaa.toolong"} {
		if ValidKey(key) {
			t.Fatalf("key %q should be rejected", key)
		}
	}
}
