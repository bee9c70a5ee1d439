package domain

import (
	"errors"
	"testing"
)

func TestNewChunk(t *testing.T) {
	c, err := NewChunk("some lecture text", map[string]string{
		MetaSource: "https://example.com/lecture-1#intro",
		MetaTitle:  "Lecture 1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Text() != "some lecture text" {
		t.Errorf("text = %q", c.Text())
	}
	if c.Source() != "https://example.com/lecture-1#intro" {
		t.Errorf("source = %q", c.Source())
	}
	if c.Fingerprint() == "" {
		t.Error("fingerprint must be set on construction")
	}
	if c.Exclude() {
		t.Error("exclude must default to false")
	}
}

func TestNewChunk_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		metadata map[string]string
	}{
		{"empty text", "", map[string]string{MetaSource: "https://example.com"}},
		{"missing source", "text", map[string]string{MetaTitle: "no source"}},
		{"nil metadata", "text", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewChunk(tt.text, tt.metadata); !errors.Is(err, ErrInvalidChunk) {
				t.Errorf("expected ErrInvalidChunk, got %v", err)
			}
		})
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("identical text")
	b := Fingerprint("identical text")
	if a != b {
		t.Errorf("same text must hash identically: %s != %s", a, b)
	}
	if a == Fingerprint("different text") {
		t.Error("different text must not collide")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256 (64 chars), got %d", len(a))
	}
}

func TestChunk_WithExclude(t *testing.T) {
	c, err := NewChunk("references section", map[string]string{MetaSource: "https://arxiv.org/pdf/1234.5678.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flagged := c.WithExclude(true)
	if !flagged.Exclude() {
		t.Error("expected exclude=true on copy")
	}
	if c.Exclude() {
		t.Error("original must be unchanged")
	}
	if flagged.Fingerprint() != c.Fingerprint() {
		t.Error("exclusion must not change identity")
	}
}
