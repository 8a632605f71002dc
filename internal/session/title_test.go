package session

import "testing"

func TestDeriveTitleTruncatesToMaxRunes(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "가"
	}
	got := deriveTitle(long)
	if len([]rune(got)) != titleMaxRunes {
		t.Fatalf("deriveTitle: want %d runes, got %d", titleMaxRunes, len([]rune(got)))
	}
}

func TestDeriveTitleTrimsWhitespace(t *testing.T) {
	if got := deriveTitle("  서울대 경영학과  "); got != "서울대 경영학과" {
		t.Fatalf("deriveTitle: got %q", got)
	}
}

func TestDeriveTitleEmpty(t *testing.T) {
	if got := deriveTitle("   "); got != "" {
		t.Fatalf("deriveTitle: want empty, got %q", got)
	}
}
