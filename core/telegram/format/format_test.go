package format

import "testing"

func TestEscapeMarkdownV1(t *testing.T) {
	got, err := EscapeMarkdown("a_b*c`d[e]", MarkdownV1)
	if err != nil {
		t.Fatal(err)
	}
	if want := "a\\_b\\*c\\`d\\[e]"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got, err := EscapeMarkdown("1.5 (x)!", MarkdownV2)
	if err != nil {
		t.Fatal(err)
	}
	if want := "1\\.5 \\(x\\)\\!"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEscapeMarkdownUnsupported(t *testing.T) {
	if _, err := EscapeMarkdown("x", 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestLinkAndCode(t *testing.T) {
	if got := Link("bob_1", "tg://user?id=7"); got != "[bob\\_1](tg://user?id=7)" {
		t.Fatalf("link: %q", got)
	}
	if got := Code("no `ticks`"); got != "`no ticks`" {
		t.Fatalf("code: %q", got)
	}
}
