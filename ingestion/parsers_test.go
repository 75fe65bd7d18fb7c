package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	cases := map[string]DocumentFormat{
		"guide.md":      FormatMarkdown,
		"GUIDE.MD":      FormatMarkdown,
		"notes.markdown": FormatMarkdown,
		"spec.pdf":      FormatPDF,
		"metadata.json": FormatUnknown,
		"image.png":     FormatUnknown,
	}
	for path, want := range cases {
		if got := DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestExtractTitle(t *testing.T) {
	content := "intro text\n\n## Payout Methods\n\nbody"
	if got := ExtractTitle(content, "fallback"); got != "Payout Methods" {
		t.Fatalf("unexpected title: %q", got)
	}
	if got := ExtractTitle("no headings here", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestChunkTextSplitsOnParagraphs(t *testing.T) {
	para := strings.Repeat("a", 400)
	content := para + "\n\n" + para + "\n\n" + para

	chunks := ChunkText(content, 1000, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	// The trailing paragraph of a chunk repeats at the start of the next.
	if !strings.HasPrefix(chunks[1], para) {
		t.Fatal("expected overlap paragraph at start of second chunk")
	}
}

func TestChunkTextNoOverlap(t *testing.T) {
	para := strings.Repeat("b", 60)
	content := para + "\n\n" + para + "\n\n" + para

	chunks := ChunkText(content, 100, 0)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if chunk != para {
			t.Fatalf("unexpected chunk: %q", chunk)
		}
	}
}

func TestChunkTextSkipsEmptyContent(t *testing.T) {
	if chunks := ChunkText("\n\n   \n\n", 100, 10); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %v", chunks)
	}
}

func TestParseMarkdown(t *testing.T) {
	doc, err := Parse("guides/payouts.md", []byte("# Payout Guide\n\nHow to send payouts."))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Title != "Payout Guide" {
		t.Fatalf("unexpected title: %q", doc.Title)
	}
	if len(doc.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(doc.Chunks))
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"guides/Payout Methods.md":  "guides-payout-methods",
		"api/SGD_Singapore.pdf":     "api-sgd-singapore",
		"simple.md":                 "simple",
		"nested/dir/with--dashes.md": "nested-dir-with-dashes",
	}
	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCurrencyMentions(t *testing.T) {
	mentions := currencyMentions("SGD payouts settle T+1; AUD uses BSB codes. lower sgd ignored.")
	got := make(map[string]bool)
	for _, m := range mentions {
		got[m] = true
	}
	if !got["SGD"] || !got["AUD"] || !got["BSB"] {
		t.Fatalf("unexpected mentions: %v", mentions)
	}
	if got["T"] {
		t.Fatalf("short tokens must not match: %v", mentions)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()

	manifest, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("missing manifest should not error: %v", err)
	}
	if len(manifest) != 0 {
		t.Fatalf("expected empty manifest, got %v", manifest)
	}

	content := `{"guides/payouts.md": {"title": "Payout Guide", "url": "https://docs.corridorhq.com/payouts"}}`
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	manifest, err = LoadManifest(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	entry, ok := manifest["guides/payouts.md"]
	if !ok {
		t.Fatalf("expected manifest entry, got %v", manifest)
	}
	if entry.Title != "Payout Guide" || entry.URL != "https://docs.corridorhq.com/payouts" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}
