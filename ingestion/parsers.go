package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// DocumentFormat enumerates supported corpus file formats.
type DocumentFormat string

const (
	FormatUnknown  DocumentFormat = ""
	FormatMarkdown DocumentFormat = "markdown"
	FormatPDF      DocumentFormat = "pdf"
)

// DetectFormat infers a document format from the path's extension.
func DetectFormat(path string) DocumentFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".pdf":
		return FormatPDF
	default:
		return FormatUnknown
	}
}

type ParsedDocument struct {
	Title  string
	Chunks []string
}

// Parse extracts title and chunked text from a corpus file.
func Parse(path string, data []byte) (*ParsedDocument, error) {
	switch DetectFormat(path) {
	case FormatMarkdown:
		content := string(data)
		return &ParsedDocument{
			Title:  ExtractTitle(content, filepath.Base(path)),
			Chunks: ChunkText(content, defaultChunkSize, defaultChunkOverlap),
		}, nil
	case FormatPDF:
		return parsePDF(path, data)
	default:
		return nil, fmt.Errorf("unsupported document format: %s", path)
	}
}

func parsePDF(path string, data []byte) (*ParsedDocument, error) {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	content := normalizePlainText(buf.String())
	title := firstNonEmptyLine(content)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &ParsedDocument{
		Title:  title,
		Chunks: ChunkText(content, defaultChunkSize, defaultChunkOverlap),
	}, nil
}

// ExtractTitle returns the first markdown heading, or the fallback.
func ExtractTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return fallback
}

// ChunkText splits content into paragraph-aligned chunks of roughly target
// bytes, carrying the trailing paragraph over as overlap.
func ChunkText(content string, target, overlap int) []string {
	clean := strings.ReplaceAll(content, "\r\n", "\n")
	paragraphs := strings.Split(clean, "\n\n")
	chunks := make([]string, 0)
	current := make([]string, 0)
	currentLen := 0

	for _, paragraph := range paragraphs {
		p := strings.TrimSpace(paragraph)
		if p == "" {
			continue
		}

		paragraphLen := len(p)
		if currentLen+paragraphLen > target && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			if overlap > 0 {
				last := current[len(current)-1]
				current = []string{last}
				currentLen = len(last)
			} else {
				current = current[:0]
				currentLen = 0
			}
		}

		current = append(current, p)
		currentLen += paragraphLen
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}

	return chunks
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func firstNonEmptyLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var (
	currencyMentionRE = regexp.MustCompile(`\b[A-Z]{3}\b`)
	slugSeparatorRE   = regexp.MustCompile(`[^a-z0-9]+`)
)

// currencyMentions finds literal uppercase three-letter tokens; callers
// filter them against the known corridor currencies.
func currencyMentions(content string) []string {
	return currencyMentionRE.FindAllString(content, -1)
}

// Slugify derives a URL-safe slug from a relative corpus path.
func Slugify(relPath string) string {
	base := strings.TrimSuffix(relPath, filepath.Ext(relPath))
	slug := slugSeparatorRE.ReplaceAllString(strings.ToLower(base), "-")
	return strings.Trim(slug, "-")
}

// ManifestEntry overrides the derived title and public URL for one file.
type ManifestEntry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Manifest maps relative corpus paths to display metadata.
type Manifest map[string]ManifestEntry

// LoadManifest reads metadata.json from the corpus root, if present.
func LoadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}
		return Manifest{}, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse metadata.json: %w", err)
	}
	return manifest, nil
}
