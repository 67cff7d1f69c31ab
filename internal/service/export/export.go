// Package export renders the stored conversation collection into shareable
// documents. JSON is the canonical free format; Markdown, HTML and CSV
// require the exportFormats premium feature.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/internal/service/premium"
	"github.com/sandevgo/chatweave/pkg/tokens"
)

// Format identifies one export rendering.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatCSV      Format = "csv"
)

// ErrPremiumRequired is returned for gated formats without an active
// subscription.
var ErrPremiumRequired = errors.New("export: format requires premium")

// ErrUnknownFormat is returned for a format string outside the known set.
var ErrUnknownFormat = errors.New("export: unknown format")

var (
	mdExtensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	mdHTMLFlags  = html.CommonFlags | html.HrefTargetBlank
	htmlPolicy   = bluemonday.UGCPolicy()
)

// ContentType maps a format to its MIME type.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown"
	case FormatHTML:
		return "text/html"
	case FormatCSV:
		return "text/csv"
	}
	return "application/octet-stream"
}

// ParseFormat normalizes a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

type Exporter struct {
	store   core.ConversationStore
	premium *premium.Manager
}

func New(store core.ConversationStore, pm *premium.Manager) *Exporter {
	return &Exporter{store: store, premium: pm}
}

// Export renders the whole collection in the requested format.
func (e *Exporter) Export(ctx context.Context, format Format) ([]byte, error) {
	if format != FormatJSON && !e.premium.HasFeature(premium.FeatureExportFormats) {
		return nil, ErrPremiumRequired
	}

	switch format {
	case FormatJSON:
		return e.store.ExportData(ctx)
	case FormatMarkdown:
		return e.renderMarkdown(ctx), nil
	case FormatHTML:
		md := e.renderMarkdown(ctx)
		return e.renderHTML(md), nil
	case FormatCSV:
		return e.renderCSV(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func (e *Exporter) renderMarkdown(ctx context.Context) []byte {
	conversations := e.store.Conversations(ctx)

	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s Export\n\n", core.AppName)
	fmt.Fprintf(&b, "Exported %s — %d conversations.\n\n",
		time.UnixMilli(core.NowMs()).UTC().Format("2006-01-02 15:04 MST"), len(conversations))

	for _, c := range conversations {
		fmt.Fprintf(&b, "## [%s] %s\n\n", strings.ToUpper(c.Platform.String()), c.Title)
		if c.URL != "" {
			fmt.Fprintf(&b, "- URL: %s\n", c.URL)
		}
		fmt.Fprintf(&b, "- Updated: %s\n", time.UnixMilli(c.UpdatedAt).UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "- Messages: %d (~%d tokens)\n", len(c.Messages), conversationTokens(c))
		if len(c.Tags) > 0 {
			fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(c.Tags, ", "))
		}
		b.WriteString("\n")

		for _, m := range c.Messages {
			fmt.Fprintf(&b, "**%s**: %s\n\n", m.Role, m.Content)
		}
	}
	return b.Bytes()
}

func (e *Exporter) renderHTML(md []byte) []byte {
	p := parser.NewWithExtensions(mdExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: mdHTMLFlags})
	unsafe := markdown.Render(p.Parse(md), renderer)
	body := htmlPolicy.SanitizeBytes(unsafe)

	var b bytes.Buffer
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s Export</title>\n</head>\n<body>\n", core.AppName)
	b.Write(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.Bytes()
}

func (e *Exporter) renderCSV(ctx context.Context) ([]byte, error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)

	header := []string{"id", "title", "platform", "created", "updated", "messages", "tags"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}

	for _, c := range e.store.Conversations(ctx) {
		record := []string{
			c.ID,
			c.Title,
			c.Platform.String(),
			time.UnixMilli(c.CreatedAt).UTC().Format(time.RFC3339),
			time.UnixMilli(c.UpdatedAt).UTC().Format(time.RFC3339),
			strconv.Itoa(len(c.Messages)),
			strings.Join(c.Tags, ";"),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return b.Bytes(), nil
}

func conversationTokens(c core.Conversation) int {
	total := 0
	for _, m := range c.Messages {
		total += tokens.Count(m.Content)
	}
	return total
}
