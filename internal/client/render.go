package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/danmuck/newswire/internal/protocol"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorError   = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F5F"}
)

// Styles are bound to the renderer of the output stream so a non-terminal
// writer gets plain text.
type Styles struct {
	Header  lipgloss.Style
	Option  lipgloss.Style
	Index   lipgloss.Style
	Title   lipgloss.Style
	Meta    lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
}

func NewStyles(out io.Writer) Styles {
	r := lipgloss.NewRenderer(out)
	return Styles{
		Header:  r.NewStyle().Bold(true).Foreground(colorPrimary),
		Option:  r.NewStyle().Foreground(colorDim),
		Index:   r.NewStyle().Foreground(colorAccent).Bold(true),
		Title:   r.NewStyle().Bold(true),
		Meta:    r.NewStyle().Foreground(colorGreen),
		Label:   r.NewStyle().Foreground(colorDim),
		Success: r.NewStyle().Foreground(colorGreen),
		Error:   r.NewStyle().Foreground(colorError).Bold(true),
	}
}

// RenderResponse formats resp for display. Lists render one "index. title"
// or "index. name" line per item followed by the total.
func (s Styles) RenderResponse(resp protocol.Response) string {
	if !resp.OK() {
		return s.Error.Render("Error: "+resp.Message) + "\n"
	}
	var b strings.Builder
	switch resp.Type {
	case protocol.TypeHeadlines:
		items, err := resp.HeadlineItems()
		if err != nil {
			return s.Error.Render("Error: malformed headlines list") + "\n"
		}
		b.WriteString(s.Header.Render("Headlines") + "\n")
		for _, item := range items {
			line := fmt.Sprintf("%s %s", s.Index.Render(fmt.Sprintf("%2d.", item.Index)), s.Title.Render(text(item.Title)))
			if item.Source != nil {
				line += " " + s.Meta.Render("("+*item.Source+")")
			}
			b.WriteString(line + "\n")
		}
		b.WriteString(s.Option.Render(fmt.Sprintf("Total: %d", total(resp))) + "\n")
	case protocol.TypeSources:
		items, err := resp.SourceItems()
		if err != nil {
			return s.Error.Render("Error: malformed sources list") + "\n"
		}
		b.WriteString(s.Header.Render("Sources") + "\n")
		for _, item := range items {
			b.WriteString(fmt.Sprintf("%s %s\n", s.Index.Render(fmt.Sprintf("%2d.", item.Index)), s.Title.Render(text(item.Name))))
		}
		b.WriteString(s.Option.Render(fmt.Sprintf("Total: %d", total(resp))) + "\n")
	case protocol.TypeHeadlineDetail:
		d, err := resp.HeadlineDetail()
		if err != nil {
			return s.Error.Render("Error: malformed headline detail") + "\n"
		}
		b.WriteString(s.Header.Render(text(d.Title)) + "\n")
		s.field(&b, "Source", d.Source)
		s.field(&b, "Author", d.Author)
		s.field(&b, "Published", d.PublishedAt)
		s.field(&b, "URL", d.URL)
		s.field(&b, "Description", d.Description)
	case protocol.TypeSourceDetail:
		d, err := resp.SourceDetail()
		if err != nil {
			return s.Error.Render("Error: malformed source detail") + "\n"
		}
		b.WriteString(s.Header.Render(text(d.Name)) + "\n")
		s.field(&b, "Country", d.Country)
		s.field(&b, "Category", d.Category)
		s.field(&b, "Language", d.Language)
		s.field(&b, "URL", d.URL)
		s.field(&b, "Description", d.Description)
	default:
		b.WriteString(s.Success.Render(resp.Message) + "\n")
	}
	return b.String()
}

func (s Styles) field(b *strings.Builder, label string, v *string) {
	b.WriteString(fmt.Sprintf("  %s %s\n", s.Label.Render(label+":"), text(v)))
}

func text(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "N/A"
	}
	return *v
}

func total(resp protocol.Response) int {
	if resp.Total == nil {
		return 0
	}
	return *resp.Total
}
