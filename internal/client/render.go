package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/chat"
	"github.com/autogenius/autogenius/internal/recommend"
)

// Bubble is one rendered transcript entry.
type Bubble struct {
	Role         chat.Role
	Content      string
	Timestamp    time.Time
	CarImage     string
	Products     []recommend.Product
	ShowProducts bool
}

// productTriggers are the words in a user message that make the product
// cards of the following reply visible.
var productTriggers = []string{"product", "recommend", "part", "tool", "suggest"}

// ShouldShowProducts reports whether products belong under a reply to
// lastUser.
func ShouldShowProducts(lastUser string, products []recommend.Product) bool {
	if len(products) == 0 {
		return false
	}
	lower := strings.ToLower(lastUser)
	for _, kw := range productTriggers {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Palette is the color set of one theme.
type Palette struct {
	Foreground lipgloss.Color
	User       lipgloss.Color
	Assistant  lipgloss.Color
	Muted      lipgloss.Color
	Accent     lipgloss.Color
	Error      lipgloss.Color
	IsDark     bool
}

func LightPalette() Palette {
	return Palette{
		Foreground: lipgloss.Color("#101F38"),
		User:       lipgloss.Color("#1565C0"),
		Assistant:  lipgloss.Color("#2E7D32"),
		Muted:      lipgloss.Color("#6B7280"),
		Accent:     lipgloss.Color("#F57C00"),
		Error:      lipgloss.Color("#E53935"),
	}
}

func DarkPalette() Palette {
	return Palette{
		Foreground: lipgloss.Color("#F2F2F2"),
		User:       lipgloss.Color("#64B5F6"),
		Assistant:  lipgloss.Color("#8BC34A"),
		Muted:      lipgloss.Color("#9CA3AF"),
		Accent:     lipgloss.Color("#FFC107"),
		Error:      lipgloss.Color("#EF5350"),
		IsDark:     true,
	}
}

// Renderer turns bubbles into terminal text for a theme and text size.
type Renderer struct {
	palette  Palette
	width    int
	markdown *glamour.TermRenderer
}

// NewRenderer builds a renderer. The larger text size wraps narrower and
// renders message text in bold.
func NewRenderer(dark bool, textSize string, logger *zap.Logger) *Renderer {
	style := "light"
	if dark {
		style = "dark"
	}
	return newRenderer(style, dark, textSize, logger)
}

func newRenderer(style string, dark bool, textSize string, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := LightPalette()
	if dark {
		p = DarkPalette()
	}
	width := 96
	if textSize == chat.TextSizeExtraLarge {
		width = 72
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		// Replies still render, as plain wrapped text.
		logger.Warn("markdown renderer unavailable", zap.String("style", style), zap.Error(err))
		md = nil
	}
	return &Renderer{palette: p, width: width, markdown: md}
}

// Render formats one bubble.
func (r *Renderer) Render(b Bubble) string {
	p := r.palette
	header := lipgloss.NewStyle().Bold(true)
	body := lipgloss.NewStyle().Foreground(p.Foreground).Width(r.width)
	if r.width < 96 {
		body = body.Bold(true)
	}

	var who string
	switch b.Role {
	case chat.RoleUser:
		who = header.Foreground(p.User).Render("You")
	default:
		who = header.Foreground(p.Assistant).Render("Vehicle Diagnosis Assistant")
	}
	stamp := lipgloss.NewStyle().Foreground(p.Muted).Render(b.Timestamp.Local().Format("15:04"))

	var sb strings.Builder
	sb.WriteString(who + " " + stamp + "\n")
	sb.WriteString(r.content(b, body))
	if b.CarImage != "" {
		sb.WriteString("\n" + lipgloss.NewStyle().Foreground(p.Muted).Italic(true).Render("Vehicle image: "+b.CarImage))
	}
	if b.ShowProducts {
		sb.WriteString("\n" + r.products(b.Products))
	}
	return sb.String()
}

func (r *Renderer) content(b Bubble, body lipgloss.Style) string {
	if b.Role == chat.RoleAssistant && r.markdown != nil {
		if out, err := r.markdown.Render(b.Content); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return body.Render(b.Content)
}

func (r *Renderer) products(products []recommend.Product) string {
	p := r.palette
	title := lipgloss.NewStyle().Bold(true).Foreground(p.Accent).Render("Recommended Products")
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Accent).
		Padding(0, 1).
		Width(r.width - 4)

	cards := []string{title}
	for _, prod := range products {
		cards = append(cards, card.Render(FormatProduct(prod)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// FormatProduct is the plain text of one product card.
func FormatProduct(p recommend.Product) string {
	return fmt.Sprintf("%s\nBrand: %s\nPrice: PKR %s\n%s", p.Title, p.Manufacturer, p.Price.StringFixed(2), p.URL)
}

// Typing is the indicator shown while a reply is pending.
func (r *Renderer) Typing() string {
	return lipgloss.NewStyle().Foreground(r.palette.Muted).Italic(true).Render("Assistant is typing...")
}

// Notice renders a notification line.
func (r *Renderer) Notice(level Level, msg string) string {
	color := r.palette.Muted
	switch level {
	case LevelError:
		color = r.palette.Error
	case LevelWarning:
		color = r.palette.Accent
	case LevelSuccess:
		color = r.palette.Assistant
	}
	return lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("[%s] %s", level, msg))
}
