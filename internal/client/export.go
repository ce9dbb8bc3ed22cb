package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/auth"
	"github.com/autogenius/autogenius/internal/chat"
)

// Export is a downloadable transcript of one session.
type Export struct {
	Filename string
	Text     string
	HTML     []byte
}

// ExportChat builds a transcript of the active session.
func (c *Controller) ExportChat(ctx context.Context) (*Export, error) {
	if c.state.SessionID == "" {
		return nil, errors.New("no active conversation")
	}
	if !c.requireUser("export chat") {
		return nil, ErrAuthRequired
	}

	detail, err := c.api.GetSession(ctx, c.state.SessionID)
	if err != nil {
		if errors.Is(err, ErrAuthRequired) {
			c.user = nil
			c.notify.Notify(LevelError, "Please sign in to export chat")
			c.redirectToLogin()
			return nil, err
		}
		c.logger.Error("exporting chat", zap.Error(err))
		c.notify.Notify(LevelError, "Failed to export chat")
		return nil, err
	}

	exp := &Export{
		Filename: ExportFilename(detail, c.now()),
		Text:     FormatTranscript(detail, c.user),
	}
	exp.HTML, err = TranscriptHTML(detail, c.user)
	if err != nil {
		c.logger.Warn("rendering html transcript", zap.Error(err))
	}
	c.notify.Notify(LevelSuccess, "Chat exported successfully")
	return exp, nil
}

// ExportFilename is chat_MAKE_MODEL_YYYY-MM-DD.txt. Anything but letters,
// digits and '-' in the vehicle names becomes '_', so the name never
// leaves the export directory.
func ExportFilename(d *chat.SessionDetail, now time.Time) string {
	return fmt.Sprintf("chat_%s_%s_%s.txt",
		filenamePart(d.Vehicle.Manufacturer), filenamePart(d.Vehicle.Model), now.UTC().Format("2006-01-02"))
}

func filenamePart(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return '_'
	}, s)
}

func speaker(r chat.Role) string {
	if r == chat.RoleUser {
		return "You"
	}
	return "Vehicle Diagnosis Assistant"
}

// FormatTranscript renders the plain-text export. System messages are
// left out.
func FormatTranscript(d *chat.SessionDetail, u *auth.User) string {
	var b strings.Builder
	name, email := "Unknown", "Not specified"
	if u != nil {
		if u.Name != "" {
			name = u.Name
		}
		if u.Email != "" {
			email = u.Email
		}
	}
	fmt.Fprintf(&b, "Chat History - %s\n", d.Vehicle)
	fmt.Fprintf(&b, "User: %s\n", name)
	fmt.Fprintf(&b, "Email: %s\n", email)
	fmt.Fprintf(&b, "Date: %s\n\n", d.CreatedAt.Local().Format("2006-01-02 15:04:05"))

	for _, m := range d.Messages {
		if m.Role == chat.RoleSystem {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n\n", m.CreatedAt.Local().Format("15:04"), speaker(m.Role), m.Content)
	}
	return b.String()
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
)

var exportTmpl = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
{{.Body}}
</body></html>
`))

// TranscriptHTML renders the export as a standalone HTML page. Message
// text is treated as Markdown.
func TranscriptHTML(d *chat.SessionDetail, u *auth.User) ([]byte, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# Chat History - %s\n\n", d.Vehicle)
	if u != nil {
		fmt.Fprintf(&md, "User: %s  \nEmail: %s  \n", u.Name, u.Email)
	}
	fmt.Fprintf(&md, "Date: %s\n\n", d.CreatedAt.Local().Format("2006-01-02 15:04:05"))

	for _, m := range d.Messages {
		if m.Role == chat.RoleSystem {
			continue
		}
		fmt.Fprintf(&md, "---\n\n**[%s] %s:**\n\n%s\n\n", m.CreatedAt.Local().Format("15:04"), speaker(m.Role), m.Content)
	}

	var body bytes.Buffer
	if err := markdown.Convert([]byte(md.String()), &body); err != nil {
		return nil, fmt.Errorf("converting transcript: %w", err)
	}
	var page bytes.Buffer
	err := exportTmpl.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{
		Title: "Chat History - " + d.Vehicle.String(),
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering transcript page: %w", err)
	}
	return page.Bytes(), nil
}
