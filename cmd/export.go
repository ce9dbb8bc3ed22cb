package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/autogenius/autogenius/internal/client"
)

var (
	exportSession string
	exportDir     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save a conversation as text and HTML",
	Long: `Writes the active conversation, or the one named by --session, to
chat_MAKE_MODEL_DATE.txt and a matching .html file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		t, err := newTerminal(cfg)
		if err != nil {
			return err
		}
		defer t.logger.Sync()

		ctx := cmd.Context()
		if exportSession == "" {
			t.ctrl.Init(ctx)
			if t.ctrl.User() == nil {
				return fmt.Errorf("not signed in, run `autogenius login` first")
			}
			exp, err := t.ctrl.ExportChat(ctx)
			if err != nil {
				return err
			}
			return writeExport(t.out, exp, exportDir)
		}
		exp, err := exportByID(ctx, t.api, exportSession)
		if err != nil {
			return err
		}
		return writeExport(t.out, exp, exportDir)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSession, "session", "", "session id to export (default: the active conversation)")
	exportCmd.Flags().StringVarP(&exportDir, "output", "o", ".", "directory to write the export to")
	rootCmd.AddCommand(exportCmd)
}

func exportByID(ctx context.Context, api client.API, id string) (*client.Export, error) {
	user, err := api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking sign-in: %w", err)
	}
	detail, err := api.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	html, err := client.TranscriptHTML(detail, user)
	if err != nil {
		return nil, err
	}
	return &client.Export{
		Filename: client.ExportFilename(detail, time.Now()),
		Text:     client.FormatTranscript(detail, user),
		HTML:     html,
	}, nil
}

// writeExport writes the text transcript and, when present, the HTML page
// next to it.
func writeExport(out io.Writer, exp *client.Export, dir string) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	txt := filepath.Join(dir, exp.Filename)
	if err := os.WriteFile(txt, []byte(exp.Text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", txt, err)
	}
	fmt.Fprintf(out, "Wrote %s\n", txt)
	if len(exp.HTML) > 0 {
		page := strings.TrimSuffix(txt, ".txt") + ".html"
		if err := os.WriteFile(page, exp.HTML, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", page, err)
		}
		fmt.Fprintf(out, "Wrote %s\n", page)
	}
	return nil
}
