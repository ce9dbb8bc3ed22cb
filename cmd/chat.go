package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/chat"
	"github.com/autogenius/autogenius/internal/client"
	"github.com/autogenius/autogenius/internal/selection"
)

const backItem = "← Back"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the diagnosis assistant",
	Long: `Starts an interactive diagnosis conversation. Pick your vehicle from
the catalog or type its details, then describe the problem. Type /help for
the available commands.`,
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
		return t.runChat(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func (t *terminal) runChat(ctx context.Context) error {
	t.ctrl.Init(ctx)
	if t.ctrl.User() == nil {
		confirm := promptui.Prompt{Label: "Sign in with Google now", IsConfirm: true}
		if _, err := confirm.Run(); err != nil {
			return errors.New("sign-in is required to chat")
		}
		if err := t.login(ctx); err != nil {
			return err
		}
		if t.ctrl.User() == nil {
			return errors.New("sign-in did not complete")
		}
	}

	if t.ctrl.SessionID() == "" {
		if err := t.chooseVehicle(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(t.out, "\n== %s ==  (type /help for commands)\n\n", t.ctrl.Title())
	printed := t.printTranscript(0)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(t.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		before := t.ctrl.SessionID()

		quit, err := t.handleLine(ctx, line)
		t.followRedirect(ctx)
		if err != nil {
			t.logger.Debug("chat command failed", zap.Error(err))
		}
		if quit {
			return nil
		}

		if t.ctrl.SessionID() == "" {
			if err := t.chooseVehicle(ctx); err != nil {
				return err
			}
			printed = 0
		}
		if t.ctrl.SessionID() != before || len(t.ctrl.Transcript()) < printed {
			fmt.Fprintf(t.out, "\n== %s ==\n\n", t.ctrl.Title())
			printed = 0
		}
		printed = t.printTranscript(printed)
	}
}

// printTranscript prints the bubbles after the first n and returns the new
// count.
func (t *terminal) printTranscript(n int) int {
	r := t.renderer()
	bubbles := t.ctrl.Transcript()
	for _, b := range bubbles[n:] {
		fmt.Fprintln(t.out, r.Render(b))
		fmt.Fprintln(t.out)
	}
	return len(bubbles)
}

func (t *terminal) handleLine(ctx context.Context, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		return false, t.ctrl.SendMessage(ctx, t.ctrl.Compose(line))
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprint(t.out, chatHelp)
	case "/new":
		t.ctrl.ResetChat()
	case "/suggest":
		sel := promptui.Select{Label: "Ask about", Items: client.Suggestions}
		i, _, err := sel.Run()
		if err != nil {
			return false, nil
		}
		return false, t.ctrl.SendSuggestion(ctx, i)
	case "/history":
		t.ctrl.LoadHistory(ctx)
		t.printHistory()
	case "/load":
		return false, t.loadFromHistory(ctx, arg)
	case "/clear":
		confirm := promptui.Prompt{Label: "Delete all conversations", IsConfirm: true}
		if _, err := confirm.Run(); err != nil {
			return false, nil
		}
		return false, t.ctrl.ClearHistory(ctx)
	case "/upload":
		if arg == "" {
			fmt.Fprintln(t.out, "usage: /upload PATH")
			return false, nil
		}
		if err := t.ctrl.UploadImage(ctx, arg); err != nil {
			return false, err
		}
		fmt.Fprintf(t.out, "Draft: %s\n", strings.TrimSpace(t.ctrl.Draft()))
	case "/size":
		if err := t.ctrl.SetTextSize(ctx, arg); err != nil {
			fmt.Fprintf(t.out, "text size must be %s or %s\n", chat.TextSizeLarge, chat.TextSizeExtraLarge)
			return false, err
		}
	case "/theme":
		if t.ctrl.ToggleTheme() {
			fmt.Fprintln(t.out, "Dark theme on")
		} else {
			fmt.Fprintln(t.out, "Dark theme off")
		}
	case "/export":
		return false, t.exportActive(ctx, arg)
	case "/login":
		return false, t.login(ctx)
	case "/logout":
		t.ctrl.Logout(ctx)
		return true, nil
	default:
		fmt.Fprintf(t.out, "unknown command %s, type /help\n", cmd)
	}
	return false, nil
}

const chatHelp = `Commands:
  /new            start a conversation about another vehicle
  /suggest        pick a common question to ask
  /history        list past conversations
  /load N         reopen conversation N from /history
  /clear          delete all conversations
  /upload PATH    attach an image (jpg, png, gif, webp; under 5MB)
  /size SIZE      text size: xlarge or xxlarge
  /theme          toggle the dark theme
  /export [DIR]   save the conversation as text and HTML
  /login          sign in again
  /logout         sign out and quit
  /quit           leave the chat
`

func (t *terminal) printHistory() {
	items := t.ctrl.History()
	if len(items) == 0 {
		fmt.Fprintln(t.out, "No previous conversations")
		return
	}
	for i, it := range items {
		last := it.LastMessage
		if len(last) > 60 {
			last = last[:57] + "..."
		}
		fmt.Fprintf(t.out, "%2d. %s  %s  (%d messages)\n    %s\n",
			i+1, it.Vehicle, it.CreatedAt.Local().Format("2006-01-02 15:04"), it.MessageCount, last)
	}
}

func (t *terminal) loadFromHistory(ctx context.Context, arg string) error {
	items := t.ctrl.History()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(items) {
		fmt.Fprintln(t.out, "usage: /load N, where N is a number from /history")
		return nil
	}
	return t.ctrl.LoadSession(ctx, items[n-1].ID)
}

func (t *terminal) exportActive(ctx context.Context, dir string) error {
	exp, err := t.ctrl.ExportChat(ctx)
	if err != nil {
		return err
	}
	return writeExport(t.out, exp, dir)
}

// chooseVehicle runs the grid or manual selection until a chat starts.
func (t *terminal) chooseVehicle(ctx context.Context) error {
	for t.ctrl.SessionID() == "" {
		mode := promptui.Select{
			Label: "How would you like to choose your vehicle",
			Items: []string{"Pick from the catalog", "Enter details manually"},
		}
		i, _, err := mode.Run()
		if err != nil {
			return err
		}
		if i == 0 {
			t.ctrl.Flow().SetMode(selection.ModeGrid)
			err = t.runGrid(ctx)
		} else {
			t.ctrl.Flow().SetMode(selection.ModeManual)
			err = t.runManual(ctx)
		}
		if err != nil {
			return err
		}
		t.followRedirect(ctx)
	}
	return nil
}

func (t *terminal) runGrid(ctx context.Context) error {
	flow := t.ctrl.Flow()
	flow.Reset()
	for {
		switch flow.Step() {
		case selection.StepManufacturer:
			choice, err := selectItem("Manufacturer", flow.Manufacturers(), false)
			if err != nil {
				return err
			}
			if _, err := t.ctrl.SelectManufacturer(choice); err != nil {
				return err
			}
		case selection.StepModel:
			models, _ := catalog.Models(flow.Selection().Manufacturer)
			choice, err := selectItem("Model", models, true)
			if err != nil {
				return err
			}
			if choice == backItem {
				flow.Back()
				continue
			}
			if _, err := t.ctrl.SelectModel(choice); err != nil {
				return err
			}
		case selection.StepYear:
			years := catalog.Years(time.Now())
			labels := make([]string, len(years))
			for i, y := range years {
				labels[i] = strconv.Itoa(y)
			}
			choice, err := selectItem("Year", labels, true)
			if err != nil {
				return err
			}
			if choice == backItem {
				flow.Back()
				continue
			}
			year, _ := strconv.Atoi(choice)
			// Failures have been reported; the selection starts over.
			if err := t.ctrl.SelectYear(ctx, year); err != nil {
				flow.Reset()
			}
			return nil
		default:
			return nil
		}
	}
}

func selectItem(label string, items []string, back bool) (string, error) {
	if back {
		items = append([]string{backItem}, items...)
	}
	sel := promptui.Select{
		Label:             label,
		Items:             items,
		Size:              12,
		StartInSearchMode: len(items) > 12,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(items[index]), strings.ToLower(input))
		},
	}
	_, choice, err := sel.Run()
	return choice, err
}

func (t *terminal) runManual(ctx context.Context) error {
	fields := []string{"Manufacturer", "Model", "Year"}
	values := make([]string, len(fields))
	for i, label := range fields {
		p := promptui.Prompt{Label: label}
		if label == "Year" {
			p.Validate = func(s string) error {
				_, err := catalog.ValidateManual("x", "x", s, time.Now())
				return err
			}
		}
		v, err := p.Run()
		if err != nil {
			return err
		}
		values[i] = v
	}
	// Failures have been reported by the controller.
	_ = t.ctrl.StartManual(ctx, values[0], values[1], values[2])
	return nil
}
