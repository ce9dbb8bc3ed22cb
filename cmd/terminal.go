package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/client"
	"github.com/autogenius/autogenius/internal/config"
	"github.com/autogenius/autogenius/internal/progress"
)

// terminal bundles the client controller with its terminal collaborators.
type terminal struct {
	ctrl     *client.Controller
	api      *client.HTTPAPI
	state    *client.State
	logger   *zap.Logger
	out      io.Writer
	redirect *pendingRedirect
	notices  *noticePrinter
}

// noticePrinter writes notifications to stderr in the current theme.
type noticePrinter struct {
	out      io.Writer
	renderer *client.Renderer
}

func (n *noticePrinter) Notify(level client.Level, msg string) {
	fmt.Fprintln(n.out, n.renderer.Notice(level, msg))
}

// pendingRedirect remembers where the controller wants to go. The chat loop
// acts on it between commands.
type pendingRedirect struct {
	url string
}

func (p *pendingRedirect) Redirect(url string) { p.url = url }

func (p *pendingRedirect) take() string {
	u := p.url
	p.url = ""
	return u
}

func newTerminal(cfg *config.Config) (*terminal, error) {
	logger, err := newLogger(cfg.Log, true)
	if err != nil {
		return nil, err
	}
	state, err := openClientState(cfg)
	if err != nil {
		return nil, err
	}
	api := client.NewHTTPAPI(cfg.Client.ServerURL, state.AuthToken)
	t := &terminal{
		api:      api,
		state:    state,
		logger:   logger,
		out:      os.Stdout,
		redirect: &pendingRedirect{},
		notices:  &noticePrinter{out: os.Stderr, renderer: client.NewRenderer(state.DarkTheme, state.TextSize, logger)},
	}
	t.ctrl = client.NewController(api, state, client.Options{
		Notifier:   t.notices,
		Redirector: t.redirect,
		Typing:     progress.NewIndicator(os.Stderr),
		Logger:     logger,
	})
	return t, nil
}

// renderer reflects the current theme and text size.
func (t *terminal) renderer() *client.Renderer {
	r := client.NewRenderer(t.ctrl.DarkTheme(), t.ctrl.TextSize(), t.logger)
	t.notices.renderer = r
	return r
}

// login runs the browser sign-in and reloads the user.
func (t *terminal) login(ctx context.Context) error {
	token, err := client.LoopbackLogin(ctx, t.api, client.OpenBrowser, t.out)
	if err != nil {
		return err
	}
	t.ctrl.SetAuthToken(token)
	t.ctrl.Init(ctx)
	if u := t.ctrl.User(); u != nil {
		fmt.Fprintf(t.out, "Signed in as %s (%s)\n", u.Name, u.Email)
	}
	return nil
}

// followRedirect acts on a redirect requested by the controller. Only the
// sign-in page needs handling in the terminal.
func (t *terminal) followRedirect(ctx context.Context) {
	target := t.redirect.take()
	if target == "" || !strings.Contains(target, "/api/auth/login") {
		return
	}
	if err := t.login(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Sign-in failed: %v\n", err)
	}
}
