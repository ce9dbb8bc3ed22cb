package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

// LoginTimeout bounds how long LoopbackLogin waits for the browser.
const LoginTimeout = 5 * time.Minute

// LoopbackLogin signs in through the browser. It starts a local HTTP
// server, opens the server's login page with that server as the redirect
// target, and returns the session token handed back after sign-in.
func LoopbackLogin(ctx context.Context, api API, open func(url string) error, out io.Writer) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("starting local server: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	tokenCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			errMsg := r.URL.Query().Get("error")
			if errMsg == "" {
				errMsg = "no session token received"
			}
			fmt.Fprintf(w, "<html><body><h2>Sign-in failed</h2><p>%s</p><p>You can close this tab.</p></body></html>", errMsg)
			select {
			case errCh <- fmt.Errorf("sign-in failed: %s", errMsg):
			default:
			}
			return
		}
		fmt.Fprint(w, "<html><body><h2>Signed in to AutoGenius</h2><p>You can close this tab and return to the terminal.</p></body></html>")
		select {
		case tokenCh <- token:
		default:
		}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("local server error: %w", err)
		}
	}()
	defer server.Close()

	loginURL := api.LoginURL(redirectURL)
	fmt.Fprintf(out, "\nOpening browser for Google sign-in...\n")
	fmt.Fprintf(out, "If the browser doesn't open, visit this URL:\n%s\n\n", loginURL)
	if open != nil {
		_ = open(loginURL)
	}

	select {
	case token := <-tokenCh:
		return token, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(LoginTimeout):
		return "", fmt.Errorf("sign-in timed out after %s", LoginTimeout)
	}
}

// OpenBrowser opens url in the system browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
