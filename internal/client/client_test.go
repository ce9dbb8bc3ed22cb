package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/autogenius/autogenius/internal/auth"
	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/chat"
	"github.com/autogenius/autogenius/internal/recommend"
)

type fakeAPI struct {
	calls    []string
	user     *auth.User
	sendErr  error
	getErr   error
	reply    *chat.Reply
	sessions map[string]*chat.SessionDetail
	onSend   func()
	uploaded string
	sizes    []string
}

func newFakeAPI(user *auth.User) *fakeAPI {
	return &fakeAPI{user: user, sessions: map[string]*chat.SessionDetail{}}
}

func (f *fakeAPI) record(name string) { f.calls = append(f.calls, name) }

func (f *fakeAPI) CurrentUser(ctx context.Context) (*auth.User, error) {
	f.record("CurrentUser")
	if f.user == nil {
		return nil, ErrAuthRequired
	}
	return f.user, nil
}

func (f *fakeAPI) CreateSession(ctx context.Context, v catalog.Vehicle) (*chat.Created, error) {
	f.record("CreateSession")
	id := "sess-1"
	f.sessions[id] = &chat.SessionDetail{
		Session:  chat.Session{ID: id, Vehicle: v, TextSize: chat.DefaultTextSize},
		Messages: []chat.Message{{Role: chat.RoleSystem, Content: "Vehicle: " + v.String()}},
	}
	return &chat.Created{SessionID: id, Vehicle: v, CarImage: "https://upload.wikimedia.org/car.jpg"}, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, sessionID, text string) (*chat.Reply, error) {
	f.record("SendMessage")
	if f.onSend != nil {
		f.onSend()
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.reply != nil {
		return f.reply, nil
	}
	return &chat.Reply{Message: "Check the battery terminals."}, nil
}

func (f *fakeAPI) ListHistory(ctx context.Context) ([]chat.HistoryItem, error) {
	f.record("ListHistory")
	var items []chat.HistoryItem
	for id, s := range f.sessions {
		items = append(items, chat.HistoryItem{ID: id, Vehicle: s.Vehicle})
	}
	return items, nil
}

func (f *fakeAPI) GetSession(ctx context.Context, id string) (*chat.SessionDetail, error) {
	f.record("GetSession")
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (f *fakeAPI) ClearHistory(ctx context.Context) error {
	f.record("ClearHistory")
	f.sessions = map[string]*chat.SessionDetail{}
	return nil
}

func (f *fakeAPI) UploadImage(ctx context.Context, sessionID, name string, r io.Reader) (string, error) {
	f.record("UploadImage")
	f.uploaded = name
	return "/static/uploads/" + sessionID + "_" + name, nil
}

func (f *fakeAPI) SetTextSize(ctx context.Context, sessionID, size string) error {
	f.record("SetTextSize")
	f.sizes = append(f.sizes, size)
	return nil
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.record("Logout")
	return nil
}

func (f *fakeAPI) LoginURL(cliRedirect string) string { return "http://server/api/auth/login" }
func (f *fakeAPI) LogoutURL() string                  { return "http://server/api/auth/logout" }

type notice struct {
	level Level
	msg   string
}

type recorder struct {
	notices   []notice
	redirects []string
}

func (r *recorder) Notify(level Level, msg string) { r.notices = append(r.notices, notice{level, msg}) }
func (r *recorder) Redirect(url string)            { r.redirects = append(r.redirects, url) }

func (r *recorder) has(msg string) bool {
	for _, n := range r.notices {
		if n.msg == msg {
			return true
		}
	}
	return false
}

var fixedNow = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func newController(t *testing.T, api API, statePath string) (*Controller, *recorder) {
	t.Helper()
	state, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	rec := &recorder{}
	c := NewController(api, state, Options{Notifier: rec, Redirector: rec, Now: fixedNow})
	return c, rec
}

var dana = &auth.User{ID: "u1", Name: "Dana", Email: "dana@example.com", IsAuthenticated: true}

var civic = catalog.Vehicle{Manufacturer: "Honda", Model: "Civic", Year: 2018}

func TestAnonymousActionsRedirectWithoutNetwork(t *testing.T) {
	api := newFakeAPI(nil)
	c, rec := newController(t, api, "")
	c.Init(context.Background())
	api.calls = nil

	c.state.SessionID = "sess-1"
	img := filepath.Join(t.TempDir(), "dash.png")
	os.WriteFile(img, []byte("png"), 0o644)

	actions := map[string]func() error{
		"send":   func() error { return c.SendMessage(context.Background(), "my brakes squeal") },
		"clear":  func() error { return c.ClearHistory(context.Background()) },
		"upload": func() error { return c.UploadImage(context.Background(), img) },
		"start":  func() error { return c.StartChat(context.Background(), civic) },
	}
	for name, act := range actions {
		t.Run(name, func(t *testing.T) {
			before := len(rec.redirects)
			if err := act(); !errors.Is(err, ErrAuthRequired) {
				t.Errorf("err = %v, want ErrAuthRequired", err)
			}
			if len(api.calls) != 0 {
				t.Errorf("network calls = %v, want none", api.calls)
			}
			if len(rec.redirects) != before+1 || rec.redirects[before] != "http://server/api/auth/login" {
				t.Errorf("redirects = %v", rec.redirects)
			}
		})
	}
	if len(c.Transcript()) != 0 {
		t.Errorf("anonymous send changed the transcript: %+v", c.Transcript())
	}
}

func TestStartChatPersistsSessionAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yml")
	api := newFakeAPI(dana)
	c, _ := newController(t, api, path)
	ctx := context.Background()

	c.Init(ctx)
	if err := c.StartChat(ctx, civic); err != nil {
		t.Fatalf("StartChat: %v", err)
	}
	if c.SessionID() != "sess-1" {
		t.Fatalf("session id = %q", c.SessionID())
	}
	tr := c.Transcript()
	if len(tr) != 1 || tr[0].Content != "Hello Dana! I'm ready to help with your 2018 Honda Civic. What issues are you experiencing?" {
		t.Fatalf("greeting = %+v", tr)
	}
	if tr[0].CarImage == "" {
		t.Error("greeting lost the car image")
	}
	if diff := cmp.Diff([]string{chat.DefaultTextSize}, api.sizes); diff != "" {
		t.Errorf("text size push (-want +got):\n%s", diff)
	}

	reloaded, _ := newController(t, api, path)
	if reloaded.SessionID() != "sess-1" {
		t.Fatalf("reloaded session id = %q", reloaded.SessionID())
	}
	reloaded.Init(ctx)
	if reloaded.Vehicle() != civic {
		t.Errorf("reloaded vehicle = %+v", reloaded.Vehicle())
	}
	if reloaded.Title() != "2018 Honda Civic" {
		t.Errorf("title = %q", reloaded.Title())
	}
}

func TestInitDropsStaleSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yml")
	os.WriteFile(path, []byte("session_id: gone\ntext_size: xlarge\n"), 0o600)

	c, _ := newController(t, newFakeAPI(dana), path)
	c.Init(context.Background())
	if c.SessionID() != "" {
		t.Errorf("stale session kept: %q", c.SessionID())
	}
	state, _ := LoadState(path)
	if state.SessionID != "" || state.TextSize != chat.TextSizeLarge {
		t.Errorf("persisted state = %+v", state)
	}
}

func TestInitKeepsSessionOnTransientError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yml")
	api := newFakeAPI(dana)
	c, _ := newController(t, api, path)
	ctx := context.Background()
	c.Init(ctx)
	if err := c.StartChat(ctx, civic); err != nil {
		t.Fatalf("StartChat: %v", err)
	}

	api.getErr = &APIError{Status: http.StatusBadGateway}
	reloaded, rec := newController(t, api, path)
	reloaded.Init(ctx)
	if reloaded.SessionID() != "sess-1" {
		t.Errorf("session id = %q, want sess-1", reloaded.SessionID())
	}
	if !rec.has("Failed to load conversation") {
		t.Errorf("notices = %+v", rec.notices)
	}
	if len(rec.redirects) != 0 {
		t.Errorf("unexpected redirects %v", rec.redirects)
	}

	state, _ := LoadState(path)
	if state.SessionID != "sess-1" {
		t.Errorf("persisted session id = %q", state.SessionID)
	}

	api.getErr = nil
	again, _ := newController(t, api, path)
	again.Init(ctx)
	if again.SessionID() != "sess-1" || again.Vehicle() != civic {
		t.Errorf("after recovery: session=%q vehicle=%v", again.SessionID(), again.Vehicle())
	}
}

func TestInitExpiredSignInRedirects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yml")
	os.WriteFile(path, []byte("session_id: sess-9\n"), 0o600)

	api := newFakeAPI(dana)
	api.getErr = ErrAuthRequired
	c, rec := newController(t, api, path)
	c.Init(context.Background())

	if c.User() != nil {
		t.Error("user should be cleared after a 401")
	}
	if len(rec.redirects) != 1 {
		t.Errorf("redirects = %v", rec.redirects)
	}
	state, _ := LoadState(path)
	if state.SessionID != "sess-9" {
		t.Errorf("persisted session id = %q, want sess-9", state.SessionID)
	}
}

func TestSendMessage(t *testing.T) {
	api := newFakeAPI(dana)
	c, rec := newController(t, api, "")
	ctx := context.Background()
	c.Init(ctx)
	c.StartChat(ctx, civic)

	products := []recommend.Product{{ID: "1", Title: "Brake Pads", Manufacturer: "Bosch", Price: decimal.RequireFromString("4500")}}
	api.reply = &chat.Reply{Message: "Replace the pads.", Products: products}

	if err := c.SendMessage(ctx, "   "); err != nil {
		t.Fatalf("blank send: %v", err)
	}
	if err := c.SendMessage(ctx, "Can you recommend brake parts?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	tr := c.Transcript()
	if len(tr) != 3 {
		t.Fatalf("transcript len = %d", len(tr))
	}
	if tr[1].Role != chat.RoleUser || tr[2].Content != "Replace the pads." || !tr[2].ShowProducts {
		t.Errorf("transcript = %+v", tr[1:])
	}

	c.SendMessage(ctx, "What does that noise mean?")
	if last := c.Transcript()[4]; last.ShowProducts {
		t.Error("products shown without a trigger word")
	}
	if c.Busy() {
		t.Error("busy not cleared")
	}
	if len(rec.redirects) != 0 {
		t.Errorf("unexpected redirects %v", rec.redirects)
	}
}

func TestSendMessageIgnoredWhileBusy(t *testing.T) {
	api := newFakeAPI(dana)
	c, _ := newController(t, api, "")
	ctx := context.Background()
	c.Init(ctx)
	c.StartChat(ctx, civic)

	var nested error
	api.onSend = func() {
		api.onSend = nil
		nested = c.SendMessage(ctx, "second message")
	}
	c.SendMessage(ctx, "first message")

	sends := 0
	for _, call := range api.calls {
		if call == "SendMessage" {
			sends++
		}
	}
	if sends != 1 || nested != nil {
		t.Errorf("sends = %d, nested err = %v", sends, nested)
	}
}

func TestSendMessageFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("server error", func(t *testing.T) {
		api := newFakeAPI(dana)
		c, rec := newController(t, api, "")
		c.Init(ctx)
		c.StartChat(ctx, civic)
		api.sendErr = &APIError{Status: 500, Detail: "boom"}

		c.SendMessage(ctx, "engine light")
		tr := c.Transcript()
		if tr[len(tr)-1].Content != apologyMessage {
			t.Errorf("last bubble = %q", tr[len(tr)-1].Content)
		}
		if len(rec.redirects) != 0 || c.Busy() {
			t.Errorf("redirects = %v busy = %v", rec.redirects, c.Busy())
		}
	})

	t.Run("expired sign-in", func(t *testing.T) {
		api := newFakeAPI(dana)
		c, rec := newController(t, api, "")
		c.Init(ctx)
		c.StartChat(ctx, civic)
		api.sendErr = ErrAuthRequired

		c.SendMessage(ctx, "engine light")
		if !rec.has("Your session has expired. Please sign in again.") {
			t.Errorf("notices = %+v", rec.notices)
		}
		if len(rec.redirects) != 1 || c.User() != nil || c.Busy() {
			t.Errorf("redirects = %v user = %v", rec.redirects, c.User())
		}
	})
}

func TestStartManualValidation(t *testing.T) {
	api := newFakeAPI(dana)
	c, rec := newController(t, api, "")
	c.Init(context.Background())
	api.calls = nil

	if err := c.StartManual(context.Background(), "Honda", "", "2018"); !errors.Is(err, catalog.ErrMissingField) {
		t.Errorf("err = %v", err)
	}
	if err := c.StartManual(context.Background(), "Honda", "Civic", "2031"); !errors.Is(err, catalog.ErrInvalidYear) {
		t.Errorf("err = %v", err)
	}
	if len(api.calls) != 0 {
		t.Errorf("calls = %v", api.calls)
	}
	if !rec.has("Please fill in all fields") {
		t.Errorf("notices = %+v", rec.notices)
	}

	if err := c.StartManual(context.Background(), " Honda ", "Civic", "2018"); err != nil {
		t.Fatalf("StartManual: %v", err)
	}
	if c.Vehicle() != civic {
		t.Errorf("vehicle = %+v", c.Vehicle())
	}
}

func TestGridSelectionStartsChat(t *testing.T) {
	api := newFakeAPI(dana)
	c, _ := newController(t, api, "")
	ctx := context.Background()
	c.Init(ctx)

	if _, err := c.SelectManufacturer("Honda"); err != nil {
		t.Fatal(err)
	}
	years, err := c.SelectModel("Civic")
	if err != nil {
		t.Fatal(err)
	}
	if years[0] != 2025 || years[len(years)-1] != 2000 {
		t.Errorf("years = %v", years)
	}
	if err := c.SelectYear(ctx, 2018); err != nil {
		t.Fatalf("SelectYear: %v", err)
	}
	if c.SessionID() == "" || c.Vehicle() != civic {
		t.Errorf("session = %q vehicle = %+v", c.SessionID(), c.Vehicle())
	}
}

func TestLoadSession(t *testing.T) {
	api := newFakeAPI(dana)
	c, rec := newController(t, api, "")
	ctx := context.Background()
	c.Init(ctx)

	ts := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	products := []recommend.Product{{ID: "7", Title: "Spark Plugs"}}
	api.sessions["old"] = &chat.SessionDetail{
		Session: chat.Session{ID: "old", Vehicle: civic, TextSize: chat.TextSizeLarge},
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: "Vehicle: 2018 Honda Civic", CreatedAt: ts},
			{Role: chat.RoleUser, Content: "suggest spark plugs", CreatedAt: ts},
			{Role: chat.RoleAssistant, Content: "Try these.", Products: products, CreatedAt: ts},
		},
	}

	if err := c.LoadSession(ctx, "old"); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	tr := c.Transcript()
	if len(tr) != 2 || !tr[1].ShowProducts {
		t.Errorf("transcript = %+v", tr)
	}
	if c.TextSize() != chat.TextSizeLarge || c.SessionID() != "old" {
		t.Errorf("text size = %q session = %q", c.TextSize(), c.SessionID())
	}

	api.getErr = ErrForbidden
	if err := c.LoadSession(ctx, "other"); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v", err)
	}
	if !rec.has("You don't have permission to access this conversation") {
		t.Errorf("notices = %+v", rec.notices)
	}
}

func TestUploadImage(t *testing.T) {
	api := newFakeAPI(dana)
	c, rec := newController(t, api, "")
	ctx := context.Background()
	c.Init(ctx)
	dir := t.TempDir()

	if err := c.UploadImage(ctx, filepath.Join(dir, "x.png")); err != nil {
		t.Errorf("upload without session should be ignored, got %v", err)
	}
	c.StartChat(ctx, civic)
	api.calls = nil

	notes := filepath.Join(dir, "notes.txt")
	os.WriteFile(notes, []byte("hi"), 0o644)
	if err := c.UploadImage(ctx, notes); !errors.Is(err, ErrNotImage) {
		t.Errorf("err = %v", err)
	}

	big := filepath.Join(dir, "big.jpg")
	os.WriteFile(big, make([]byte, MaxUploadBytes+1), 0o644)
	if err := c.UploadImage(ctx, big); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("err = %v", err)
	}
	if len(api.calls) != 0 {
		t.Errorf("rejected uploads reached the server: %v", api.calls)
	}

	img := filepath.Join(dir, "dash.png")
	os.WriteFile(img, []byte("png"), 0o644)
	c.SetDraft("my dashboard")
	if err := c.UploadImage(ctx, img); err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if c.Draft() != "my dashboard [Image uploaded: dash.png]" {
		t.Errorf("draft = %q", c.Draft())
	}
	if !rec.has("Image uploaded successfully") {
		t.Errorf("notices = %+v", rec.notices)
	}
}

func TestSendSuggestion(t *testing.T) {
	api := newFakeAPI(dana)
	c, _ := newController(t, api, "")
	ctx := context.Background()
	c.Init(ctx)
	c.StartChat(ctx, civic)

	if err := c.SendSuggestion(ctx, len(Suggestions)); err == nil {
		t.Error("out-of-range suggestion: expected error")
	}
	if err := c.SendSuggestion(ctx, 0); err != nil {
		t.Fatalf("SendSuggestion: %v", err)
	}
	tr := c.Transcript()
	if len(tr) != 3 || tr[1].Role != chat.RoleUser || tr[1].Content != Suggestions[0] {
		t.Errorf("transcript = %+v", tr)
	}
}

func TestComposePutsDraftFirst(t *testing.T) {
	c, _ := newController(t, newFakeAPI(dana), "")
	tests := []struct {
		draft, typed, want string
	}{
		{"", "brakes squeal", "brakes squeal"},
		{" [Image uploaded: dash.png]", "", "[Image uploaded: dash.png]"},
		{" [Image uploaded: dash.png]", "what is this light?", "[Image uploaded: dash.png] what is this light?"},
		{"my dashboard [Image uploaded: dash.png]", "  it blinks ", "my dashboard [Image uploaded: dash.png] it blinks"},
	}
	for _, tt := range tests {
		c.SetDraft(tt.draft)
		if got := c.Compose(tt.typed); got != tt.want {
			t.Errorf("Compose(%q) with draft %q = %q, want %q", tt.typed, tt.draft, got, tt.want)
		}
	}
}

func TestClearHistoryResetsChat(t *testing.T) {
	api := newFakeAPI(dana)
	c, _ := newController(t, api, "")
	ctx := context.Background()
	c.Init(ctx)
	c.StartChat(ctx, civic)

	if err := c.ClearHistory(ctx); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if c.SessionID() != "" || len(c.Transcript()) != 0 || len(c.History()) != 0 {
		t.Errorf("chat not reset: session=%q", c.SessionID())
	}
	if c.Flow().Selection() != (catalog.Vehicle{}) {
		t.Errorf("selection kept: %+v", c.Flow().Selection())
	}
}

func TestTextSizeAndTheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yml")
	api := newFakeAPI(dana)
	c, _ := newController(t, api, path)
	ctx := context.Background()
	c.Init(ctx)

	if err := c.SetTextSize(ctx, chat.TextSizeLarge); err != nil {
		t.Fatal(err)
	}
	if len(api.sizes) != 0 {
		t.Errorf("text size pushed without a session: %v", api.sizes)
	}
	if err := c.SetTextSize(ctx, "huge"); !errors.Is(err, chat.ErrInvalidTextSize) {
		t.Errorf("err = %v", err)
	}
	if !c.ToggleTheme() {
		t.Error("first toggle should enable the dark theme")
	}

	state, _ := LoadState(path)
	if state.TextSize != chat.TextSizeLarge || !state.DarkTheme {
		t.Errorf("persisted = %+v", state)
	}

	c.StartChat(ctx, civic)
	c.SetTextSize(ctx, chat.TextSizeExtraLarge)
	if diff := cmp.Diff([]string{chat.TextSizeLarge, chat.TextSizeExtraLarge}, api.sizes); diff != "" {
		t.Errorf("pushed sizes (-want +got):\n%s", diff)
	}
}

func TestLogoutForgetsToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yml")
	api := newFakeAPI(dana)
	c, _ := newController(t, api, path)
	ctx := context.Background()
	c.SetAuthToken("tok")
	c.Init(ctx)
	c.StartChat(ctx, civic)

	c.Logout(ctx)
	state, _ := LoadState(path)
	if state.AuthToken != "" || state.SessionID != "" || c.User() != nil {
		t.Errorf("state after logout = %+v", state)
	}
}

func TestExportChat(t *testing.T) {
	api := newFakeAPI(dana)
	c, _ := newController(t, api, "")
	ctx := context.Background()
	c.Init(ctx)
	c.StartChat(ctx, civic)

	ts := time.Date(2025, 6, 1, 8, 5, 0, 0, time.Local)
	d := api.sessions["sess-1"]
	d.CreatedAt = ts
	d.Messages = append(d.Messages,
		chat.Message{Role: chat.RoleUser, Content: "Squeaky brakes", CreatedAt: ts},
		chat.Message{Role: chat.RoleAssistant, Content: "Check the **pads**.", CreatedAt: ts},
	)

	exp, err := c.ExportChat(ctx)
	if err != nil {
		t.Fatalf("ExportChat: %v", err)
	}
	want := "Chat History - 2018 Honda Civic\n" +
		"User: Dana\n" +
		"Email: dana@example.com\n" +
		"Date: 2025-06-01 08:05:00\n\n" +
		"[08:05] You: Squeaky brakes\n\n" +
		"[08:05] Vehicle Diagnosis Assistant: Check the **pads**.\n\n"
	if diff := cmp.Diff(want, exp.Text); diff != "" {
		t.Errorf("export text (-want +got):\n%s", diff)
	}
	if exp.Filename != "chat_Honda_Civic_2025-06-01.txt" {
		t.Errorf("filename = %q", exp.Filename)
	}
	if !strings.Contains(string(exp.HTML), "<strong>pads</strong>") {
		t.Errorf("html export did not render markdown:\n%s", exp.HTML)
	}
}

func TestExportFilenameStaysInDirectory(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		make, model string
		want        string
	}{
		{"Tesla", "Model S/X", "chat_Tesla_Model_S_X_2025-06-01.txt"},
		{"..", "../../etc/passwd", "chat__________etc_passwd_2025-06-01.txt"},
		{"Škoda", "Octavia", "chat_Škoda_Octavia_2025-06-01.txt"},
		{"Mercedes-Benz", `C\200`, "chat_Mercedes-Benz_C_200_2025-06-01.txt"},
	}
	for _, tt := range tests {
		d := &chat.SessionDetail{Session: chat.Session{Vehicle: catalog.Vehicle{Manufacturer: tt.make, Model: tt.model, Year: 2020}}}
		got := ExportFilename(d, now)
		if got != tt.want {
			t.Errorf("ExportFilename(%q, %q) = %q, want %q", tt.make, tt.model, got, tt.want)
		}
		if filepath.Base(got) != got {
			t.Errorf("ExportFilename(%q, %q) = %q contains a path separator", tt.make, tt.model, got)
		}
	}
}

func TestShouldShowProducts(t *testing.T) {
	some := []recommend.Product{{ID: "1"}}
	tests := []struct {
		msg      string
		products []recommend.Product
		want     bool
	}{
		{"Can you RECOMMEND something?", some, true},
		{"which tools do I need", some, true},
		{"any suggestions", some, true},
		{"my car makes a noise", some, false},
		{"recommend a product", nil, false},
	}
	for _, tt := range tests {
		if got := ShouldShowProducts(tt.msg, tt.products); got != tt.want {
			t.Errorf("ShouldShowProducts(%q, %d) = %v, want %v", tt.msg, len(tt.products), got, tt.want)
		}
	}
}

func TestHTTPAPIStatusMapping(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/api/auth/user":
			w.Write([]byte(`{"id":"u1","name":"Dana","email":"dana@example.com","is_authenticated":true}`))
		case "/api/history/forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "/api/history/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/api/clear-history":
			w.WriteHeader(http.StatusUnauthorized)
		case "/api/chat":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"message must not be empty"}`))
		case "/api/history":
			w.Write([]byte(`{"sessions":[{"id":"s1","car_details":{"manufacturer":"Honda","model":"Civic","year":2018}}]}`))
		}
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL+"/", "tok")
	ctx := context.Background()

	u, err := api.CurrentUser(ctx)
	if err != nil || u.Name != "Dana" || gotAuth != "Bearer tok" {
		t.Fatalf("CurrentUser = %+v, %v (auth %q)", u, err, gotAuth)
	}
	if _, err := api.GetSession(ctx, "forbidden"); !errors.Is(err, ErrForbidden) {
		t.Errorf("403 err = %v", err)
	}
	if _, err := api.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("404 err = %v", err)
	}
	if err := api.ClearHistory(ctx); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("401 err = %v", err)
	}
	_, err = api.SendMessage(ctx, "s1", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 400 || apiErr.Detail != "message must not be empty" {
		t.Errorf("400 err = %v", err)
	}
	items, err := api.ListHistory(ctx)
	if err != nil || len(items) != 1 || items[0].Vehicle != civic {
		t.Errorf("ListHistory = %+v, %v", items, err)
	}

	login := api.LoginURL("http://127.0.0.1:9999/callback")
	if login != srv.URL+"/api/auth/login?cli_redirect=http%3A%2F%2F127.0.0.1%3A9999%2Fcallback" {
		t.Errorf("LoginURL = %q", login)
	}
}

func TestHTTPAPIUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		_, header, err := r.FormFile("file")
		if err != nil || header.Filename != "dash.png" || r.FormValue("session_id") != "s1" {
			t.Errorf("form = %v %v", header, err)
		}
		w.Write([]byte(`{"success":true,"file_url":"/static/uploads/s1_dash.png"}`))
	}))
	defer srv.Close()

	got, err := NewHTTPAPI(srv.URL, "").UploadImage(context.Background(), "s1", "dash.png", strings.NewReader("png"))
	if err != nil || got != "/static/uploads/s1_dash.png" {
		t.Errorf("UploadImage = %q, %v", got, err)
	}
}

func TestLoopbackLogin(t *testing.T) {
	api := NewHTTPAPI("http://server.invalid", "")
	open := func(loginURL string) error {
		u, err := url.Parse(loginURL)
		if err != nil {
			return err
		}
		redirect := u.Query().Get("cli_redirect")
		go func() {
			resp, err := http.Get(redirect + "?token=secret")
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	token, err := LoopbackLogin(ctx, api, open, io.Discard)
	if err != nil || token != "secret" {
		t.Errorf("LoopbackLogin = %q, %v", token, err)
	}
}

func TestRendererProducts(t *testing.T) {
	r := NewRenderer(true, chat.TextSizeExtraLarge, nil)
	b := Bubble{
		Role:      chat.RoleAssistant,
		Content:   "Replace the pads.",
		Timestamp: fixedNow(),
		Products:  []recommend.Product{{Title: "Brake Pads", Manufacturer: "Bosch", Price: decimal.RequireFromString("4500")}},
	}
	if out := r.Render(b); strings.Contains(out, "PKR 4500.00") {
		t.Errorf("hidden products rendered:\n%s", out)
	}
	b.ShowProducts = true
	if out := r.Render(b); !strings.Contains(out, "PKR 4500.00") || !strings.Contains(out, "Recommended Products") {
		t.Errorf("products missing:\n%s", out)
	}
}

func TestRendererLogsMarkdownFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := newRenderer(filepath.Join(t.TempDir(), "missing-style.json"), false, chat.TextSizeLarge, zap.New(core))

	if logs.FilterMessage("markdown renderer unavailable").Len() != 1 {
		t.Errorf("logged = %+v", logs.All())
	}
	out := r.Render(Bubble{Role: chat.RoleAssistant, Content: "Check the **pads**.", Timestamp: fixedNow()})
	if !strings.Contains(out, "Check the **pads**.") {
		t.Errorf("plain fallback missing reply text:\n%s", out)
	}
}
