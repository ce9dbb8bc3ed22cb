package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/auth"
	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/chat"
	"github.com/autogenius/autogenius/internal/selection"
)

// MaxUploadBytes is the largest image the client will send.
const MaxUploadBytes = 5 << 20

const apologyMessage = "Sorry, I encountered an error processing your request. Please try again."

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Notify(level Level, msg string)
}

// Redirector navigates to another location, such as the sign-in page.
type Redirector interface {
	Redirect(url string)
}

// TypingIndicator is shown while a reply is pending.
type TypingIndicator interface {
	Start(message string)
	Stop()
}

// Options configure a Controller. Notifier and Redirector are required.
type Options struct {
	Notifier   Notifier
	Redirector Redirector
	Typing     TypingIndicator
	Logger     *zap.Logger
	Now        func() time.Time
}

// Controller owns the client-side chat state. It is driven by one goroutine;
// the busy flag rejects overlapping sends.
type Controller struct {
	api      API
	state    *State
	notify   Notifier
	redirect Redirector
	typing   TypingIndicator
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	busy bool

	user       *auth.User
	flow       *selection.Flow
	vehicle    catalog.Vehicle
	transcript []Bubble
	history    []chat.HistoryItem
	draft      string
}

// NewController creates a controller over api with persisted state.
func NewController(api API, state *State, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if state == nil {
		state, _ = LoadState("")
	}
	return &Controller{
		api:      api,
		state:    state,
		notify:   opts.Notifier,
		redirect: opts.Redirector,
		typing:   opts.Typing,
		logger:   opts.Logger,
		now:      opts.Now,
		flow:     selection.New(opts.Now),
	}
}

// Init is the auth bootstrap. It asks the server for the current user once;
// a signed-in user gets the history list and the last active session back.
func (c *Controller) Init(ctx context.Context) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		c.user = nil
		if !errors.Is(err, ErrAuthRequired) {
			c.logger.Warn("checking auth status", zap.Error(err))
		}
		c.notify.Notify(LevelInfo, "Please sign in to start a conversation")
		return
	}
	c.user = user
	c.LoadHistory(ctx)

	id := c.state.SessionID
	if id == "" {
		return
	}
	err = c.loadSession(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		c.logger.Info("dropping stale session", zap.String("session_id", id), zap.Error(err))
		c.state.SessionID = ""
		c.saveState()
	case c.handleAuthError(err):
	default:
		// The session may still exist; keep the id for the next start.
		c.logger.Error("reloading session", zap.String("session_id", id), zap.Error(err))
		c.notify.Notify(LevelError, "Failed to load conversation")
	}
}

// requireUser notifies and starts sign-in when nobody is signed in.
func (c *Controller) requireUser(action string) bool {
	if c.user != nil {
		return true
	}
	c.notify.Notify(LevelError, "Please sign in to "+action)
	c.redirectToLogin()
	return false
}

func (c *Controller) redirectToLogin() {
	c.redirect.Redirect(c.api.LoginURL(""))
}

// handleAuthError reports whether err was an expired sign-in, in which case
// the user has been told and sent to sign in again.
func (c *Controller) handleAuthError(err error) bool {
	if !errors.Is(err, ErrAuthRequired) {
		return false
	}
	c.user = nil
	c.notify.Notify(LevelError, "Your session has expired. Please sign in again.")
	c.redirectToLogin()
	return true
}

// StartChat opens a new server session about v.
func (c *Controller) StartChat(ctx context.Context, v catalog.Vehicle) error {
	if !c.requireUser("start a conversation") {
		return ErrAuthRequired
	}
	if !v.Complete() {
		c.notify.Notify(LevelError, "Please select all vehicle details")
		return catalog.ErrMissingField
	}

	created, err := c.api.CreateSession(ctx, v)
	if err != nil {
		if !c.handleAuthError(err) {
			c.logger.Error("creating session", zap.Error(err))
			c.notify.Notify(LevelError, "Failed to start chat session")
		}
		return err
	}

	c.state.SessionID = created.SessionID
	c.saveState()
	c.vehicle = created.Vehicle
	c.flow.Load(created.Vehicle)
	c.draft = ""
	c.transcript = []Bubble{{
		Role:      chat.RoleAssistant,
		Content:   Greeting(c.user, created.Vehicle),
		Timestamp: c.now(),
		CarImage:  created.CarImage,
	}}

	c.LoadHistory(ctx)
	c.pushTextSize(ctx)
	return nil
}

// Greeting is the first message shown in a new conversation.
func Greeting(u *auth.User, v catalog.Vehicle) string {
	name := "there"
	if u != nil && u.Name != "" {
		name = u.Name
	}
	return fmt.Sprintf("Hello %s! I'm ready to help with your %s. What issues are you experiencing?", name, v)
}

// StartManual validates free-text vehicle details and starts a chat.
func (c *Controller) StartManual(ctx context.Context, manufacturer, model, year string) error {
	v, err := catalog.ValidateManual(manufacturer, model, year, c.now())
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrMissingField):
			c.notify.Notify(LevelError, "Please fill in all fields")
		default:
			c.notify.Notify(LevelError, fmt.Sprintf("Please enter a valid year between %d and %d", catalog.FirstManualYear, c.now().Year()))
		}
		return err
	}
	return c.StartChat(ctx, v)
}

// Flow exposes the grid selection state.
func (c *Controller) Flow() *selection.Flow { return c.flow }

func (c *Controller) SelectManufacturer(name string) ([]string, error) {
	return c.flow.SelectManufacturer(name)
}

func (c *Controller) SelectModel(name string) ([]int, error) {
	return c.flow.SelectModel(name)
}

// SelectYear completes the grid selection and starts a chat.
func (c *Controller) SelectYear(ctx context.Context, year int) error {
	v, err := c.flow.SelectYear(year)
	if err != nil {
		return err
	}
	return c.StartChat(ctx, v)
}

func (c *Controller) Back() (selection.Step, error) { return c.flow.Back() }

// tryBusy sets busy and reports whether it was previously clear.
func (c *Controller) tryBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Controller) clearBusy() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Busy reports whether a message is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// SendMessage posts text to the active session. It does nothing while
// another message is in flight, without a session, or for blank text.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	if c.Busy() || c.state.SessionID == "" {
		return nil
	}
	if !c.requireUser("send messages") {
		return ErrAuthRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !c.tryBusy() {
		return nil
	}
	defer c.clearBusy()

	c.transcript = append(c.transcript, Bubble{Role: chat.RoleUser, Content: text, Timestamp: c.now()})
	c.draft = ""
	if c.typing != nil {
		c.typing.Start("Assistant is typing...")
	}
	reply, err := c.api.SendMessage(ctx, c.state.SessionID, text)
	if c.typing != nil {
		c.typing.Stop()
	}
	if err != nil {
		if c.handleAuthError(err) {
			return err
		}
		c.logger.Error("sending message", zap.String("session_id", c.state.SessionID), zap.Error(err))
		c.transcript = append(c.transcript, Bubble{Role: chat.RoleAssistant, Content: apologyMessage, Timestamp: c.now()})
		c.notify.Notify(LevelError, "Failed to send message. Please try again.")
		return err
	}

	c.appendAssistant(Bubble{
		Role:      chat.RoleAssistant,
		Content:   reply.Message,
		Timestamp: c.now(),
		Products:  reply.Products,
	})
	return nil
}

// appendAssistant adds a reply, deciding product visibility from the last
// user message.
func (c *Controller) appendAssistant(b Bubble) {
	b.ShowProducts = ShouldShowProducts(c.lastUserMessage(), b.Products)
	c.transcript = append(c.transcript, b)
}

func (c *Controller) lastUserMessage() string {
	for i := len(c.transcript) - 1; i >= 0; i-- {
		if c.transcript[i].Role == chat.RoleUser {
			return c.transcript[i].Content
		}
	}
	return ""
}

// LoadHistory refreshes the sidebar list of past sessions.
func (c *Controller) LoadHistory(ctx context.Context) {
	if c.user == nil {
		return
	}
	items, err := c.api.ListHistory(ctx)
	if err != nil {
		if !c.handleAuthError(err) {
			c.logger.Warn("loading history", zap.Error(err))
			c.notify.Notify(LevelError, "Failed to load chat history")
		}
		return
	}
	c.history = items
}

// ClearHistory deletes every past session of the user.
func (c *Controller) ClearHistory(ctx context.Context) error {
	if !c.requireUser("clear history") {
		return ErrAuthRequired
	}
	if err := c.api.ClearHistory(ctx); err != nil {
		if !c.handleAuthError(err) {
			c.logger.Error("clearing history", zap.Error(err))
			c.notify.Notify(LevelError, "Failed to clear history")
		}
		return err
	}
	c.history = nil
	if c.state.SessionID != "" {
		c.ResetChat()
	}
	c.notify.Notify(LevelSuccess, "Chat history cleared")
	return nil
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

// UploadImage sends the image at path to the active session and notes it in
// the draft.
func (c *Controller) UploadImage(ctx context.Context, path string) error {
	if c.state.SessionID == "" {
		return nil
	}
	if !c.requireUser("upload images") {
		return ErrAuthRequired
	}

	name := filepath.Base(path)
	if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
		c.notify.Notify(LevelError, "Please select an image file")
		return ErrNotImage
	}
	info, err := os.Stat(path)
	if err != nil {
		c.notify.Notify(LevelError, "Failed to upload image")
		return fmt.Errorf("reading image: %w", err)
	}
	if info.Size() > MaxUploadBytes {
		c.notify.Notify(LevelError, "Image size should be less than 5MB")
		return ErrImageTooLarge
	}

	f, err := os.Open(path)
	if err != nil {
		c.notify.Notify(LevelError, "Failed to upload image")
		return fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	c.notify.Notify(LevelInfo, "Uploading image...")
	if _, err := c.api.UploadImage(ctx, c.state.SessionID, name, f); err != nil {
		if errors.Is(err, ErrAuthRequired) {
			c.user = nil
			c.notify.Notify(LevelError, "Please sign in to upload images")
			c.redirectToLogin()
			return err
		}
		c.logger.Error("uploading image", zap.String("file", name), zap.Error(err))
		c.notify.Notify(LevelError, "Failed to upload image")
		return err
	}
	c.draft += " [Image uploaded: " + name + "]"
	c.notify.Notify(LevelSuccess, "Image uploaded successfully")
	return nil
}

var (
	ErrNotImage      = errors.New("not an image file")
	ErrImageTooLarge = errors.New("image larger than 5MB")
)

// LoadSession replaces the conversation with a past session.
func (c *Controller) LoadSession(ctx context.Context, id string) error {
	if !c.requireUser("view conversations") {
		return ErrAuthRequired
	}
	c.notify.Notify(LevelInfo, "Loading conversation...")
	err := c.loadSession(ctx, id)
	switch {
	case err == nil:
		c.LoadHistory(ctx)
	case errors.Is(err, ErrAuthRequired):
		c.user = nil
		c.notify.Notify(LevelError, "Please sign in to view conversations")
		c.redirectToLogin()
	case errors.Is(err, ErrForbidden):
		c.notify.Notify(LevelError, "You don't have permission to access this conversation")
	default:
		c.logger.Error("loading session", zap.String("session_id", id), zap.Error(err))
		c.notify.Notify(LevelError, "Failed to load conversation")
	}
	return err
}

func (c *Controller) loadSession(ctx context.Context, id string) error {
	detail, err := c.api.GetSession(ctx, id)
	if err != nil {
		return err
	}

	c.state.SessionID = detail.ID
	if c.state.SessionID == "" {
		c.state.SessionID = id
	}
	c.vehicle = detail.Vehicle
	c.flow.Load(detail.Vehicle)
	c.transcript = nil
	for _, m := range detail.Messages {
		if m.Role == chat.RoleSystem {
			continue
		}
		b := Bubble{Role: m.Role, Content: m.Content, Timestamp: m.CreatedAt, CarImage: m.CarImage, Products: m.Products}
		if m.Role == chat.RoleAssistant {
			c.appendAssistant(b)
		} else {
			c.transcript = append(c.transcript, b)
		}
	}
	if chat.ValidTextSize(detail.TextSize) {
		c.state.TextSize = detail.TextSize
	}
	c.saveState()
	return nil
}

// ResetChat forgets the active session and returns to vehicle selection.
func (c *Controller) ResetChat() {
	c.flow.Reset()
	c.vehicle = catalog.Vehicle{}
	c.state.SessionID = ""
	c.saveState()
	c.transcript = nil
	c.draft = ""
}

// SetTextSize changes the display size, on the server too when a session
// is active.
func (c *Controller) SetTextSize(ctx context.Context, size string) error {
	if !chat.ValidTextSize(size) {
		return chat.ErrInvalidTextSize
	}
	c.state.TextSize = size
	c.saveState()
	c.pushTextSize(ctx)
	return nil
}

func (c *Controller) pushTextSize(ctx context.Context) {
	if c.state.SessionID == "" || c.user == nil {
		return
	}
	if err := c.api.SetTextSize(ctx, c.state.SessionID, c.state.TextSize); err != nil {
		c.logger.Warn("saving text size", zap.Error(err))
	}
}

// ToggleTheme flips between the light and dark themes.
func (c *Controller) ToggleTheme() bool {
	c.state.DarkTheme = !c.state.DarkTheme
	c.saveState()
	return c.state.DarkTheme
}

// SetAuthToken stores a new sign-in token and hands it to the API when the
// API accepts one.
func (c *Controller) SetAuthToken(token string) {
	c.state.AuthToken = token
	c.saveState()
	if t, ok := c.api.(interface{ SetToken(string) }); ok {
		t.SetToken(token)
	}
}

// Logout ends the server-side session and forgets the local token.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.api.Logout(ctx); err != nil {
		c.logger.Warn("logging out", zap.Error(err))
	}
	c.SetAuthToken("")
	c.user = nil
	c.history = nil
	c.ResetChat()
	c.notify.Notify(LevelSuccess, "Signed out")
}

func (c *Controller) saveState() {
	if err := c.state.Save(); err != nil {
		c.logger.Warn("saving client state", zap.Error(err))
	}
}

// SetDraft replaces the pending input text.
func (c *Controller) SetDraft(s string) { c.draft = s }

// Suggestions are ready-made opening questions offered next to the input.
var Suggestions = []string{
	"My check engine light is on",
	"My car makes a strange noise when braking",
	"My car won't start",
	"What maintenance is due for my car?",
	"Can you recommend parts for a service?",
}

// SendSuggestion sends Suggestions[i] as if it had been typed.
func (c *Controller) SendSuggestion(ctx context.Context, i int) error {
	if i < 0 || i >= len(Suggestions) {
		return fmt.Errorf("no suggestion %d", i)
	}
	return c.SendMessage(ctx, Suggestions[i])
}

// Compose joins the pending draft and a newly typed line. The draft comes
// first, so text typed after an upload follows its marker.
func (c *Controller) Compose(typed string) string {
	draft := strings.TrimSpace(c.draft)
	typed = strings.TrimSpace(typed)
	switch {
	case draft == "":
		return typed
	case typed == "":
		return draft
	}
	return draft + " " + typed
}

func (c *Controller) Draft() string               { return c.draft }
func (c *Controller) User() *auth.User            { return c.user }
func (c *Controller) SessionID() string           { return c.state.SessionID }
func (c *Controller) Vehicle() catalog.Vehicle    { return c.vehicle }
func (c *Controller) Transcript() []Bubble        { return c.transcript }
func (c *Controller) History() []chat.HistoryItem { return c.history }
func (c *Controller) TextSize() string            { return c.state.TextSize }
func (c *Controller) DarkTheme() bool             { return c.state.DarkTheme }

// Title is the heading of the active conversation.
func (c *Controller) Title() string {
	if !c.vehicle.Complete() {
		return "New conversation"
	}
	return c.vehicle.String()
}
