package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/llm"
	"github.com/autogenius/autogenius/internal/recommend"
)

// ErrEmptyMessage is returned when a chat message has no text.
var ErrEmptyMessage = errors.New("message is empty")

// Diagnoser answers the conversation about a vehicle.
type Diagnoser interface {
	Diagnose(ctx context.Context, vehicle catalog.Vehicle, history []llm.Message) string
}

// Recommender suggests products for a diagnosis.
type Recommender interface {
	Recommend(ctx context.Context, query string, topK int) ([]recommend.Product, error)
}

// ImageFinder looks up a picture of a vehicle. An empty result means none.
type ImageFinder interface {
	Find(ctx context.Context, vehicle catalog.Vehicle) string
}

// Config wires the service's collaborators. Recommender and Images are optional.
type Config struct {
	Diagnoser   Diagnoser
	Recommender Recommender
	Images      ImageFinder
	TopK        int
	Logger      *zap.Logger
}

// Service implements the chat operations on behalf of a signed-in user.
type Service struct {
	store  *Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a chat service.
func NewService(store *Store, cfg Config) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = recommend.DefaultTopK
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Store exposes the underlying store.
func (s *Service) Store() *Store { return s.store }

// Created describes a newly started session.
type Created struct {
	SessionID string          `json:"session_id"`
	Vehicle   catalog.Vehicle `json:"car_details"`
	CarImage  string          `json:"car_image,omitempty"`
}

// WelcomeMessage is the first assistant message of every session.
func WelcomeMessage(v catalog.Vehicle) string {
	return fmt.Sprintf("Hello! I'm ready to help with your %s. What issues are you experiencing?", v)
}

// CreateSession starts a conversation about v for userID.
func (s *Service) CreateSession(ctx context.Context, userID string, v catalog.Vehicle) (*Created, error) {
	v.Manufacturer = strings.TrimSpace(v.Manufacturer)
	v.Model = strings.TrimSpace(v.Model)
	if err := v.Validate(s.now()); err != nil {
		return nil, err
	}

	var carImage string
	if s.cfg.Images != nil {
		carImage = s.cfg.Images.Find(ctx, v)
	}

	sess, err := s.store.CreateSession(ctx, userID, v, []Message{
		{Role: RoleSystem, Content: "Vehicle: " + v.String()},
		{Role: RoleAssistant, Content: WelcomeMessage(v), CarImage: carImage},
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("created session", zap.String("session_id", sess.ID), zap.String("vehicle", v.String()))
	return &Created{SessionID: sess.ID, Vehicle: v, CarImage: carImage}, nil
}

// Authorize returns the session if it exists and belongs to userID.
func (s *Service) Authorize(ctx context.Context, userID, sessionID string) (*Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.UserID != userID {
		return nil, ErrForbidden
	}
	return sess, nil
}

// Send records a user message, asks for a diagnosis, attaches product
// recommendations and records the reply.
func (s *Service) Send(ctx context.Context, userID, sessionID, text string) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	sess, err := s.Authorize(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	prior, err := s.store.Messages(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	history := make([]llm.Message, 0, len(prior)+1)
	for _, m := range prior {
		history = append(history, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: text})

	userMsg := Message{Role: RoleUser, Content: text, CreatedAt: s.now().UTC()}

	diagnosis := s.cfg.Diagnoser.Diagnose(ctx, sess.Vehicle, history)

	var products []recommend.Product
	if s.cfg.Recommender != nil {
		products, err = s.cfg.Recommender.Recommend(ctx, diagnosis, s.cfg.TopK)
		if err != nil {
			s.logger.Warn("recommendation failed", zap.String("session_id", sess.ID), zap.Error(err))
			products = nil
		}
	}

	reply := &Reply{Message: diagnosis + FormatProducts(products), Products: products}
	if reply.Products == nil {
		reply.Products = []recommend.Product{}
	}

	assistant := Message{Role: RoleAssistant, Content: reply.Message, Products: products, CreatedAt: s.now().UTC()}
	if err := s.store.AppendMessages(ctx, sess.ID, userMsg, assistant); err != nil {
		return nil, err
	}
	return reply, nil
}

// FormatProducts renders the product list appended to a reply. No products
// yields the empty string.
func FormatProducts(products []recommend.Product) string {
	if len(products) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n**Recommended Products:**\n")
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s by %s ($%s)\n   URL: %s\n", i+1, p.Title, p.Manufacturer, p.Price.StringFixed(2), p.URL)
	}
	return b.String()
}

// SetTextSize stores the display size of a session.
func (s *Service) SetTextSize(ctx context.Context, userID, sessionID, size string) error {
	if !ValidTextSize(size) {
		return ErrInvalidTextSize
	}
	if _, err := s.Authorize(ctx, userID, sessionID); err != nil {
		return err
	}
	return s.store.SetTextSize(ctx, sessionID, size)
}

// History lists the user's sessions, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]HistoryItem, error) {
	items, err := s.store.History(ctx, userID)
	if items == nil && err == nil {
		items = []HistoryItem{}
	}
	return items, err
}

// Detail returns a session transcript owned by userID.
func (s *Service) Detail(ctx context.Context, userID, sessionID string) (*SessionDetail, error) {
	sess, err := s.Authorize(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return &SessionDetail{Session: *sess, Messages: msgs}, nil
}

// Clear deletes every session of userID.
func (s *Service) Clear(ctx context.Context, userID string) error {
	n, err := s.store.DeleteUserSessions(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.Info("cleared history", zap.String("user_id", userID), zap.Int64("sessions", n))
	return nil
}
