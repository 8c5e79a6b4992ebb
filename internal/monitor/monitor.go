// internal/monitor/monitor.go
package monitor

import (
	"context"

	"shopscout/internal/common/logger"
	"shopscout/internal/gate"
	"shopscout/internal/models"
	"shopscout/internal/pipeline"
	"shopscout/internal/store"
)

// Message is one passively observed chat message.
type Message struct {
	ChannelID  string
	AuthorID   string
	AuthorName string
	Content    string
}

// Interpreter extracts shopping intent from recent conversation context.
type Interpreter interface {
	InterpretConversation(ctx context.Context, messages []string) (*models.StructuredQuery, bool)
}

// Runner is the pipeline entry point the monitor invokes.
type Runner interface {
	RunStructured(ctx context.Context, query *models.StructuredQuery, region string) []models.Recommendation
}

// Monitor watches conversation channels and triggers the recommendation
// pipeline when the intent gate lets a message through. The checks run
// cheapest first: keyword filter, then cooldown, then the model call.
type Monitor struct {
	gate        *gate.Gate
	interpreter Interpreter
	pipeline    Runner
	store       store.Store
	region      string
	logger      logger.Logger
}

// New creates a Monitor. store may be nil; persistence is then skipped.
func New(g *gate.Gate, interp Interpreter, p Runner, st store.Store, region string, log logger.Logger) *Monitor {
	return &Monitor{
		gate:        g,
		interpreter: interp,
		pipeline:    p,
		store:       st,
		region:      region,
		logger:      log.With(map[string]interface{}{"component": "monitor"}),
	}
}

// HandleMessage processes one observed message. The returned slice is nil
// when the message did not trigger the pipeline and non-nil (possibly
// empty) when it did.
func (m *Monitor) HandleMessage(ctx context.Context, msg Message) []models.Recommendation {
	m.gate.AddMessage(msg.ChannelID, msg.Content)

	if !gate.IsShoppingLike(msg.Content) {
		return nil
	}

	if !m.gate.ShouldInvoke(msg.ChannelID) {
		m.logger.Debug("channel in cooldown, skipping", map[string]interface{}{
			"channel_id": msg.ChannelID,
		})
		return nil
	}

	query, ok := m.interpreter.InterpretConversation(ctx, m.gate.Context(msg.ChannelID))
	if !ok {
		return nil
	}

	if m.gate.IsDuplicate(msg.ChannelID, query.ItemName) {
		m.logger.Info("duplicate query, skipping search", map[string]interface{}{
			"channel_id": msg.ChannelID,
			"item_name":  query.ItemName,
		})
		return nil
	}

	recommendations := m.pipeline.RunStructured(ctx, query, m.region)

	m.persist(ctx, msg, query, recommendations)

	return recommendations
}

// persist records the query and its recommendations. Storage failures are
// logged, never surfaced; the user still gets their results.
func (m *Monitor) persist(ctx context.Context, msg Message, query *models.StructuredQuery, recs []models.Recommendation) {
	if m.store == nil {
		return
	}

	user, err := m.store.CreateOrGetUser(ctx, msg.AuthorID, msg.AuthorName)
	if err != nil {
		m.logger.Error("failed to persist user", map[string]interface{}{"error": err.Error()})
		return
	}

	record, err := m.store.CreateQuery(ctx, user.ID, msg.Content, store.QueryTypeUnprompted, query)
	if err != nil {
		m.logger.Error("failed to persist query", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, rec := range recs {
		if _, err := m.store.CreateRecommendedItem(ctx, record.ID, rec); err != nil {
			m.logger.Error("failed to persist recommendation", map[string]interface{}{
				"item_name": rec.ItemName,
				"error":     err.Error(),
			})
		}
	}
}

var _ Runner = (*pipeline.Pipeline)(nil)
