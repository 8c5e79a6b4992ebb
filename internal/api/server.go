// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopscout/internal/common/logger"
	"shopscout/internal/models"
	"shopscout/internal/monitor"
	"shopscout/internal/store"
)

// Pipeline is the recommendation entry point the API exposes.
type Pipeline interface {
	RunStructured(ctx context.Context, query *models.StructuredQuery, region string) []models.Recommendation
	RunMulti(ctx context.Context, rawText, region string) []models.Recommendation
}

// QueryParser interprets free-text queries. The API parses before running
// the pipeline so the interpreted query can be persisted alongside the raw
// text.
type QueryParser interface {
	Parse(ctx context.Context, rawText string) *models.StructuredQuery
}

// Surpriser produces a single unexpected product suggestion.
type Surpriser interface {
	Suggest(ctx context.Context, messages []string) string
}

// Profiler synthesizes a user profile from history.
type Profiler interface {
	Synthesize(ctx context.Context, history *store.History) *models.UserProfile
}

// Observer consumes passively observed chat messages.
type Observer interface {
	HandleMessage(ctx context.Context, msg monitor.Message) []models.Recommendation
}

// Refresher rebuilds a user's personalized recommendations.
type Refresher interface {
	Refresh(ctx context.Context, userID int64) error
}

// Server is the thin HTTP adapter over the recommendation pipeline.
type Server struct {
	pipeline      Pipeline
	parser        QueryParser
	store         store.Store
	surpriser     Surpriser
	profiler      Profiler
	observer      Observer
	refresher     Refresher
	defaultRegion string
	logger        logger.Logger
}

// NewServer creates a Server. store, surpriser, profiler and observer may be
// nil; the corresponding endpoints then report service unavailable.
func NewServer(p Pipeline, parser QueryParser, st store.Store, sp Surpriser, pf Profiler, obs Observer, defaultRegion string, log logger.Logger) *Server {
	return &Server{
		pipeline:      p,
		parser:        parser,
		store:         st,
		surpriser:     sp,
		profiler:      pf,
		observer:      obs,
		defaultRegion: defaultRegion,
		logger:        log.With(map[string]interface{}{"component": "api"}),
	}
}

// WithRefresher attaches the personalization refresher.
func (s *Server) WithRefresher(r Refresher) *Server {
	s.refresher = r
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/recommendations", s.handleRecommendations).Methods(http.MethodPost)
	r.HandleFunc("/recommendations/multi", s.handleMultiRecommendations).Methods(http.MethodPost)
	r.HandleFunc("/messages", s.handleMessage).Methods(http.MethodPost)
	r.HandleFunc("/surprise", s.handleSurprise).Methods(http.MethodPost)
	r.HandleFunc("/reactions", s.handleReaction).Methods(http.MethodPost)
	r.HandleFunc("/profile/{user_id}", s.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/profile/{user_id}/refresh", s.handleProfileRefresh).Methods(http.MethodPost)
	return r
}

// requestID tags every response with an X-Request-ID, generating one when
// the caller did not send one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// apiResponse is the uniform response envelope.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type recommendationRequest struct {
	Query       string `json:"query"`
	Region      string `json:"region"`
	ResultCount int    `json:"result_count"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
}

type surpriseRequest struct {
	Messages []string `json:"messages"`
}

type messageRequest struct {
	ChannelID  string `json:"channel_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
}

type messageResponse struct {
	Triggered       bool                    `json:"triggered"`
	Recommendations []models.Recommendation `json:"recommendations"`
}

type reactionRequest struct {
	UserID int64 `json:"user_id"`
	ItemID int64 `json:"item_id"`
	Liked  bool  `json:"liked"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]string{"status": "ok"}})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "query is required"})
		return
	}
	region := req.Region
	if region == "" {
		region = s.defaultRegion
	}

	// Interpretation always runs so price range and category survive even
	// when the caller fixes the count.
	query := s.parser.Parse(r.Context(), req.Query)
	if req.ResultCount > 0 {
		query.ResultCount = req.ResultCount
	}

	recs := s.pipeline.RunStructured(r.Context(), query, region)

	s.persistPrompted(r.Context(), req, query, recs)

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: recs})
}

// persistPrompted records a direct API query and its recommendations against
// the calling user. Callers without a user_id stay anonymous and nothing is
// stored. Storage failures are logged, never surfaced.
func (s *Server) persistPrompted(ctx context.Context, req recommendationRequest, query *models.StructuredQuery, recs []models.Recommendation) {
	if s.store == nil || req.UserID == "" {
		return
	}

	user, err := s.store.CreateOrGetUser(ctx, req.UserID, req.Username)
	if err != nil {
		s.logger.Error("failed to persist user", map[string]interface{}{"error": err.Error()})
		return
	}

	record, err := s.store.CreateQuery(ctx, user.ID, req.Query, store.QueryTypePrompted, query)
	if err != nil {
		s.logger.Error("failed to persist query", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, rec := range recs {
		if _, err := s.store.CreateRecommendedItem(ctx, record.ID, rec); err != nil {
			s.logger.Error("failed to persist recommendation", map[string]interface{}{
				"item_name": rec.ItemName,
				"error":     err.Error(),
			})
		}
	}
}

func (s *Server) handleMultiRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "query is required"})
		return
	}
	region := req.Region
	if region == "" {
		region = s.defaultRegion
	}

	recs := s.pipeline.RunMulti(r.Context(), req.Query, region)
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: recs})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.observer == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Success: false, Error: "message observation is unavailable"})
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelID == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "channel_id and content are required"})
		return
	}

	recs := s.observer.HandleMessage(r.Context(), monitor.Message{
		ChannelID:  req.ChannelID,
		AuthorID:   req.AuthorID,
		AuthorName: req.AuthorName,
		Content:    req.Content,
	})

	// A nil slice means the gate swallowed the message.
	resp := messageResponse{Triggered: recs != nil}
	if recs != nil {
		resp.Recommendations = recs
	} else {
		resp.Recommendations = []models.Recommendation{}
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: resp})
}

func (s *Server) handleSurprise(w http.ResponseWriter, r *http.Request) {
	if s.surpriser == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Success: false, Error: "surprise suggestions are unavailable"})
		return
	}

	var req surpriseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "messages are required"})
		return
	}

	item := s.surpriser.Suggest(r.Context(), req.Messages)
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]string{"item_name": item}})
}

func (s *Server) handleReaction(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Success: false, Error: "reactions are unavailable"})
		return
	}

	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 || req.ItemID == 0 {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "user_id and item_id are required"})
		return
	}

	reaction, err := s.store.CreateReaction(r.Context(), req.UserID, req.ItemID, req.Liked)
	if err != nil {
		s.logger.Error("failed to store reaction", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Error: "failed to store reaction"})
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: reaction})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if s.store == nil || s.profiler == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Success: false, Error: "profiles are unavailable"})
		return
	}

	userID, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "user_id must be numeric"})
		return
	}

	history, err := s.store.GetUserHistory(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to load user history", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Error: "failed to load profile"})
		return
	}

	profile := s.profiler.Synthesize(r.Context(), history)
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: profile})
}

func (s *Server) handleProfileRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Success: false, Error: "personalization refresh is unavailable"})
		return
	}

	userID, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "user_id must be numeric"})
		return
	}

	if err := s.refresher.Refresh(r.Context(), userID); err != nil {
		s.logger.Error("failed to refresh recommendations", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Error: "failed to refresh recommendations"})
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]string{"status": "refreshed"}})
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
