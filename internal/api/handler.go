package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/admission"
	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/feeding"
	"github.com/nidhogg/bird-zoo/internal/gateway"
	"github.com/nidhogg/bird-zoo/internal/persistence"
	"github.com/nidhogg/bird-zoo/internal/world"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Deps are the components the admin API exposes. Broadcaster, Gateway,
// RESTGateway, Clock and Metrics may be nil.
type Deps struct {
	Store       *zoo.Store
	Admission   *admission.Controller
	Feeding     *feeding.Service
	Env         *environment.Provider
	Scheduler   *world.PopulationScheduler
	Clock       *world.WorldClock
	Broadcaster *gateway.Broadcaster
	Gateway     *gateway.Gateway
	RESTGateway *gateway.RESTAdapter
	Metrics     http.Handler
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Deps
	logger *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{Deps: deps, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/environment", h.environment)
		r.Get("/world/status", h.worldStatus)
		r.Post("/tick", h.triggerTick)

		r.Get("/guilds", h.listGuilds)
		r.Route("/guilds/{guildID}", func(r chi.Router) {
			r.Use(validGuild)
			r.Get("/zoo", h.getZoo)
			r.Post("/residents", h.admitResident)
			r.Post("/visitors", h.admitVisitor)
			r.Post("/feed", h.feed)
			r.Get("/events", h.listEvents)
			r.Get("/birds/{name}/duplicate", h.checkDuplicate)
			r.Post("/birds/{name}/extend", h.extendStay)
			r.Delete("/birds/{name}", h.removeBird)
		})

		// Gateway routes
		r.Get("/broadcasts", h.listBroadcasts)
		r.Get("/gateway/status", h.gatewayStatus)
		if h.RESTGateway != nil {
			r.Mount("/gateway/rest", h.RESTGateway.Routes())
		}
	})

	return r
}

func validGuild(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !persistence.ValidGuildID(chi.URLParam(r, "guildID")) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid guild id"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "bird-zoo"})
}

func (h *Handler) environment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Env.Snapshot(r.Context()))
}

func (h *Handler) worldStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"guild_count": len(h.Store.GuildIDs()),
		"now":         h.Env.Now(),
	}
	if h.Clock != nil {
		status["world_time"] = h.Clock.WorldTime()
	}
	if h.Scheduler != nil {
		status["last_tick"] = h.Scheduler.LastTick()
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) triggerTick(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scheduler not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, h.Scheduler.Tick(r.Context(), h.Env.Now()))
}

type guildSummary struct {
	GuildID    string    `json:"guild_id"`
	Residents  int       `json:"residents"`
	Visitors   int       `json:"visitors"`
	Queued     int       `json:"queued"`
	LastUpdate time.Time `json:"last_update"`
}

func (h *Handler) listGuilds(w http.ResponseWriter, r *http.Request) {
	out := []guildSummary{}
	for id, st := range h.Store.SnapshotAll() {
		out = append(out, guildSummary{
			GuildID:    id,
			Residents:  len(st.Residents()),
			Visitors:   len(st.Visitors),
			Queued:     len(st.AdmissionQueue),
			LastUpdate: st.LastUpdate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getZoo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Get(chi.URLParam(r, "guildID")))
}

type residentRequest struct {
	Species     string `json:"species"`
	StayDays    int    `json:"stay_days"`
	RequestID   string `json:"request_id"`
	RequestedBy string `json:"requested_by"`
}

func (h *Handler) admitResident(w http.ResponseWriter, r *http.Request) {
	var req residentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Species == "" || req.StayDays < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "species is required and stay_days must not be negative"})
		return
	}
	as, err := h.Admission.AdmitResident(r.Context(), chi.URLParam(r, "guildID"), req.Species, admission.ResidentOptions{
		StayDays:    req.StayDays,
		RequestID:   req.RequestID,
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.publish(r, as.Event)
	writeJSON(w, http.StatusCreated, as)
}

type visitorRequest struct {
	Species       string `json:"species"`
	InviterID     string `json:"inviter_id"`
	InviterName   string `json:"inviter_name"`
	WindowMinutes int    `json:"window_minutes"`
}

func (h *Handler) admitVisitor(w http.ResponseWriter, r *http.Request) {
	var req visitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Species == "" || req.WindowMinutes < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "species is required and window_minutes must not be negative"})
		return
	}
	v, err := h.Admission.AdmitVisitor(r.Context(), chi.URLParam(r, "guildID"), req.Species, req.InviterID, req.InviterName,
		admission.VisitorOptions{Window: time.Duration(req.WindowMinutes) * time.Minute})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// feedRequest names the bird by bird_id, or by bird (an id or a species name).
type feedRequest struct {
	BirdID string `json:"bird_id"`
	Bird   string `json:"bird"`
	UserID string `json:"user_id"`
	Food   string `json:"food"`
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	ref := req.BirdID
	if ref == "" {
		ref = req.Bird
	}
	if ref == "" || req.UserID == "" || req.Food == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bird or bird_id, user_id and food are required"})
		return
	}
	out, err := h.Feeding.Feed(r.Context(), chi.URLParam(r, "guildID"), ref, req.UserID, req.Food)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if out.SpecialEvent != nil {
		h.publish(r, *out.SpecialEvent)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.Store.Get(chi.URLParam(r, "guildID")).RecentEvents(limit))
}

func (h *Handler) checkDuplicate(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Admission.IsDuplicated(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "guildID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type extendRequest struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

func (h *Handler) extendStay(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Days < 0 || req.Hours < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days and hours must not be negative"})
		return
	}
	dep, err := h.Feeding.ExtendStay(chi.URLParam(r, "guildID"), chi.URLParam(r, "name"), req.Days, req.Hours)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]time.Time{"effective_departure": dep})
}

func (h *Handler) removeBird(w http.ResponseWriter, r *http.Request) {
	n, err := h.Admission.ForceRemove(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "guildID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *Handler) listBroadcasts(w http.ResponseWriter, r *http.Request) {
	if h.Broadcaster == nil {
		writeJSON(w, http.StatusOK, []gateway.BroadcastRecord{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records := h.Broadcaster.History(r.URL.Query().Get("guild"), limit)
	if records == nil {
		records = []gateway.BroadcastRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.Gateway == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, h.Gateway.StatusAll())
}

func (h *Handler) publish(r *http.Request, ev zoo.Event) {
	if h.Broadcaster != nil {
		h.Broadcaster.Publish(r.Context(), chi.URLParam(r, "guildID"), ev)
	}
}

// writeError maps the zoo error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		capErr *zoo.CapacityError
		cdErr  *zoo.CooldownError
	)
	switch {
	case errors.As(err, &capErr):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":          err.Error(),
			"area":           capErr.Area,
			"queued":         capErr.Queued,
			"queue_position": capErr.QueuePosition,
		})
	case errors.As(err, &cdErr):
		wait := cdErr.NextEligibleAt.Sub(h.Env.Now())
		if wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":            err.Error(),
			"next_eligible_at": cdErr.NextEligibleAt,
		})
	case errors.Is(err, zoo.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, zoo.ErrBirdsAsleep):
		writeJSON(w, http.StatusLocked, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
