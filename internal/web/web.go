package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"postcal/internal/api"
	"postcal/internal/calendar"
	"postcal/internal/config"
	"postcal/internal/export"
	appLog "postcal/internal/log"
	"postcal/internal/model"
	"postcal/internal/store"
	"postcal/internal/viewstate"
)

// Server exposes the calendar grid, the agenda and an ICS feed built from
// the latest posts snapshot.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	labeler   *calendar.Labeler
	weekStart time.Weekday
	now       func() time.Time
	mux       *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st *store.Store, labeler *calendar.Labeler) *Server {
	s := &Server{
		cfg:       cfg,
		store:     st,
		labeler:   labeler,
		weekStart: calendar.ParseWeekStart(cfg.WeekStart),
		now:       time.Now,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="postcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleEvent)
	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventDTO is the JSON view of a calendar event.
type eventDTO struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Platform string    `json:"platform"`
	Message  string    `json:"message"`
	Campaign string    `json:"campaign"`
}

// invalidDTO reports a post whose scheduled time could not be parsed.
type invalidDTO struct {
	PostID int64  `json:"post_id"`
	Value  string `json:"value"`
	Error  string `json:"error"`
}

type snapshotMeta struct {
	FetchedAt time.Time    `json:"fetched_at"`
	FromCache bool         `json:"from_cache"`
	Stale     bool         `json:"stale"`
	Invalid   []invalidDTO `json:"invalid,omitempty"`
}

type viewDTO struct {
	Mode       string    `json:"mode"`
	Focus      string    `json:"focus"`
	RangeStart time.Time `json:"range_start"`
	RangeEnd   time.Time `json:"range_end"`
	WeekStart  string    `json:"week_start"`
	Platforms  []string  `json:"platforms,omitempty"`
	TimeZone   string    `json:"timezone"`
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	View     viewDTO    `json:"view"`
	Events   []eventDTO `json:"events"`
	Selected *eventDTO  `json:"selected,omitempty"`
	snapshotMeta
}

type agendaEntryDTO struct {
	Time  string   `json:"time"`
	Event eventDTO `json:"event"`
}

type agendaDayDTO struct {
	Key     string           `json:"key"`
	Label   string           `json:"label"`
	Entries []agendaEntryDTO `json:"entries"`
}

// agendaResponse is the JSON response shape for /api/agenda.
type agendaResponse struct {
	Days         []agendaDayDTO `json:"days"`
	EmptyMessage string         `json:"empty_message,omitempty"`
	snapshotMeta
}

// handleEvents returns the grid events for a view.
//
// GET /api/events?view=week&date=2025-01-05&nav=next&platform=sms,email&select=12
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}

	st, err := s.viewFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events := snap.Events()
	visible := st.Visible(events, s.weekStart)
	start, end := st.Range(s.weekStart)

	platforms := make([]string, 0, len(st.Platforms))
	for _, p := range st.Platforms {
		platforms = append(platforms, string(p))
	}

	resp := eventsResponse{
		View: viewDTO{
			Mode:       string(st.Mode),
			Focus:      calendar.DayKey(st.Focus),
			RangeStart: start,
			RangeEnd:   end,
			WeekStart:  s.cfg.WeekStart,
			Platforms:  platforms,
			TimeZone:   s.store.Location().String(),
		},
		Events:       toDTOs(visible),
		snapshotMeta: s.meta(snap),
	}
	if ev, found := st.Selected(events); found {
		dto := toDTO(ev)
		resp.Selected = &dto
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleEvent returns a single event's detail.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}

	for _, ev := range snap.Events() {
		if ev.ID == id {
			writeJSON(w, http.StatusOK, toDTO(ev))
			return
		}
	}
	writeError(w, http.StatusNotFound, "event not found")
}

// handleAgenda returns the day-grouped, labelled agenda.
//
// GET /api/agenda?sort=time&upcoming=1&platform=instagram
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	platforms, err := parsePlatforms(q["platform"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events := calendar.FilterByPlatform(snap.Events(), platforms...)
	if parseBool(q.Get("upcoming")) {
		now := s.now().In(s.store.Location())
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		events = calendar.EventsInRange(events, today, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
	}

	opts := calendar.AgendaOptions{SortWithinDay: s.cfg.Agenda.SortWithinDay}
	switch q.Get("sort") {
	case "time":
		opts.SortWithinDay = true
	case "backend":
		opts.SortWithinDay = false
	}

	labeler := s.labeler.WithClock(s.now)
	days := calendar.BuildAgenda(events, labeler, opts)

	resp := agendaResponse{
		Days:         make([]agendaDayDTO, 0, len(days)),
		snapshotMeta: s.meta(snap),
	}
	for _, d := range days {
		entries := make([]agendaEntryDTO, 0, len(d.Entries))
		for _, e := range d.Entries {
			entries = append(entries, agendaEntryDTO{Time: e.Time, Event: toDTO(e.Event)})
		}
		resp.Days = append(resp.Days, agendaDayDTO{Key: d.Key, Label: d.Label, Entries: entries})
	}
	if len(resp.Days) == 0 {
		resp.EmptyMessage = labeler.EmptyMessage()
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh forces a fetch from the backend.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, upstreamMessage("refresh failed", err))
		return
	}
	writeJSON(w, http.StatusOK, s.meta(snap))
}

// handleICS serves the events as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshotOrError(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="posts.ics"`)
	if err := export.WriteICS(w, snap.Events(), "Scheduled posts"); err != nil {
		appLog.Error("failed to write ICS feed", err)
	}
}

// snapshotOrError writes an error response when no snapshot exists.
func (s *Server) snapshotOrError(w http.ResponseWriter) (*store.Snapshot, bool) {
	snap, err := s.store.Current()
	if err == nil {
		return snap, true
	}
	if errors.Is(err, store.ErrNoSnapshot) {
		writeError(w, http.StatusServiceUnavailable, "posts not loaded yet")
		return nil, false
	}
	writeError(w, http.StatusBadGateway, upstreamMessage("failed to load posts", err))
	return nil, false
}

func (s *Server) meta(snap *store.Snapshot) snapshotMeta {
	_, lastErr := s.store.Status()
	m := snapshotMeta{
		FetchedAt: snap.FetchedAt,
		FromCache: snap.FromCache,
		Stale:     lastErr != nil,
	}
	for _, me := range snap.Errors() {
		m.Invalid = append(m.Invalid, invalidDTO{PostID: me.PostID, Value: me.Value, Error: me.Err.Error()})
	}
	return m
}

// viewFromQuery reduces the query parameters over the default view state.
func (s *Server) viewFromQuery(r *http.Request) (viewstate.State, error) {
	q := r.URL.Query()
	loc := s.store.Location()
	now := s.now().In(loc)

	actions := []viewstate.Action{
		viewstate.SetMode{Mode: model.ParseViewMode(q.Get("view"), model.ViewMonth)},
	}

	if d := q.Get("date"); d != "" {
		focus, err := time.ParseInLocation("2006-01-02", d, loc)
		if err != nil {
			return viewstate.State{}, errors.New("date must be YYYY-MM-DD")
		}
		actions = append(actions, viewstate.SetFocus{Focus: focus})
	}

	switch q.Get("nav") {
	case "":
	case "next":
		actions = append(actions, viewstate.Next{})
	case "prev":
		actions = append(actions, viewstate.Prev{})
	case "today":
		actions = append(actions, viewstate.Today{Now: now})
	default:
		return viewstate.State{}, errors.New("nav must be next, prev or today")
	}

	platforms, err := parsePlatforms(q["platform"])
	if err != nil {
		return viewstate.State{}, err
	}
	for _, p := range platforms {
		actions = append(actions, viewstate.TogglePlatform{Platform: p})
	}

	if sel := q.Get("select"); sel != "" {
		id, err := strconv.ParseInt(sel, 10, 64)
		if err != nil {
			return viewstate.State{}, errors.New("select must be an event id")
		}
		actions = append(actions, viewstate.Select{ID: id})
	}

	return viewstate.Reduce(viewstate.New(now), actions...), nil
}

// parsePlatforms accepts repeated and comma-separated values, ignoring
// duplicates.
func parsePlatforms(values []string) ([]model.Platform, error) {
	var out []model.Platform
	seen := make(map[model.Platform]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			p, err := model.ParsePlatform(part)
			if err != nil {
				return nil, err
			}
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// upstreamMessage describes a fetch error. Backend auth failures are
// reported as 502 like any other upstream error, so they cannot be mistaken
// for this server's own Basic Auth challenge.
func upstreamMessage(prefix string, err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.Unauthorized() {
		return prefix + ": unauthorized upstream: " + err.Error()
	}
	return prefix + ": " + err.Error()
}

func toDTO(ev model.CalendarEvent) eventDTO {
	return eventDTO{
		ID:       ev.ID,
		Title:    ev.Title,
		Start:    ev.Start,
		End:      ev.End,
		Platform: string(ev.Platform),
		Message:  ev.Message,
		Campaign: ev.Campaign,
	}
}

func toDTOs(events []model.CalendarEvent) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, toDTO(ev))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
