package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/david/opportunity-finder/internal/browse"
	"github.com/david/opportunity-finder/internal/config"
	"github.com/david/opportunity-finder/internal/db"
	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Loader produces a freshly loaded dataset. *ingest.Pipeline satisfies it.
type Loader interface {
	Load(ctx context.Context) (*ingest.Dataset, error)
}

type Server struct {
	Echo   *echo.Echo
	Loader Loader
	Store  *db.Store // optional, enables /runs

	adminSecret string

	// The dataset is written by one loader at a time and read by every
	// request handler.
	mu       sync.RWMutex
	dataset  *ingest.Dataset
	reloadMu sync.Mutex

	jobMu      sync.Mutex
	runningJob *reloadJob
}

type reloadJob struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // running, completed, failed
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Rows      int       `json:"rows,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func NewServer(loader Loader, store *db.Store, cfg *config.Config) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := append([]string{"http://localhost:4200"}, cfg.CORSOrigins...)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	secret, err := resolveAdminSecret(cfg.AdminSecret)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Echo:        e,
		Loader:      loader,
		Store:       store,
		adminSecret: secret,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:index", s.handleGetOpportunity)
	api.GET("/tags", s.handleGetTags)
	api.GET("/columns", s.handleGetColumns)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/reload", s.handleReload)
	admin.GET("/admin/job/:id", s.handleJobStatus)
	admin.GET("/runs", s.handleListRuns)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// current returns the cached dataset, loading it on first use.
func (s *Server) current(ctx context.Context) (*ingest.Dataset, error) {
	s.mu.RLock()
	ds := s.dataset
	s.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	s.mu.RLock()
	ds = s.dataset
	s.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}
	return s.loadLocked(ctx)
}

// reload always fetches a fresh dataset. On failure the previous one stays
// in place.
func (s *Server) reload(ctx context.Context) (*ingest.Dataset, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Server) loadLocked(ctx context.Context) (*ingest.Dataset, error) {
	ds, err := s.Loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.dataset = ds
	s.mu.Unlock()
	return ds, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type listResponse struct {
	Total    int                  `json:"total"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
	Columns  []string             `json:"columns"`
	LoadedAt time.Time            `json:"loaded_at"`
	Data     []models.Opportunity `json:"data"`
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	filters, err := parseFilters(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	limit := 20
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	ds, err := s.current(c.Request().Context())
	if err != nil {
		return loadErrorResponse(c, err)
	}

	matches := browse.Apply(ds.Table, filters...)
	resp := listResponse{
		Total:    len(matches),
		Limit:    limit,
		Offset:   offset,
		Columns:  ds.Table.Columns,
		LoadedAt: ds.LoadedAt,
		Data:     []models.Opportunity{},
	}
	if offset < len(matches) {
		end := offset + limit
		if end > len(matches) {
			end = len(matches)
		}
		for _, i := range matches[offset:end] {
			resp.Data = append(resp.Data, ingest.ToModel(i, ds.Table.Rows[i]))
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// parseFilters reads the list filters from the query string:
//
//	q=column:term         case-insensitive substring, repeatable
//	exact=column:value    exact match, repeated values for a column are OR'ed
//	tags=a,b              any of the tags
//	deadline_from, deadline_to  YYYY-MM-DD or MM/DD/YYYY
func parseFilters(c echo.Context) ([]browse.Filter, error) {
	var filters []browse.Filter
	params := c.QueryParams()

	for _, raw := range params["q"] {
		col, term, ok := strings.Cut(raw, ":")
		if !ok {
			return nil, fmt.Errorf("q must be column:term, got %q", raw)
		}
		filters = append(filters, browse.Contains(ingest.NormalizeColumnName(col), term))
	}

	exact := map[string][]string{}
	var exactOrder []string
	for _, raw := range params["exact"] {
		col, value, ok := strings.Cut(raw, ":")
		if !ok {
			return nil, fmt.Errorf("exact must be column:value, got %q", raw)
		}
		col = ingest.NormalizeColumnName(col)
		if _, seen := exact[col]; !seen {
			exactOrder = append(exactOrder, col)
		}
		exact[col] = append(exact[col], value)
	}
	for _, col := range exactOrder {
		filters = append(filters, browse.Exact(col, exact[col]...))
	}

	if v := c.QueryParam("tags"); v != "" {
		filters = append(filters, browse.Tags(splitCSV(v)...))
	}

	from, err := parseDateParam(c.QueryParam("deadline_from"))
	if err != nil {
		return nil, fmt.Errorf("deadline_from: %w", err)
	}
	to, err := parseDateParam(c.QueryParam("deadline_to"))
	if err != nil {
		return nil, fmt.Errorf("deadline_to: %w", err)
	}
	if !from.IsZero() || !to.IsZero() {
		filters = append(filters, browse.DeadlineBetween(from, to))
	}

	return filters, nil
}

func parseDateParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	if t := ingest.ParseDeadline(v); t != nil {
		return *t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", v)
}

// splitCSV splits a comma-separated query parameter into trimmed non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			result = append(result, p)
		}
	}
	return result
}

type detailResponse struct {
	Opportunity models.Opportunity `json:"opportunity"`
	Card        browse.DetailCard  `json:"card"`
	HTML        string             `json:"html"`
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "index must be a non-negative integer"})
	}

	ds, err := s.current(c.Request().Context())
	if err != nil {
		return loadErrorResponse(c, err)
	}
	if index >= len(ds.Table.Rows) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	row := ds.Table.Rows[index]
	card := browse.NewCard(ds.Table.Columns, row)
	return c.JSON(http.StatusOK, detailResponse{
		Opportunity: ingest.ToModel(index, row),
		Card:        card,
		HTML:        browse.RenderHTML(card),
	})
}

func (s *Server) handleGetTags(c echo.Context) error {
	ds, err := s.current(c.Request().Context())
	if err != nil {
		return loadErrorResponse(c, err)
	}
	tags := ds.Tags
	if tags == nil {
		tags = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"tags": tags})
}

func (s *Server) handleGetColumns(c echo.Context) error {
	ds, err := s.current(c.Request().Context())
	if err != nil {
		return loadErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"columns": ds.Table.Columns})
}

// handleReload replaces the cached dataset. With ?async=true the load runs in
// the background and the response carries a job id to poll.
func (s *Server) handleReload(c echo.Context) error {
	if c.QueryParam("async") != "true" {
		ds, err := s.reload(c.Request().Context())
		if err != nil {
			return loadErrorResponse(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"message":   "Reload complete",
			"rows":      len(ds.Table.Rows),
			"tags":      len(ds.Tags),
			"loaded_at": ds.LoadedAt,
		})
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := *s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{"error": "reload already running", "job": job})
	}
	job := &reloadJob{ID: uuid.NewString(), Status: "running", StartedAt: time.Now()}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		ds, err := s.reload(ctx)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Printf("[API] Background reload %s failed: %v", job.ID, err)
			return
		}
		job.Status = "completed"
		job.Rows = len(ds.Table.Rows)
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"job_id": job.ID, "status": "running"})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != c.Param("id") {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Rows > 0 {
		resp["rows"] = job.Rows
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRuns(c echo.Context) error {
	if s.Store == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run history is disabled"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := s.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		c.Logger().Errorf("Failed to list runs: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	if runs == nil {
		runs = []models.LoadRun{}
	}
	return c.JSON(http.StatusOK, runs)
}

// loadErrorResponse maps a failed load to 502 (504 on timeout) with the
// failing stage and error kind.
func loadErrorResponse(c echo.Context, err error) error {
	status := http.StatusBadGateway
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	body := map[string]interface{}{
		"error": err.Error(),
		"kind":  ingest.ErrorKind(err),
	}
	var se *ingest.StageError
	if errors.As(err, &se) {
		body["stage"] = se.Stage
		if se.StatusCode != 0 {
			body["upstream_status"] = se.StatusCode
		}
	}
	return c.JSON(status, body)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == s.adminSecret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") && authHeader[7:] == s.adminSecret {
			return next(c)
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

// resolveAdminSecret falls back to a random per-process secret so admin
// routes are never open.
func resolveAdminSecret(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
	}
	log.Print("[API] ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
