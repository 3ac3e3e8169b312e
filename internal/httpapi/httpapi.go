package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mesapos/backend/internal/domain"
	"mesapos/backend/internal/ledger"
	"mesapos/backend/internal/service"
)

const queryDateLayout = "2006-01-02"

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
	log           logrus.FieldLogger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, log logrus.FieldLogger) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
		log:           log.WithField("component", "httpapi"),
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, domain.RoleStaff, domain.RoleManager))
	mux.HandleFunc("/api/v1/analytics", a.requireAuth(a.handleAnalytics, domain.RoleManager))
	mux.HandleFunc("/api/v1/suggestions", a.requireAuth(a.handleSuggestions, domain.RoleStaff, domain.RoleManager))
	mux.HandleFunc("/api/v1/sync", a.requireAuth(a.handleSync, domain.RoleManager))
	mux.HandleFunc("/api/v1/sync/requeue", a.requireAuth(a.handleSyncRequeue, domain.RoleManager))
	mux.HandleFunc("/api/v1/sync/status", a.requireAuth(a.handleSyncStatus, domain.RoleStaff, domain.RoleManager))
	mux.HandleFunc("/api/v1/tables", a.requireAuth(a.handleTables, domain.RoleStaff, domain.RoleManager))
	mux.HandleFunc("/api/v1/tables/", a.requireAuth(a.handleTableActions, domain.RoleManager))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths are called before a client can have fetched a token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces a CSRF token on state-changing methods.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req domain.RecordSaleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		sale, err := a.service.RecordSale(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, domain.RecordSaleResponse{Sale: sale})
	case http.MethodGet:
		sel, err := parseSelection(r, a.service.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		resp, err := a.service.ListSales(r.Context(), sel)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		if limit := parsePositiveLimit(r.URL.Query().Get("limit"), 0, 1000); limit > 0 && len(resp.Sales) > limit {
			resp.Sales = resp.Sales[:limit]
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		actor, ok := service.ActorFromContext(r.Context())
		if !ok || actor.Role != domain.RoleManager {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}
		if !a.pinLimiter.Allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many pin attempts"))
			return
		}
		if !a.auth.ValidateManagerPIN(r.Header.Get("X-Manager-PIN")) {
			writeError(w, http.StatusForbidden, errors.New("manager pin required"))
			return
		}

		if err := a.service.ClearAll(r.Context()); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	sel, err := parseSelection(r, a.service.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.Analytics(r.Context(), sel)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "csv":
		body, err := analyticsToCSV(resp.Snapshot)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"analytics-%s.csv\"", resp.Snapshot.Period))
		_, _ = w.Write(body)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (a *API) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SuggestionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.Suggest(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	report, err := a.service.ManualSync(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"report": report})
	case errors.Is(err, service.ErrOffline):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "report": report})
	case errors.Is(err, service.ErrSyncIncomplete):
		writeJSON(w, http.StatusOK, map[string]any{"report": report, "warning": err.Error()})
	default:
		a.writeServiceError(w, err)
	}
}

func (a *API) handleSyncRequeue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	requeued, err := a.service.RequeueAbandoned(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requeued": requeued})
}

func (a *API) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	status, err := a.service.SyncStatus(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	tables, err := a.service.TableNames(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (a *API) handleTableActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/tables/"), "/")
	number, err := strconv.Atoi(raw)
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, errors.New("invalid table number"))
		return
	}

	var req domain.TableNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	table, err := a.service.SetTableName(r.Context(), number, req.Name)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table})
}

// writeServiceError maps service and storage errors to HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSale), errors.Is(err, service.ErrInvalidTable), errors.Is(err, service.ErrInvalidSuggestion):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, service.ErrOffline):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
	case errors.Is(err, ledger.ErrCorrupt):
		a.log.WithError(err).Error("local sales data is corrupt")
		writeError(w, http.StatusInternalServerError, err)
	default:
		a.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, X-Manager-PIN")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(startedAt).String(),
		}).Info("request")
	})
}

// parseSelection reads period, start and end (YYYY-MM-DD, in loc).
func parseSelection(r *http.Request, loc *time.Location) (domain.Selection, error) {
	query := r.URL.Query()
	period, err := domain.ParsePeriod(query.Get("period"))
	if err != nil {
		return domain.Selection{}, err
	}
	sel := domain.Selection{Period: period}

	parse := func(key string) (*time.Time, error) {
		raw := strings.TrimSpace(query.Get(key))
		if raw == "" {
			return nil, nil
		}
		at, err := time.ParseInLocation(queryDateLayout, raw, loc)
		if err != nil {
			return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
		}
		return &at, nil
	}
	if sel.CustomStart, err = parse("start"); err != nil {
		return domain.Selection{}, err
	}
	if sel.CustomEnd, err = parse("end"); err != nil {
		return domain.Selection{}, err
	}
	return sel, nil
}

func analyticsToCSV(snap domain.AnalyticsSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	out := csv.NewWriter(&buf)

	money := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "period", string(snap.Period)},
		{"summary", "total_sales", money(snap.TotalSales)},
		{"summary", "total_tickets", strconv.Itoa(snap.TotalTickets)},
		{"summary", "total_items", strconv.Itoa(snap.TotalItems)},
		{"summary", "avg_ticket", money(snap.AvgTicket)},
		{"summary", "avg_items_per_ticket", money(snap.AvgItemsPerTicket)},
		{"summary", "highest_daily_sale", snap.HighestDailySale.Date + " " + money(snap.HighestDailySale.Amount)},
		{"summary", "lowest_daily_sale", snap.LowestDailySale.Date + " " + money(snap.LowestDailySale.Amount)},
		{"summary", "best_selling_day", snap.BestSellingDay.Day + " " + money(snap.BestSellingDay.Amount)},
		{"summary", "sales_growth_pct", money(snap.SalesGrowth)},
		{"summary", "items_growth_pct", money(snap.ItemsGrowth)},
	}
	for _, day := range snap.DailyData {
		rows = append(rows, []string{"daily", day.Key, money(day.Sales)})
	}
	for _, item := range snap.MostPopularItems {
		rows = append(rows, []string{"popular_item", item.Name, strconv.Itoa(item.Quantity)})
	}
	for _, item := range snap.TopRevenueItems {
		rows = append(rows, []string{"revenue_item", item.Name, money(item.Revenue)})
	}
	for _, category := range snap.CategoryData {
		rows = append(rows, []string{"category", category.Name, money(category.Amount)})
	}
	for _, hour := range snap.HourlyData {
		rows = append(rows, []string{"hourly", hour.Hour, money(hour.Sales)})
	}

	if err := out.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides the message of 5xx responses; callers log the cause.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
