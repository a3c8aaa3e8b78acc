package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"sanitrack/internal/apperr"
	"sanitrack/internal/assignment"
	"sanitrack/internal/auth"
	"sanitrack/internal/models"
	"sanitrack/internal/policy"
)

const refreshCookie = "refreshToken"

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Auth
	api.Handle("/auth/register", s.limited(s.handleRegister)).Methods("POST")
	api.Handle("/auth/login", s.limited(s.handleLogin)).Methods("POST")
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods("POST")
	api.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	api.Handle("/auth/me", s.protected(s.handleMe)).Methods("GET")
	api.Handle("/auth/verify", s.protected(s.handleVerify)).Methods("GET")

	// Reports
	api.Handle("/reports", s.optional(s.handleCreateReport)).Methods("POST")
	api.Handle("/reports", s.protected(s.handleGetReports)).Methods("GET")
	api.Handle("/reports/my-reports", s.protected(s.handleMyReports)).Methods("GET")
	api.Handle("/reports/nearby", s.protected(s.handleNearbyReports)).Methods("GET")
	api.Handle("/reports/{id}", s.protected(s.handleGetReport)).Methods("GET")
	api.Handle("/reports/{id}", s.protected(s.handleUpdateReport, models.RoleWorker, models.RoleAdmin)).Methods("PATCH")
	api.Handle("/reports/{id}", s.protected(s.handleDeleteReport)).Methods("DELETE")
	api.Handle("/reports/{id}/assign", s.protected(s.handleAssignWorker, models.RoleAdmin)).Methods("POST")
	api.Handle("/reports/{id}/recommended-workers", s.protected(s.handleRecommendWorkers)).Methods("GET")

	// Emergency alerts
	api.Handle("/emergency", s.optional(s.handleCreateAlert)).Methods("POST")
	api.Handle("/emergency", s.protected(s.handleGetAlerts)).Methods("GET")
	api.Handle("/emergency/nearby", s.protected(s.handleNearbyAlerts)).Methods("GET")
	api.Handle("/emergency/{id}", s.protected(s.handleGetAlert)).Methods("GET")
	api.Handle("/emergency/{id}/resolve", s.protected(s.handleResolveAlert, models.RoleWorker, models.RoleAdmin)).Methods("PATCH")
	api.Handle("/emergency/{id}", s.protected(s.handleDeleteAlert, models.RoleAdmin)).Methods("DELETE")

	// Workers
	api.Handle("/workers", s.protected(s.handleGetWorkers)).Methods("GET")
	api.Handle("/workers/me", s.protected(s.handleMyWorker, models.RoleWorker)).Methods("GET")
	api.Handle("/workers/{id}", s.protected(s.handleGetWorker)).Methods("GET")
	api.Handle("/workers/{id}/stats", s.protected(s.handleWorkerStats)).Methods("GET")
	api.Handle("/workers/{id}/status", s.protected(s.handleUpdateWorkerStatus)).Methods("PATCH")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, Response{Message: "route " + r.Method + " " + r.URL.Path + " not found"})
	})
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

// fail maps err to its status code. Internal errors are logged and their
// detail is only shown in development.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, kind.HTTPStatus(), Response{Message: apperr.PublicMessage(err, s.cfg.Development())})
}

// decode reads a JSON body into v. An empty body is allowed when
// optional is set.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return apperr.Validation("invalid request body")
}

func identity(r *http.Request) *models.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return n, nil
}

// queryFloat returns the first non-empty parameter among keys.
func queryFloat(r *http.Request, keys ...string) (float64, bool, error) {
	q := r.URL.Query()
	for _, key := range keys {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false, apperr.Validation("%s must be a number", key)
		}
		return f, true, nil
	}
	return 0, false, nil
}

func pagination(r *http.Request) (models.Pagination, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return models.Pagination{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return models.Pagination{}, err
	}
	return models.Pagination{Page: page, Limit: limit}, nil
}

func nearbyInput(r *http.Request) (assignment.NearbyInput, error) {
	lng, hasLng, err := queryFloat(r, "lng", "longitude")
	if err != nil {
		return assignment.NearbyInput{}, err
	}
	lat, hasLat, err := queryFloat(r, "lat", "latitude")
	if err != nil {
		return assignment.NearbyInput{}, err
	}
	if !hasLng || !hasLat {
		return assignment.NearbyInput{}, apperr.Validation("longitude and latitude are required")
	}
	radius, _, err := queryFloat(r, "radius", "maxDistance")
	if err != nil {
		return assignment.NearbyInput{}, err
	}
	return assignment.NearbyInput{Lng: lng, Lat: lat, RadiusMeters: radius}, nil
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/api/auth",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   !s.cfg.Development(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !s.cfg.Development(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, Response{Message: "storage unavailable"})
		return
	}
	respond(w, http.StatusOK, "", map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// Auth

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decode(r, &in, false); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.setRefreshCookie(w, res.RefreshToken, res.Session.ExpiresAt)
	respond(w, http.StatusCreated, "Registration successful", res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.auth.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.setRefreshCookie(w, res.RefreshToken, res.Session.ExpiresAt)
	respond(w, http.StatusOK, "Login successful", res)
}

// refreshToken takes the token from the cookie, falling back to the body.
func refreshToken(r *http.Request) (string, error) {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	var req RefreshRequest
	if err := decode(r, &req, true); err != nil {
		return "", err
	}
	return req.RefreshToken, nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, err := refreshToken(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if token == "" {
		s.fail(w, r, apperr.Authentication("no refresh token provided"))
		return
	}

	access, err := s.auth.Refresh(r.Context(), token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", TokenResponse{AccessToken: access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := refreshToken(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.fail(w, r, err)
		return
	}

	s.clearRefreshCookie(w)
	respond(w, http.StatusOK, "Logout successful", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, err := s.auth.Me(r.Context(), identity(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", UserResponse{User: acct})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "Token is valid", UserResponse{User: identity(r)})
}

// Reports

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var in models.NewReport
	if err := decode(r, &in, false); err != nil {
		s.fail(w, r, err)
		return
	}

	report, err := s.incidents.CreateReport(r.Context(), identity(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Report created successfully", report)
}

func reportQuery(r *http.Request) (models.ReportQuery, error) {
	p, err := pagination(r)
	if err != nil {
		return models.ReportQuery{}, err
	}
	q := r.URL.Query()
	return models.ReportQuery{
		Status:     models.ReportStatus(q.Get("status")),
		Priority:   models.Priority(q.Get("priority")),
		Category:   models.Category(q.Get("category")),
		SortBy:     models.ReportSortField(q.Get("sortBy")),
		Order:      models.SortOrder(q.Get("order")),
		Pagination: p,
	}, nil
}

func (s *Server) handleGetReports(w http.ResponseWriter, r *http.Request) {
	q, err := reportQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.incidents.ListReports(r.Context(), identity(r), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", page)
}

func (s *Server) handleMyReports(w http.ResponseWriter, r *http.Request) {
	q, err := reportQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.incidents.MyReports(r.Context(), identity(r), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", page)
}

func (s *Server) handleNearbyReports(w http.ResponseWriter, r *http.Request) {
	in, err := nearbyInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	reports, err := s.engine.NearbyReports(r.Context(), identity(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", reports)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.incidents.GetReport(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", report)
}

func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	var patch models.ReportPatch
	if err := decode(r, &patch, false); err != nil {
		s.fail(w, r, err)
		return
	}

	report, err := s.incidents.UpdateReport(r.Context(), identity(r), mux.Vars(r)["id"], patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Report updated successfully", report)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.incidents.DeleteReport(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Report deleted successfully", nil)
}

func (s *Server) handleAssignWorker(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}

	report, err := s.engine.Assign(r.Context(), identity(r), mux.Vars(r)["id"], req.WorkerID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Worker assigned successfully", report)
}

func (s *Server) handleRecommendWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.engine.RecommendWorkers(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", workers)
}

// Emergency alerts

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var in models.NewAlert
	if err := decode(r, &in, false); err != nil {
		s.fail(w, r, err)
		return
	}

	alert, err := s.incidents.CreateAlert(r.Context(), identity(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Emergency alert created", alert)
}

func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	p, err := pagination(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := models.AlertQuery{
		Status:     models.AlertStatus(r.URL.Query().Get("status")),
		Severity:   models.Severity(r.URL.Query().Get("severity")),
		Pagination: p,
	}

	page, err := s.incidents.ListAlerts(r.Context(), identity(r), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", page)
}

func (s *Server) handleNearbyAlerts(w http.ResponseWriter, r *http.Request) {
	in, err := nearbyInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	alerts, err := s.engine.NearbyAlerts(r.Context(), identity(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", alerts)
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := s.incidents.GetAlert(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", alert)
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := s.incidents.ResolveAlert(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Emergency alert resolved", alert)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.incidents.DeleteAlert(r.Context(), identity(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Emergency alert deleted", nil)
}

// Workers

func (s *Server) handleGetWorkers(w http.ResponseWriter, r *http.Request) {
	p, err := pagination(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := models.WorkerQuery{
		Status:     models.WorkerStatus(r.URL.Query().Get("status")),
		Zone:       r.URL.Query().Get("zone"),
		Pagination: p,
	}

	page, err := s.engine.ListWorkers(r.Context(), identity(r), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", page)
}

func (s *Server) handleMyWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := s.engine.MyWorker(r.Context(), identity(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", worker)
}

func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := s.engine.GetWorker(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", worker)
}

func (s *Server) handleWorkerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.WorkerStats(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", stats)
}

func (s *Server) handleUpdateWorkerStatus(w http.ResponseWriter, r *http.Request) {
	var req WorkerStatusRequest
	if err := decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}

	worker, err := s.engine.UpdateWorkerStatus(r.Context(), identity(r), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Worker status updated", worker)
}

// Live feed

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	id, err := s.auth.Verify(token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := policy.Check(id, policy.MonitorIncidents, policy.Resource{}); err != nil {
		s.fail(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		account: id.AccountID,
	}

	if !client.hub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
