package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mailtriage/mailtriage/accounts"
	"github.com/mailtriage/mailtriage/internal/config"
	"github.com/mailtriage/mailtriage/internal/logger"
	"github.com/mailtriage/mailtriage/rules"
)

// Server wires the account manager and engine layer to the HTTP API the
// dashboard UI talks to.
type Server struct {
	db      *sql.DB
	cfg     config.Config
	manager *accounts.Manager
	router  *chi.Mux
}

// NewServer builds a server over the given provider. db may be nil when the
// provider is not database-backed (tests).
func NewServer(cfg config.Config, db *sql.DB, provider accounts.StoreProvider) (*Server, error) {
	manager := accounts.NewManager(provider)

	if err := manager.LoadAllAccounts(); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	logger.Info("accounts loaded", "count", len(manager.ListAccounts()))

	s := &Server{
		db:      db,
		cfg:     cfg,
		manager: manager,
	}
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/v1/catalog/conditions", s.handleConditionCatalog)
	r.Get("/api/v1/catalog/actions", s.handleActionCatalog)

	r.Route("/api/v1/accounts", func(r chi.Router) {
		r.Get("/", s.handleListAccounts)
		r.Post("/", s.handleCreateAccount)

		r.Route("/{accountId}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteAccount)
			r.Put("/settings", s.handleUpdateSettings)

			r.Post("/rules", s.handleCreateRule)
			r.Get("/rules", s.handleListRules)
			r.Get("/rules/export", s.handleExportRules)
			r.Post("/rules/import", s.handleImportRules)
			r.Get("/rules/{ruleId}", s.handleGetRule)
			r.Put("/rules/{ruleId}", s.handleUpdateRule)
			r.Delete("/rules/{ruleId}", s.handleDeleteRule)

			r.Post("/process", s.handleProcess)

			r.Get("/debug-log", s.handleDebugLog)
			r.Delete("/debug-log", s.handleClearDebugLog)

			r.Get("/scores/{sender}", s.handleGetScore)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"accountsLoaded": len(s.manager.ListAccounts()),
	})
}

func (s *Server) handleConditionCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"conditionTypes": rules.ConditionTypes()})
}

func (s *Server) handleActionCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"actionTypes": rules.ActionTypes()})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"accounts": s.manager.ListAccounts()})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	settings := s.defaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	account, err := s.manager.CreateAccount(req.Name, req.EmailAddress, settings)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create account", err)
		return
	}

	respondJSON(w, http.StatusCreated, account)
}

func (s *Server) defaultSettings() accounts.Settings {
	timeout := config.ParseDuration(s.cfg.Engine.ScriptTimeout, rules.DefaultScriptTimeout)
	return accounts.Settings{
		DebugMode:          s.cfg.Engine.DebugMode,
		DebugRetentionDays: s.cfg.Engine.DebugRetentionDays,
		ScriptTimeoutMs:    int(timeout.Milliseconds()),
	}
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	if err := s.manager.DeleteAccount(accountID); err != nil {
		respondError(w, http.StatusNotFound, "account not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	account, err := s.manager.UpdateSettings(accountID, req.Settings)
	if err != nil {
		respondError(w, http.StatusNotFound, "failed to update settings", err)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) (*accounts.AccountEngine, bool) {
	accountID := chi.URLParam(r, "accountId")
	ae, err := s.manager.Get(accountID)
	if err != nil {
		respondError(w, http.StatusNotFound, "account not found", err)
		return nil, false
	}
	return ae, true
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	var req SaveRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule := ruleFromRequest(&req)
	rule.ID = uuid.NewString()
	fillComponentIDs(rule)

	if err := ae.Engine.AddRule(rule); err != nil {
		respondError(w, http.StatusBadRequest, "failed to add rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

func ruleFromRequest(req *SaveRuleRequest) *rules.Rule {
	return &rules.Rule{
		Name:          req.Name,
		Description:   req.Description,
		Enabled:       req.Enabled,
		Conditions:    req.Conditions,
		LogicOperator: req.LogicOperator,
		Actions:       req.Actions,
	}
}

// fillComponentIDs assigns IDs to conditions and actions the editor sent
// without one.
func fillComponentIDs(rule *rules.Rule) {
	for i := range rule.Conditions {
		if rule.Conditions[i].ID == "" {
			rule.Conditions[i].ID = uuid.NewString()
		}
	}
	for i := range rule.Actions {
		if rule.Actions[i].ID == "" {
			rule.Actions[i].ID = uuid.NewString()
		}
	}
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	ruleList, err := ae.Rules.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"rules": ruleList})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	rule, err := ae.Rules.Get(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	var req SaveRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule := ruleFromRequest(&req)
	rule.ID = chi.URLParam(r, "ruleId")
	fillComponentIDs(rule)

	if err := ae.Engine.UpdateRule(rule); err != nil {
		respondError(w, http.StatusBadRequest, "failed to update rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	if err := ae.Engine.DeleteRule(chi.URLParam(r, "ruleId")); err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Email.ID == "" {
		respondError(w, http.StatusBadRequest, "email.id is required", nil)
		return
	}

	sender := rules.ParseSender(req.Email.From)
	score, err := ae.Scores.Get(sender.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load sender score", err)
		return
	}

	ec := rules.BuildContext(req.Email, score)
	recorder := newEffectRecorder(ae.Scores)

	result, entry, err := ae.Engine.ProcessEmail(ec, recorder)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "processing failed", err)
		return
	}

	resp := ProcessResponse{
		Result:  result,
		Effects: recorder.effects,
		Logs:    recorder.logs,
	}
	if resp.Effects == nil {
		resp.Effects = []Effect{}
	}

	if ae.Account.Settings.DebugMode {
		if err := ae.DebugLog.Append(entry); err != nil {
			logger.Error("failed to append debug log entry",
				"account", ae.Account.ID, "error", err)
		} else {
			resp.DebugEntryID = entry.ID
			resp.DebugEntry = entry
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDebugLog(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	limit := s.cfg.Engine.DebugLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := ae.DebugLog.List(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list debug log", err)
		return
	}
	if entries == nil {
		entries = []*rules.DebugLogEntry{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleClearDebugLog(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	if err := ae.DebugLog.Clear(); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear debug log", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportRules(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	doc, err := rules.Export(ae.Rules)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "export failed", err)
		return
	}

	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleImportRules(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	var req ImportRequest
	document := body
	regenerate := false
	if err := json.Unmarshal(body, &req); err == nil && req.Document != nil {
		document, err = json.Marshal(req.Document)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid import document", err)
			return
		}
		regenerate = req.RegenerateIDs
	}

	imported, err := rules.Import(ae.Engine, document, regenerate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "import failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"imported": imported})
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	ae, ok := s.account(w, r)
	if !ok {
		return
	}

	sender := chi.URLParam(r, "sender")
	score, err := ae.Scores.Get(sender)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get sender score", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"sender": sender, "score": score})
}

// startRetentionLoop purges debug logs on the configured interval until ctx
// is cancelled.
func (s *Server) startRetentionLoop(ctx context.Context) {
	interval := config.ParseDuration(s.cfg.Engine.PurgeInterval, time.Hour)
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := s.manager.PurgeDebugLogs(time.Now())
				if removed > 0 {
					logger.Info("debug log retention purge", "removed", removed)
				}
			}
		}
	}()
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{"error": message}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.toml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	if level, err := logger.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	if cfg.Database.URL == "" {
		logger.Fatal("database URL is required (config [database].url or DATABASE_URL)")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to open database", "error", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}

	server, err := NewServer(cfg, db, accounts.NewPostgresProvider(db))
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.startRetentionLoop(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server,
		ReadTimeout:  config.ParseDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.ParseDuration(cfg.Server.WriteTimeout, 15*time.Second),
		IdleTimeout:  config.ParseDuration(cfg.Server.IdleTimeout, 60*time.Second),
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
