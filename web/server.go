// ABOUTME: HTTP adapter wrapping the conversation orchestrator behind a chi router.
// ABOUTME: Translates the chat envelope into turn invocations and maps errors to status codes.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/agent"
	"github.com/formpilot-ai/formpilot/formdef"
	"github.com/formpilot-ai/formpilot/session"
)

// Server wires the orchestrator, session store, and schema directory behind
// the JSON API.
type Server struct {
	orchestrator *agent.Orchestrator
	store        *session.Store
	schemasDir   string
	router       chi.Router
}

// NewServer builds the HTTP adapter. The orchestrator and store are shared
// across requests; per-session serialization lives in the store.
func NewServer(cfg Config, orchestrator *agent.Orchestrator, store *session.Store) *Server {
	s := &Server{
		orchestrator: orchestrator,
		store:        store,
		schemasDir:   cfg.SchemasDir,
	}
	s.router = s.buildRouter(cfg)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// buildRouter constructs the chi router with middleware and the API routes.
func (s *Server) buildRouter(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/schemas", s.handleSchemaList)
		r.Get("/schemas/{filename}", s.handleSchemaGet)
		r.Post("/sessions/reset", s.handleSessionReset)
		r.Get("/health", s.handleHealth)
	})
	return r
}

// chatRequest is the inbound chat envelope.
type chatRequest struct {
	FormContextMD  string             `json:"form_context_md"`
	UserMessage    string             `json:"user_message"`
	ConversationID string             `json:"conversation_id,omitempty"`
	ToolResults    []agent.ToolResult `json:"tool_results,omitempty"`
}

// chatResponse is the outbound chat envelope.
type chatResponse struct {
	Action         action.Action  `json:"action"`
	ConversationID string         `json:"conversation_id"`
	Answers        map[string]any `json:"answers"`
}

// handleChat runs one conversation turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}

	var sess *session.Session
	if req.ConversationID != "" {
		existing, ok := s.store.Get(req.ConversationID)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown conversation %q", req.ConversationID))
			return
		}
		sess = existing
	} else {
		if strings.TrimSpace(req.FormContextMD) == "" {
			writeError(w, http.StatusBadRequest, "form_context_md is required")
			return
		}
		created, err := s.store.Create(req.FormContextMD, "")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess = created
	}

	input := agent.TurnInput{
		UserMessage: req.UserMessage,
		ToolResults: req.ToolResults,
	}
	act, answers, err := sess.RunTurn(r.Context(), s.orchestrator, input)
	if err != nil {
		log.Printf("component=web action=turn_failed conversation=%s error=%v", sess.ID(), err)
		writeError(w, http.StatusInternalServerError, "conversation turn failed")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Action:         act,
		ConversationID: sess.ID(),
		Answers:        answers,
	})
}

// schemaInfo describes one servable form definition.
type schemaInfo struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Size     int64  `json:"size"`
}

// handleSchemaList enumerates the markdown form definitions in the schema
// directory.
func (s *Server) handleSchemaList(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.schemasDir)
	if err != nil {
		log.Printf("component=web action=schemas_dir_unreadable dir=%s error=%v", s.schemasDir, err)
		writeJSON(w, http.StatusOK, map[string]any{"schemas": []schemaInfo{}})
		return
	}

	schemas := []schemaInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(s.schemasDir, entry.Name()))
		if err != nil {
			continue
		}
		schemas = append(schemas, schemaInfo{
			Filename: entry.Name(),
			Title:    formdef.Parse(string(content)).Title,
			Size:     info.Size(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": schemas})
}

// handleSchemaGet serves one form definition by filename.
func (s *Server) handleSchemaGet(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename != filepath.Base(filename) || !strings.HasSuffix(filename, ".md") {
		writeError(w, http.StatusNotFound, "unknown schema")
		return
	}

	content, err := os.ReadFile(filepath.Join(s.schemasDir, filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "unknown schema")
			return
		}
		writeError(w, http.StatusInternalServerError, "reading schema failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"filename": filename,
		"content":  string(content),
	})
}

// handleSessionReset deletes a session so the client can start over.
func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == "" {
		writeError(w, http.StatusUnprocessableEntity, "conversation_id is required")
		return
	}

	if !s.store.Delete(req.ConversationID) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "session not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "session reset",
	})
}

// handleHealth reports liveness and the live session count.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.store.Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("component=web action=encode_failed error=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
