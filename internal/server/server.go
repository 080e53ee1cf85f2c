package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"readaloud/internal/app"
	"readaloud/internal/ratelimit"
	"readaloud/internal/util"
	"readaloud/pkg/ai"
	"readaloud/pkg/library"
	"readaloud/pkg/storage"
	"readaloud/pkg/tts"
)

const maxUploadBytes = 16 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App     *app.App
	Limiter *ratelimit.Limiter
	Proxies *util.TrustedProxies
}

// Server exposes the HTTP API for the reading library.
type Server struct {
	app     *app.App
	limiter *ratelimit.Limiter
	proxies *util.TrustedProxies
	mux     *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:     cfg.App,
		limiter: cfg.Limiter,
		proxies: cfg.Proxies,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// synthesis
	s.mux.HandleFunc("/api/voices", s.handleVoices)
	s.mux.HandleFunc("/api/generate", s.handleGenerate)
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/api/download/", s.handleDownload)
	s.mux.HandleFunc("/api/play/", s.handlePlay)

	// library
	s.mux.HandleFunc("/api/library/chapters", s.handleChapters)
	s.mux.HandleFunc("/api/library/chapter/", s.handleChapterByID)
	s.mux.HandleFunc("/api/library/progress/", s.handleProgress)

	// ai chat
	s.mux.HandleFunc("/api/ai/settings", s.handleAISettings)
	s.mux.HandleFunc("/api/ai/test", s.handleAITest)
	s.mux.HandleFunc("/api/chat/history/", s.handleChatHistory)
	s.mux.HandleFunc("/api/chat/message", s.handleChatMessage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"voices":  s.app.Voices(),
		"default": tts.DefaultVoice,
	})
}

type generateRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, "too many synthesis requests") {
		return
	}
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	filename, err := s.app.Synthesize(r.Context(), req.Text, req.Voice, req.Speed)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"filename":     filename,
		"download_url": "/api/download/" + filename,
		"play_url":     "/api/play/" + filename,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	text, err := app.ImportText(header.Filename, file)
	if err != nil {
		if errors.Is(err, app.ErrNoTextExtracted) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "could not extract text from file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"filename": header.Filename,
		"text":     text,
	})
}

func (s *Server) serveAudio(w http.ResponseWriter, r *http.Request, prefix string, attachment bool) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	filename := strings.TrimPrefix(r.URL.Path, prefix)
	if filename == "" || strings.Contains(filename, "/") {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	rc, err := s.app.OpenAudio(r.Context(), filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "audio not found")
			return
		}
		writeAppError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "audio/mpeg")
	if attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("audio stream interrupted", "filename", filename, "error", err)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveAudio(w, r, "/api/download/", true)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.serveAudio(w, r, "/api/play/", false)
}

type createChapterRequest struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Voice   string  `json:"voice"`
	Speed   float64 `json:"speed"`
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"chapters": s.app.Chapters()})
	case http.MethodPost:
		if !s.allowRate(w, r, "too many synthesis requests") {
			return
		}
		var req createChapterRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		chapter, err := s.app.CreateChapter(r.Context(), req.Title, req.Content, req.Voice, req.Speed)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, chapter)
	default:
		methodNotAllowed(w)
	}
}

type updateChapterRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleChapterByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/library/chapter/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid chapter id")
		return
	}
	switch r.Method {
	case http.MethodGet:
		chapter, progress, err := s.app.Chapter(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"chapter":  chapter,
			"progress": progress,
		})
	case http.MethodPatch:
		var req updateChapterRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		chapter, err := s.app.UpdateChapter(id, req.Title, req.Content)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chapter)
	case http.MethodDelete:
		if err := s.app.DeleteChapter(r.Context(), id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

type progressRequest struct {
	CurrentTime float64 `json:"current_time"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/library/progress/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid chapter id")
		return
	}
	var req progressRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.UpdateProgress(id, req.CurrentTime); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type aiSettingsRequest struct {
	APIURL string `json:"api_url"`
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

func (s *Server) handleAISettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.app.AISettings())
	case http.MethodPost:
		var req aiSettingsRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		masked, err := s.app.SaveAISettings(req.APIURL, req.APIKey, req.Model)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, masked)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAITest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req aiSettingsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	check, err := s.app.TestAI(r.Context(), req.APIURL, req.APIKey, req.Model)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"preview":     check.Preview,
		"duration_ms": check.Duration.Milliseconds(),
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/chat/history/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid chapter id")
		return
	}
	switch r.Method {
	case http.MethodGet:
		history, err := s.app.ChatHistory(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if history == nil {
			history = []library.ChatTurn{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": history})
	case http.MethodDelete:
		if err := s.app.ClearChatHistory(id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		methodNotAllowed(w)
	}
}

type chatMessageRequest struct {
	ChapterID string `json:"chapter_id"`
	Message   string `json:"message"`
	Stream    bool   `json:"stream"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, "too many chat requests") {
		return
	}
	var req chatMessageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !req.Stream {
		reply, err := s.app.ChatMessage(r.Context(), req.ChapterID, req.Message, nil)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
		return
	}
	s.streamChatMessage(w, r, req)
}

// streamChatMessage relays upstream deltas to the client as SSE data frames.
// Headers go out before the first upstream byte, so failures after that point
// are reported in-band as an error event.
func (s *Server) streamChatMessage(w http.ResponseWriter, r *http.Request, req chatMessageRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(delta string) error {
		payload, err := json.Marshal(map[string]string{"content": delta})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_, err := s.app.ChatMessage(r.Context(), req.ChapterID, req.Message, emit)
	if err != nil && !errors.Is(err, ai.ErrStreamAborted) {
		payload, merr := json.Marshal(map[string]string{"error": userMessage(err)})
		if merr == nil {
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
		}
		flusher.Flush()
		return
	}
	if errors.Is(err, ai.ErrStreamAborted) {
		slog.Warn("chat stream aborted upstream", "chapter_id", req.ChapterID)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// userMessage maps an application error to the message shown to clients.
func userMessage(err error) string {
	var upstream *ai.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Error()
	}
	return err.Error()
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, library.ErrChapterNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrTitleRequired),
		errors.Is(err, app.ErrContentRequired),
		errors.Is(err, app.ErrMessageRequired),
		errors.Is(err, app.ErrUnsupportedVoice),
		errors.Is(err, app.ErrAIConfigMissing),
		errors.Is(err, app.ErrAIConfigIncomplete):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		var synthErr *tts.SynthesisError
		var segErr *tts.SegmentError
		var upstreamErr *ai.UpstreamError
		if errors.As(err, &synthErr) || errors.As(err, &segErr) || errors.As(err, &upstreamErr) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// allowRate keys the limiter by path and resolved client IP. A nil limiter
// allows everything.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.proxies)
	if s.limiter.Allow(key) {
		return true
	}
	slog.Warn("rate limited", "path", r.URL.Path, "ip", util.ClientIP(r, s.proxies))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
