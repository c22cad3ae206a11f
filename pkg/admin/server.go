// Package admin serves the staff panel used to edit the menu of the day.
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"concierge/pkg/bus"
	"concierge/pkg/catalog"
)

const (
	maxBodyBytes    = 64 << 10
	updatedMessage  = "Menús actualizados correctamente"
	missingMessage  = "Desayuno, almuerzo y cena son obligatorios"
	malformedFormat = "No se pudo leer la solicitud: %v"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/admin.html"))

// Catalog is the part of the content catalog the panel reads and edits.
type Catalog interface {
	Snapshot() catalog.Content
	UpdateMeals(breakfast, lunch, dinner string) error
}

// Server is the admin HTTP surface.
type Server struct {
	addr      string
	hotelName string
	content   Catalog
	events    *bus.Bus
	log       *slog.Logger
}

type mealsRequest struct {
	Breakfast string `json:"breakfast"`
	Lunch     string `json:"lunch"`
	Dinner    string `json:"dinner"`
}

type mealsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type pageData struct {
	HotelName string
	Content   catalog.Content
}

// New builds the admin server. events may be nil.
func New(addr, hotelName string, content Catalog, events *bus.Bus, log *slog.Logger) (*Server, error) {
	if content == nil {
		return nil, errors.New("catalog is required")
	}
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("admin address is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		addr:      addr,
		hotelName: hotelName,
		content:   content,
		events:    events,
		log:       log.With("component", "admin.server"),
	}, nil
}

// Handler returns the router with all admin routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/", s.handlePage)
	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Post("/meals", s.handleUpdateMeals)
	})

	return r
}

// Run serves the panel until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Admin panel started", "address", s.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start admin server: %w", err)
	}

	return nil
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{HotelName: s.hotelName, Content: s.content.Snapshot()}
	if err := pageTemplate.Execute(w, data); err != nil {
		s.log.Error("Failed to render admin page", "error", err)
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.content.Snapshot())
}

func (s *Server) handleUpdateMeals(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	req, err := decodeMeals(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, mealsResponse{Message: fmt.Sprintf(malformedFormat, err)})
		return
	}

	if err := s.content.UpdateMeals(req.Breakfast, req.Lunch, req.Dinner); err != nil {
		if errors.Is(err, catalog.ErrIncompleteMeals) {
			s.writeJSON(w, http.StatusBadRequest, mealsResponse{Message: missingMessage})
			return
		}
		s.log.Error("Failed to update meals", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, mealsResponse{Message: err.Error()})
		return
	}

	s.log.Info("Meals updated", "request_id", middleware.GetReqID(r.Context()))
	s.events.Publish(r.Context(), bus.Event{
		Type:      bus.EventCatalogUpdated,
		RequestID: middleware.GetReqID(r.Context()),
		Payload:   map[string]string{bus.PayloadSource: "admin"},
	})

	s.writeJSON(w, http.StatusOK, mealsResponse{Success: true, Message: updatedMessage})
}

// decodeMeals accepts either a JSON body or an HTML form post.
func decodeMeals(r *http.Request) (mealsRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req mealsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return mealsRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return mealsRequest{}, err
	}

	return mealsRequest{
		Breakfast: r.PostForm.Get("breakfast"),
		Lunch:     r.PostForm.Get("lunch"),
		Dinner:    r.PostForm.Get("dinner"),
	}, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to write response", "error", err)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Debug("Admin request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
