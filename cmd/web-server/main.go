// CABSFlight Web Server
// Serves the live campus bus map API: REST endpoints for routes and
// preferences plus a WebSocket feed of animation frames.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/fusiondrive/CABSFlight/internal/db"
	"github.com/fusiondrive/CABSFlight/pkg/config"
	"github.com/fusiondrive/CABSFlight/pkg/tracking"
	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	port       = flag.String("port", "", "HTTP server port (overrides config)")
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	router  *chi.Mux
	session *tracking.Session
	hub     *frameHub
	prefs   *db.PreferenceRepository
	cfg     *config.Config
}

func main() {
	flag.Parse()

	log.Println("Starting CABSFlight web server...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Preferences are optional; the live map works without a database
	var prefs *db.PreferenceRepository
	if database, err := db.Connect(cfg.Database); err != nil {
		log.Printf("Warning: preferences unavailable, running without database: %v", err)
	} else {
		defer database.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := database.InitSchema(ctx); err != nil {
			log.Printf("Warning: schema init failed: %v", err)
		}
		cancel()
		prefs = db.NewPreferenceRepository(database.DB)
		log.Println("Connected to preferences database")
	}

	hub := newFrameHub()
	go hub.run()

	source := transit.NewClient(cfg.Feed.BaseURL, cfg.Feed.RequestsPerSecond)
	session := tracking.NewSession(source, tracking.Options{
		PollInterval:       cfg.Feed.PollInterval(),
		TransitionDuration: cfg.Animation.TransitionDuration(),
		FrameInterval:      cfg.Animation.FrameInterval(),
		OnFrame:            hub.publish,
	})
	defer session.Close()

	srv := &Server{
		router:  chi.NewRouter(),
		session: session,
		hub:     hub,
		prefs:   prefs,
		cfg:     cfg,
	}
	srv.setupRoutes()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://%s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))

	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/routes", s.handleGetRoutes)
		r.Get("/routes/selected", s.handleGetSelectedRoute)
		r.Post("/routes/{code}/select", s.handleSelectRoute)

		r.Get("/vehicles", s.handleGetVehicles)

		r.Post("/tracking/start", s.handleStartTracking)
		r.Post("/tracking/stop", s.handleStopTracking)

		r.Get("/favorites", s.handleGetFavorites)
		r.Post("/favorites/{code}", s.handleAddFavorite)
		r.Delete("/favorites/{code}", s.handleRemoveFavorite)

		r.Get("/system/status", s.handleGetSystemStatus)

		r.Get("/ws", s.handleWebSocket)
	})
}

// handleGetRoutes returns the route list, loading it on first use.
func (s *Server) handleGetRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.session.LoadRoutes(r.Context())
	if err != nil {
		log.Printf("Error loading routes: %v", err)
		http.Error(w, "Failed to load routes", http.StatusBadGateway)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"routes": routes,
		"count":  len(routes),
	})
}

func (s *Server) handleGetSelectedRoute(w http.ResponseWriter, r *http.Request) {
	route := s.session.SelectedRoute()
	if route == nil {
		http.Error(w, "No route selected", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, route)
}

// handleSelectRoute switches the tracked route and remembers it as the
// rider's last selection.
func (s *Server) handleSelectRoute(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := s.session.SelectRoute(r.Context(), code); err != nil {
		log.Printf("Error selecting route %s: %v", code, err)
		http.Error(w, "Failed to select route", http.StatusBadGateway)
		return
	}

	if s.prefs != nil {
		if err := s.prefs.SetLastRoute(r.Context(), code); err != nil {
			log.Printf("Error recording last route: %v", err)
		}
	}

	respondJSON(w, http.StatusOK, s.session.SelectedRoute())
}

// handleGetVehicles returns the current animation frame together with the
// latest fetch status.
func (s *Server) handleGetVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles := s.session.Displayed()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"vehicles": vehicles,
		"count":    len(vehicles),
		"error":    s.session.Err(),
	})
}

func (s *Server) handleStartTracking(w http.ResponseWriter, r *http.Request) {
	if err := s.session.StartTracking(r.Context()); err != nil {
		log.Printf("Error starting tracking: %v", err)
		http.Error(w, "Failed to start tracking", http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tracking": true})
}

func (s *Server) handleStopTracking(w http.ResponseWriter, r *http.Request) {
	s.session.StopTracking()
	respondJSON(w, http.StatusOK, map[string]interface{}{"tracking": false})
}

// Favorite handlers

func (s *Server) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	if s.prefs == nil {
		http.Error(w, "Preferences unavailable", http.StatusServiceUnavailable)
		return
	}

	favorites, err := s.prefs.ListFavorites(r.Context())
	if err != nil {
		log.Printf("Error listing favorites: %v", err)
		http.Error(w, "Failed to list favorites", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"favorites": favorites,
		"count":     len(favorites),
	})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	if s.prefs == nil {
		http.Error(w, "Preferences unavailable", http.StatusServiceUnavailable)
		return
	}

	code := chi.URLParam(r, "code")

	// Carry the display name through when the route list is loaded
	name := ""
	for _, route := range s.session.Routes() {
		if route.Code == code {
			name = route.Name
			break
		}
	}

	if err := s.prefs.AddFavorite(r.Context(), code, name); err != nil {
		log.Printf("Error adding favorite %s: %v", code, err)
		http.Error(w, "Failed to add favorite", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"success": true})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if s.prefs == nil {
		http.Error(w, "Preferences unavailable", http.StatusServiceUnavailable)
		return
	}

	code := chi.URLParam(r, "code")
	if err := s.prefs.RemoveFavorite(r.Context(), code); err != nil {
		if err == db.ErrFavoriteNotFound {
			http.Error(w, "Favorite not found", http.StatusNotFound)
			return
		}
		log.Printf("Error removing favorite %s: %v", code, err)
		http.Error(w, "Failed to remove favorite", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleGetSystemStatus(w http.ResponseWriter, r *http.Request) {
	route := ""
	if selected := s.session.SelectedRoute(); selected != nil {
		route = selected.Code
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tracking":    s.session.Tracking(),
		"route":       route,
		"feedError":   s.session.Err(),
		"preferences": s.prefs != nil,
		"clients":     s.hub.clientCount(),
	})
}

// WebSocket frame feed

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Cross-origin policy is enforced by the CORS middleware layer
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket streams every animation frame to the client as JSON.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := s.hub.register()
	defer s.hub.unregister(client)
	defer conn.Close()

	// Reader goroutine drains control frames and detects disconnect
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send the current frame right away so the map isn't blank until the
	// next animation tick
	first := frameMessage{Type: "frame", Vehicles: s.session.Displayed()}
	if err := conn.WriteJSON(first); err != nil {
		return
	}

	for {
		select {
		case frame, ok := <-client:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// frameMessage is the wire format of one animation frame.
type frameMessage struct {
	Type     string                    `json:"type"`
	Vehicles []transit.VehicleSnapshot `json:"vehicles"`
}

// frameHub fans animation frames out to websocket clients. Slow clients
// drop frames rather than stalling the animator.
type frameHub struct {
	mu      sync.Mutex
	clients map[chan frameMessage]struct{}
	in      chan frameMessage
}

func newFrameHub() *frameHub {
	return &frameHub{
		clients: make(map[chan frameMessage]struct{}),
		in:      make(chan frameMessage, 64),
	}
}

// publish hands a frame to the hub. Called from the animation loop, so it
// must never block; when the hub is backed up the frame is dropped.
func (h *frameHub) publish(vehicles []transit.VehicleSnapshot) {
	msg := frameMessage{Type: "frame", Vehicles: vehicles}
	select {
	case h.in <- msg:
	default:
	}
}

func (h *frameHub) run() {
	for msg := range h.in {
		h.mu.Lock()
		for client := range h.clients {
			select {
			case client <- msg:
			default:
				// Client buffer full; skip this frame for them
			}
		}
		h.mu.Unlock()
	}
}

func (h *frameHub) register() chan frameMessage {
	client := make(chan frameMessage, 16)
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	return client
}

func (h *frameHub) unregister(client chan frameMessage) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
}

func (h *frameHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
