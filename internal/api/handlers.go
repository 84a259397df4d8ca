package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skyroute/flightfeed/internal/auth"
	"github.com/skyroute/flightfeed/internal/feed"
)

type contextKey string

const claimsKey contextKey = "claims"

// parseQuery reads lat, lng and radius from the query string.
func parseQuery(values url.Values) (feed.Query, error) {
	var q feed.Query

	lat, err := requiredFloat(values, "lat")
	if err != nil {
		return q, err
	}
	lng, err := requiredFloat(values, "lng")
	if err != nil {
		return q, err
	}
	q.Lat, q.Lng = lat, lng

	if raw := values.Get("radius"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fmt.Errorf("%w: radius must be a number", feed.ErrInvalidQuery)
		}
		q.Radius = radius
	}

	return feed.ValidateQuery(q)
}

func requiredFloat(values url.Values, name string) (float64, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", feed.ErrInvalidQuery, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", feed.ErrInvalidQuery, name)
	}
	return v, nil
}

// handleGetFlights returns the flights in a region.
func (s *Server) handleGetFlights(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, s.feed.Flights(r.Context(), q))
}

// handleLookup returns one flight, optionally with a trajectory to a destination.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req feed.LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	flight, err := s.feed.Lookup(r.Context(), req)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"flight":        flight,
			"authenticated": s.feed.Authenticated(),
		})
	case feed.IsNotFound(err):
		respondError(w, http.StatusNotFound, "Flight not found")
	case errors.Is(err, feed.ErrUnknownAirport):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, feed.ErrInvalidQuery):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("Lookup of %q failed: %v", req.ICAO24, err)
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}

// handleLogin exchanges operator credentials for a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, expires, err := s.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrLoginDisabled):
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		s.log.Error("Failed to generate token: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

// authMiddleware requires a valid operator bearer token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		// Extract token (format: "Bearer <token>")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := s.auth.ValidateToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
			if claims == nil || !auth.HasRole(claims.Role, role) {
				respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// handleSystemStatus reports metrics, cache, upstream auth and directory state.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"metrics":       s.feed.Metrics().GetSnapshot(),
		"cache_size":    s.feed.CacheSize(),
		"authenticated": s.feed.Authenticated(),
	}

	directory := map[string]interface{}{"enabled": s.directory != nil}
	if s.directory != nil {
		directory["healthy"] = s.directory.Healthy(r.Context())
		if stats, err := s.directory.Stats(r.Context()); err != nil {
			directory["error"] = err.Error()
		} else {
			directory["stats"] = stats
		}
	}
	status["directory"] = directory

	if s.warmer != nil {
		status["warmup"] = s.warmer.Stats()
	}

	respondJSON(w, http.StatusOK, status)
}

// handleCachePurge evicts the oldest regions. A count of 0 purges half.
func (s *Server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Count < 0 {
		respondError(w, http.StatusBadRequest, "count must not be negative")
		return
	}

	purged := s.feed.PurgeCache(req.Count)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"purged":    purged,
		"remaining": s.feed.CacheSize(),
	})
}

// handleTokenInvalidate drops the upstream token; the next fetch re-acquires it.
func (s *Server) handleTokenInvalidate(w http.ResponseWriter, r *http.Request) {
	s.feed.InvalidateToken()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"authenticated": s.feed.Authenticated(),
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
