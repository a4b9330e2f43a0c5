package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/galaxynn/MDMS/internal/domain"
	"github.com/galaxynn/MDMS/internal/repository"
)

const maxRequestBody = 1 << 20 // 1 MiB

const dateLayout = "2006-01-02"

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type movieCreateRequest struct {
	Title          string  `json:"title"`
	Synopsis       *string `json:"synopsis"`
	ReleaseDate    *string `json:"releaseDate"`
	RuntimeMinutes *int    `json:"runtimeMinutes"`
	Country        *string `json:"country"`
	Language       *string `json:"language"`
	PosterURL      *string `json:"posterUrl"`
}

type movieListResponse struct {
	Items      []movieResponse `json:"items"`
	NextCursor *string         `json:"nextCursor,omitempty"`
}

type movieResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Synopsis       *string   `json:"synopsis,omitempty"`
	ReleaseDate    *string   `json:"releaseDate,omitempty"`
	RuntimeMinutes *int      `json:"runtimeMinutes,omitempty"`
	Country        *string   `json:"country,omitempty"`
	Language       *string   `json:"language,omitempty"`
	PosterURL      *string   `json:"posterUrl,omitempty"`
	AverageRating  float64   `json:"averageRating"`
	RatingCount    int64     `json:"ratingCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ratingSummaryResponse struct {
	MovieID string  `json:"movieId"`
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters, err := buildMovieFilters(query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.repo.Movies.List(r.Context(), filters)
	if err != nil {
		s.logger.Printf("list movies error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list movies")
		return
	}

	items := make([]movieResponse, 0, len(result.Items))
	for _, movie := range result.Items {
		items = append(items, toMovieResponse(movie))
	}

	resp := movieListResponse{
		Items: items,
	}
	if result.NextCursor != nil {
		resp.NextCursor = result.NextCursor
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func buildMovieFilters(query url.Values) (repository.MovieListFilters, error) {
	var filters repository.MovieListFilters

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filters.Query = &q
	}
	if val := strings.TrimSpace(query.Get("year")); val != "" {
		year, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid year value")
		}
		filters.Year = &year
	}
	if val := strings.TrimSpace(query.Get("minRating")); val != "" {
		minRating, err := strconv.ParseFloat(val, 64)
		if err != nil || math.IsNaN(minRating) || minRating < 0 || minRating > float64(domain.MaxRating) {
			return filters, fmt.Errorf("invalid minRating value")
		}
		filters.MinRating = &minRating
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req movieCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required")
		return
	}
	var releaseDate *time.Time
	if date := normalizeStringPtr(req.ReleaseDate); date != nil {
		parsed, err := time.Parse(dateLayout, *date)
		if err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "releaseDate must follow YYYY-MM-DD format")
			return
		}
		releaseDate = &parsed
	}
	if req.RuntimeMinutes != nil && *req.RuntimeMinutes <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "runtimeMinutes must be positive")
		return
	}

	movie, err := s.repo.Movies.Create(r.Context(), repository.MovieCreateParams{
		Title:          strings.TrimSpace(req.Title),
		Synopsis:       normalizeStringPtr(req.Synopsis),
		ReleaseDate:    releaseDate,
		RuntimeMinutes: req.RuntimeMinutes,
		Country:        normalizeStringPtr(req.Country),
		Language:       normalizeStringPtr(req.Language),
		PosterURL:      normalizeStringPtr(req.PosterURL),
	})
	if err != nil {
		s.logger.Printf("create movie error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create movie")
		return
	}

	w.Header().Set("Location", "/movies/"+url.PathEscape(movie.ID))
	s.respondJSON(w, http.StatusCreated, toMovieResponse(movie))
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movieID, err := pathParam(r, "movieID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	movie, err := s.repo.Movies.GetByID(r.Context(), movieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("fetch movie failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch movie")
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleTopMovies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseLimit(query.Get("limit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	var minCount int64 = 1
	if val := strings.TrimSpace(query.Get("minCount")); val != "" {
		minCount, err = strconv.ParseInt(val, 10, 64)
		if err != nil || minCount < 0 {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid minCount value")
			return
		}
	}

	movies, err := s.repo.Movies.TopRated(r.Context(), limit, minCount)
	if err != nil {
		s.logger.Printf("top movies error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list movies")
		return
	}

	items := make([]movieResponse, 0, len(movies))
	for _, movie := range movies {
		items = append(items, toMovieResponse(movie))
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: items})
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	movieID, err := pathParam(r, "movieID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	summary, err := s.reviews.Summary(r.Context(), movieID)
	if err != nil {
		s.respondServiceError(w, "fetch rating", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingSummaryResponse(summary))
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

func toMovieResponse(movie domain.Movie) movieResponse {
	resp := movieResponse{
		ID:             movie.ID,
		Title:          movie.Title,
		Synopsis:       movie.Synopsis,
		RuntimeMinutes: movie.RuntimeMinutes,
		Country:        movie.Country,
		Language:       movie.Language,
		PosterURL:      movie.PosterURL,
		AverageRating:  movie.AverageRating,
		RatingCount:    movie.RatingCount,
		CreatedAt:      movie.CreatedAt,
	}
	if movie.ReleaseDate != nil {
		date := movie.ReleaseDate.Format(dateLayout)
		resp.ReleaseDate = &date
	}
	return resp
}

func toRatingSummaryResponse(summary domain.RatingSummary) ratingSummaryResponse {
	return ratingSummaryResponse{
		MovieID: summary.MovieID,
		Average: summary.Average,
		Count:   summary.Count,
	}
}

func normalizeStringPtr(ptr *string) *string {
	if ptr == nil {
		return nil
	}
	val := strings.TrimSpace(*ptr)
	if val == "" {
		return nil
	}
	return &val
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit value")
	}
	return limit, nil
}

func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return "", fmt.Errorf("missing %s parameter", name)
	}
	val, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s parameter", name)
	}
	return val, nil
}
