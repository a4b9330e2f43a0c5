package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/galaxynn/MDMS/internal/aggregation"
	"github.com/galaxynn/MDMS/internal/domain"
	"github.com/galaxynn/MDMS/internal/service"
)

type reviewRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	MovieID   string    `json:"movieId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type reviewMutationResponse struct {
	Review reviewResponse        `json:"review"`
	Rating ratingSummaryResponse `json:"rating"`
}

type reviewListResponse struct {
	Items []reviewResponse `json:"items"`
}

type sweepResponse struct {
	Movies     int   `json:"movies"`
	Repaired   int   `json:"repaired"`
	DurationMs int64 `json:"durationMs"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	movieID, err := pathParam(r, "movieID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req reviewRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	result, err := s.reviews.Create(r.Context(), caller, movieID, req.Rating, normalizeStringPtr(req.Comment))
	if err != nil {
		s.respondServiceError(w, "create review", err)
		return
	}

	w.Header().Set("Location", "/reviews/"+result.Review.ID)
	s.respondJSON(w, http.StatusCreated, toReviewMutationResponse(result))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	reviewID, err := pathParam(r, "reviewID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req reviewRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	result, err := s.reviews.Update(r.Context(), caller, reviewID, req.Rating, normalizeStringPtr(req.Comment))
	if err != nil {
		s.respondServiceError(w, "update review", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewMutationResponse(result))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	reviewID, err := pathParam(r, "reviewID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if _, err := s.reviews.Delete(r.Context(), caller, reviewID); err != nil {
		s.respondServiceError(w, "delete review", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMyReview(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	movieID, err := pathParam(r, "movieID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	review, err := s.reviews.MyReview(r.Context(), caller, movieID)
	if err != nil {
		s.respondServiceError(w, "fetch review", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleListMovieReviews(w http.ResponseWriter, r *http.Request) {
	movieID, err := pathParam(r, "movieID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	reviews, err := s.reviews.MovieReviews(r.Context(), movieID, limit)
	if err != nil {
		s.respondServiceError(w, "list reviews", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewListResponse(reviews))
}

func (s *Server) handleListMyReviews(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	reviews, err := s.reviews.UserReviews(r.Context(), caller.UserID, limit)
	if err != nil {
		s.respondServiceError(w, "list reviews", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewListResponse(reviews))
}

// handleRecompute recomputes a single movie when movieId is given and runs
// the full repair sweep otherwise.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	if movieID := r.URL.Query().Get("movieId"); movieID != "" {
		summary, err := s.reviews.Recompute(r.Context(), movieID)
		if err != nil {
			s.respondServiceError(w, "recompute rating", err)
			return
		}
		s.respondJSON(w, http.StatusOK, toRatingSummaryResponse(summary))
		return
	}

	report, err := s.reviews.RepairAll(r.Context())
	if err != nil {
		s.respondServiceError(w, "run repair sweep", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sweepResponse{
		Movies:     report.Movies,
		Repaired:   report.Repaired,
		DurationMs: report.Duration.Milliseconds(),
	})
}

// respondServiceError maps engine and service failures onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, aggregation.ErrInvalidRating):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", aggregation.ErrInvalidRating.Error())
	case errors.Is(err, aggregation.ErrDuplicateReview):
		s.respondError(w, http.StatusConflict, "DUPLICATE_REVIEW", "You have already reviewed this movie")
	case errors.Is(err, aggregation.ErrMovieNotFound),
		errors.Is(err, aggregation.ErrReviewNotFound),
		errors.Is(err, aggregation.ErrUserNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, service.ErrForbidden):
		s.respondError(w, http.StatusForbidden, "FORBIDDEN", "You may only modify your own reviews")
	default:
		s.logger.Printf("%s error: %v", action, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action)
	}
}

func toReviewResponse(review domain.Review) reviewResponse {
	return reviewResponse{
		ID:        review.ID,
		MovieID:   review.MovieID,
		UserID:    review.UserID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
	}
}

func toReviewListResponse(reviews []domain.Review) reviewListResponse {
	items := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, toReviewResponse(review))
	}
	return reviewListResponse{Items: items}
}

func toReviewMutationResponse(result service.ReviewResult) reviewMutationResponse {
	return reviewMutationResponse{
		Review: toReviewResponse(result.Review),
		Rating: toRatingSummaryResponse(result.Summary),
	}
}
