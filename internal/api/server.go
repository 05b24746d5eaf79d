package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"igscout/internal/repository"
	"igscout/internal/service"
)

// Server is the upstream trigger surface: enqueue scrapes, plan and commit
// categorization batches, poll job status. It never executes work itself.
type Server struct {
	jobs           *repository.JobRepository
	clients        *repository.ClientRepository
	scheduler      *service.Scheduler
	categorization *service.CategorizationService
	log            *zap.SugaredLogger
}

func NewServer(
	jobs *repository.JobRepository,
	clients *repository.ClientRepository,
	scheduler *service.Scheduler,
	categorization *service.CategorizationService,
	log *zap.SugaredLogger,
) *Server {
	return &Server{
		jobs:           jobs,
		clients:        clients,
		scheduler:      scheduler,
		categorization: categorization,
		log:            log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scrapes/following", s.enqueueFollowing)
		r.Post("/scrapes/following/all", s.enqueueFollowingAll)
		r.Post("/scrapes/profiles", s.enqueueProfiles)
		r.Get("/jobs/{id}", s.getJob)
		r.Post("/categorization/plan", s.planCategorization)
		r.Post("/categorization/commit", s.commitCategorization)
	})
	return r
}

func (s *Server) enqueueFollowing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"client_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	if _, err := s.clients.GetByID(r.Context(), req.ClientID); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		s.internalError(w, err)
		return
	}

	jobID, err := s.scheduler.EnqueueFollowingScrape(r.Context(), req.ClientID)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateJob) {
			writeError(w, http.StatusConflict, "client already has an active following scrape")
			return
		}
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) enqueueFollowingAll(w http.ResponseWriter, r *http.Request) {
	clients, err := s.clients.ListAll(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}

	jobIDs := make([]string, 0, len(clients))
	skipped := 0
	for _, c := range clients {
		jobID, err := s.scheduler.EnqueueFollowingScrape(r.Context(), c.ID)
		if err != nil {
			if errors.Is(err, service.ErrDuplicateJob) {
				skipped++
				continue
			}
			s.internalError(w, err)
			return
		}
		jobIDs = append(jobIDs, jobID)
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_ids": jobIDs,
		"skipped": skipped,
	})
}

func (s *Server) enqueueProfiles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	// Empty body means default limit.
	_ = json.NewDecoder(r.Body).Decode(&req)

	jobID, count, err := s.scheduler.ScheduleProfileBatch(r.Context(), req.Limit)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientTargets) {
			writeError(w, http.StatusUnprocessableEntity, "no eligible target accounts")
			return
		}
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": jobID,
		"count":  count,
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := s.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           job.ID,
		"job_type":     job.JobType,
		"status":       job.Status,
		"client_id":    job.ClientID,
		"queued_at":    job.QueuedAt,
		"claimed_at":   job.ClaimedAt,
		"completed_at": job.CompletedAt,
		"result":       job.Result,
	})
}

func (s *Server) planCategorization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MinClientCount int  `json:"min_client_count"`
		Reclassify     bool `json:"reclassify"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MinClientCount < 1 {
		req.MinClientCount = 1
	}

	plan, err := s.categorization.Plan(r.Context(), req.MinClientCount, req.Reclassify)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientTargets) {
			writeError(w, http.StatusUnprocessableEntity, "no eligible target accounts")
			return
		}
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) commitCategorization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID string `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	jobIDs, err := s.categorization.Commit(r.Context(), req.PlanID)
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_ids": jobIDs})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Errorf("Request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
