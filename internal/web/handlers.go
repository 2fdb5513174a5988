package web

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"coverfetch/internal/albumcover"
	"coverfetch/internal/metadata"
	"coverfetch/pkg/utils"
)

const timeLayout = "2006-01-02 15:04:05"

type SearchRequest struct {
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	SearchOnly bool   `json:"search_only"`
	FetchAll   bool   `json:"fetch_all"`
}

type CoverResponse struct {
	Provider string  `json:"provider"`
	URL      string  `json:"url"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Score    float64 `json:"score"`
	Size     string  `json:"size"`
}

type JobResponse struct {
	ID          string                    `json:"id"`
	Artist      string                    `json:"artist"`
	Album       string                    `json:"album"`
	SearchOnly  bool                      `json:"search_only"`
	Status      JobStatus                 `json:"status"`
	Results     []albumcover.SearchResult `json:"results,omitempty"`
	Cover       *CoverResponse            `json:"cover,omitempty"`
	Stats       albumcover.Statistics     `json:"statistics"`
	Error       string                    `json:"error,omitempty"`
	CreatedAt   string                    `json:"created_at"`
	StartedAt   *string                   `json:"started_at,omitempty"`
	CompletedAt *string                   `json:"completed_at,omitempty"`
}

type StatsResponse struct {
	Jobs              int                   `json:"jobs"`
	Running           int                   `json:"running"`
	Stats             albumcover.Statistics `json:"statistics"`
	BytesHuman        string                `json:"bytes_transferred_human"`
	AverageDimensions string                `json:"average_dimensions"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Artist = strings.TrimSpace(req.Artist)
	req.Album = strings.TrimSpace(req.Album)
	if req.Artist == "" && req.Album == "" {
		http.Error(w, "artist or album is required", http.StatusBadRequest)
		return
	}

	// The job context must outlive the request.
	ctx, cancel := context.WithCancel(s.ctx)
	job := s.jobMgr.CreateJob(req.Artist, req.Album, req.SearchOnly, cancel)
	s.logger.Info("Created job %s for %q / %q", job.ID, req.Artist, req.Album)

	go s.processJob(ctx, cancel, job.ID, req)

	writeJSON(w, http.StatusAccepted, s.jobToResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobMgr.ListJobs()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = s.jobToResponse(job)
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobMgr.GetJob(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.jobToResponse(job))
}

func (s *Server) handleJobCover(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobMgr.GetJob(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if len(job.CoverData) == 0 {
		http.Error(w, "no cover for job "+job.ID, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": coverFilename(job)}))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(job.CoverData)
}

// coverFilename names a downloaded cover after the job's query.
func coverFilename(job Job) string {
	name := job.Album
	if job.Artist != "" && job.Album != "" {
		name = job.Artist + " - " + job.Album
	} else if job.Album == "" {
		name = job.Artist
	}
	return utils.SanitizeFilename(name) + ".jpg"
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	job, err := s.jobMgr.GetJob(jobID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if job.Status.Done() {
		http.Error(w, "job already "+string(job.Status), http.StatusConflict)
		return
	}

	s.jobMgr.UpdateJob(jobID, func(j *Job) {
		j.Status = StatusCancelled
	})
	if job.Cancel != nil {
		job.Cancel()
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobMgr.ListJobs()
	running := 0
	for _, j := range jobs {
		if !j.Status.Done() {
			running++
		}
	}

	st := s.jobMgr.Totals()
	writeJSON(w, http.StatusOK, StatsResponse{
		Jobs:              len(jobs),
		Running:           running,
		Stats:             st,
		BytesHuman:        humanize.Bytes(uint64(max(st.BytesTransferred, 0))),
		AverageDimensions: st.AverageDimensions(),
	})
}

func (s *Server) processJob(ctx context.Context, cancel context.CancelFunc, jobID string, req SearchRequest) {
	defer cancel()

	s.jobMgr.UpdateJob(jobID, func(j *Job) {
		j.Status = StatusRunning
	})
	s.logger.Info("Starting job %s", jobID)

	if req.SearchOnly {
		results, stats, err := s.finder.Search(ctx, req.Artist, req.Album)
		if err != nil {
			s.failJob(jobID, err)
			return
		}
		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			j.Results = results
			j.Stats = stats
			j.Status = StatusCompleted
		})
		s.logger.Info("Job %s found %d results", jobID, len(results))
		return
	}

	cover, stats, err := s.finder.Fetch(ctx, req.Artist, req.Album, req.FetchAll)
	if err != nil {
		s.failJob(jobID, err)
		return
	}

	var data []byte
	if cover != nil {
		data, err = metadata.EncodeCover(cover.Image, cover.Data, s.maxCoverSize)
		if err != nil {
			s.logger.Warn("Job %s: %v", jobID, err)
		}
	}

	s.jobMgr.UpdateJob(jobID, func(j *Job) {
		j.Cover = cover
		j.CoverData = data
		j.Stats = stats
		j.Status = StatusCompleted
	})

	if cover == nil {
		s.logger.Info("Job %s completed without a cover", jobID)
	} else {
		s.logger.Info("Job %s completed with a cover from %s", jobID, cover.Provider)
	}
}

func (s *Server) failJob(jobID string, err error) {
	if errors.Is(err, context.Canceled) {
		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			j.Status = StatusCancelled
		})
		return
	}
	s.logger.Error("Job %s failed: %v", jobID, err)
	s.jobMgr.UpdateJob(jobID, func(j *Job) {
		j.Status = StatusFailed
		j.Error = err.Error()
	})
}

func (s *Server) jobToResponse(job Job) *JobResponse {
	resp := &JobResponse{
		ID:         job.ID,
		Artist:     job.Artist,
		Album:      job.Album,
		SearchOnly: job.SearchOnly,
		Status:     job.Status,
		Results:    job.Results,
		Stats:      job.Stats,
		Error:      job.Error,
		CreatedAt:  job.CreatedAt.Format(timeLayout),
	}

	if job.Cover != nil {
		w, h := job.Cover.Size()
		resp.Cover = &CoverResponse{
			Provider: job.Cover.Provider,
			URL:      job.Cover.URL,
			Width:    w,
			Height:   h,
			Score:    job.Cover.Score,
			Size:     humanize.Bytes(uint64(len(job.CoverData))),
		}
	}

	if job.StartedAt != nil {
		started := job.StartedAt.Format(timeLayout)
		resp.StartedAt = &started
	}

	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format(timeLayout)
		resp.CompletedAt = &completed
	}

	return resp
}
