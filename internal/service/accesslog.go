package service

import (
	"math"
	"time"

	"smartdoor"
	"smartdoor/internal/repository"
)

const defaultRecentLimit = 20

type AccessLogService struct {
	repo repository.AccessLogRepo
}

func NewAccessLogService(repo repository.AccessLogRepo) *AccessLogService {
	return &AccessLogService{repo: repo}
}

// Record normalizes and appends one attempt. NaN/Inf confidence is dropped
// rather than persisted.
func (s *AccessLogService) Record(e smartdoor.AccessEntry) error {
	if e.Confidence != nil {
		if c := *e.Confidence; math.IsNaN(c) || math.IsInf(c, 0) {
			e.Confidence = nil
		}
	}
	return s.repo.Insert(e)
}

// RecentOpenings returns the latest granted attempts for the mini-log view.
func (s *AccessLogService) RecentOpenings(limit int) ([]smartdoor.AccessEntry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return s.repo.RecentGranted(limit)
}

func (s *AccessLogService) ListMonth(year int, month time.Month) ([]smartdoor.AccessEntry, error) {
	return s.repo.ListMonth(year, month)
}

func (s *AccessLogService) ClearMonth(year int, month time.Month) error {
	return s.repo.ClearMonth(year, month)
}

func (s *AccessLogService) Delete(id string) error {
	return s.repo.Delete(id)
}
