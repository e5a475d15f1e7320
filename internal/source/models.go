package source

import (
	"time"

	"secevents/internal/domain"
)

// queryRequest is the body POSTed for every page.
type queryRequest struct {
	Begin    time.Time       `json:"begin"`
	End      time.Time       `json:"end"`
	Filters  []domain.Filter `json:"filters"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}
