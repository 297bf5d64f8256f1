// Package domain describes the public-holiday lookup used for due-date
// planning around non-working days.
package domain

import (
	"context"
	"errors"
)

// Holiday is a single public holiday as reported by the upstream API.
type Holiday struct {
	Date      string `json:"date"`
	LocalName string `json:"localName"`
	Name      string `json:"name"`
	Country   string `json:"countryCode"`
}

type Service interface {
	// List returns the public holidays for a country and year, served from
	// cache when possible.
	List(ctx context.Context, country string, year int) ([]Holiday, error)
}

var (
	ErrUpstreamUnavailable = errors.New("holiday_upstream_unavailable")
)
