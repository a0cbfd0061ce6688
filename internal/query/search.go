// Package query builds the remote search requests and the local persistence
// statements for each record kind.
package query

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recon_sync/ingestion/internal/models"
)

const dateLayout = "2006-01-02"

// SearchOptions configures the filter applied to every search request
type SearchOptions struct {
	BaseURL         string
	CompetitionType string
	Seasons         []string
	DateStart       time.Time
	DateEnd         time.Time

	// Overrides holds pre-built request URLs keyed by kind. When present the
	// URL is used verbatim and no filter body is generated.
	Overrides map[models.Kind]string
}

// SearchBuilder produces search URLs for the index
type SearchBuilder struct {
	base *url.URL
	opts SearchOptions
}

// NewSearchBuilder validates the options and returns a builder
func NewSearchBuilder(opts SearchOptions) (*SearchBuilder, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid search base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid search base url %q: scheme and host are required", opts.BaseURL)
	}
	if opts.CompetitionType == "" {
		return nil, fmt.Errorf("competition type is required")
	}
	if len(opts.Seasons) == 0 {
		return nil, fmt.Errorf("at least one season is required")
	}
	if opts.DateStart.IsZero() || opts.DateEnd.IsZero() {
		return nil, fmt.Errorf("event date range is required")
	}
	if opts.DateEnd.Before(opts.DateStart) {
		return nil, fmt.Errorf("event date range ends (%s) before it starts (%s)",
			opts.DateEnd.Format(dateLayout), opts.DateStart.Format(dateLayout))
	}
	for kind := range opts.Overrides {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: override for %s", models.ErrUnknownKind, kind)
		}
	}

	return &SearchBuilder{base: base, opts: opts}, nil
}

// URL returns the search request URL for kind, asking for size hits starting
// at offset zero
func (b *SearchBuilder) URL(kind models.Kind, size int) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %s", models.ErrUnknownKind, kind)
	}
	if override, ok := b.opts.Overrides[kind]; ok && override != "" {
		return override, nil
	}
	if size <= 0 {
		return "", fmt.Errorf("page size must be positive, got %d", size)
	}

	body, err := b.Body(kind)
	if err != nil {
		return "", err
	}

	u := *b.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + kind.Index() + "/_search"

	params := url.Values{}
	params.Set("size", strconv.Itoa(size))
	params.Set("from", "0")
	params.Set("source", string(body))
	u.RawQuery = params.Encode()

	return u.String(), nil
}

// Body returns the JSON filter sent in the source parameter for kind
func (b *SearchBuilder) Body(kind models.Kind) ([]byte, error) {
	var typeField, sortField string
	switch kind {
	case models.KindTeam:
		typeField, sortField = "team_type", "team_nickname.raw"
	case models.KindEvent:
		typeField, sortField = "event_type", "event_name.raw"
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownKind, kind)
	}

	seasonMatches := make([]any, 0, len(b.opts.Seasons))
	for _, season := range b.opts.Seasons {
		seasonMatches = append(seasonMatches, match("fk_program_seasons", season))
	}

	must := []any{
		should(match(typeField, b.opts.CompetitionType)),
		should(seasonMatches...),
	}
	if kind == models.KindEvent {
		must = append(must, obj{
			"range": obj{
				"date_end": obj{
					"gte": b.opts.DateStart.Format(dateLayout),
					"lte": b.opts.DateEnd.Format(dateLayout),
				},
			},
		})
	}

	query := obj{
		"query": obj{
			"filtered": obj{
				"query": obj{
					"bool": obj{"must": must},
				},
			},
		},
		"sort": sortField,
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search body: %w", err)
	}
	return body, nil
}

type obj = map[string]any

func match(field, value string) obj {
	return obj{"match": obj{field: value}}
}

// should wraps clauses the way the index expects them: a bool/should holding
// a single nested list
func should(clauses ...any) obj {
	return obj{"bool": obj{"should": []any{clauses}}}
}
