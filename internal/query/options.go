// Package query turns the common list parameters (search, status, date
// range, sort, pagination) into a typed options value that is validated
// once and compiled to a gorm scope in one place.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/amrelngm6/crm-flutter-sub001/pkg/validate"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100

	dateLayout = "2006-01-02"
)

// Options is the validated set of list parameters for an endpoint.
type Options struct {
	Search    string
	Status    string
	StartDate *time.Time
	EndDate   *time.Time

	SortColumn string
	SortOrder  string

	Page    int
	PerPage int
}

// Parse reads the common query parameters from the request. sortable maps
// the accepted sort_by values to real column names; defaultSort must be a
// key of sortable.
func Parse(c echo.Context, sortable map[string]string, defaultSort, defaultOrder string) (Options, error) {
	errs := validate.Errors{}

	opts := Options{
		Search:  strings.TrimSpace(c.QueryParam("search")),
		Status:  strings.TrimSpace(c.QueryParam("status")),
		Page:    1,
		PerPage: DefaultPerPage,
	}

	if v := c.QueryParam("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			errs.Add("page", "must be a positive integer")
		} else {
			opts.Page = page
		}
	}

	if v := c.QueryParam("per_page"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil || perPage < 1 {
			errs.Add("per_page", "must be a positive integer")
		} else {
			if perPage > MaxPerPage {
				perPage = MaxPerPage
			}
			opts.PerPage = perPage
		}
	}

	if v := c.QueryParam("start_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			errs.Add("start_date", "must be a date in YYYY-MM-DD format")
		} else {
			opts.StartDate = &t
		}
	}

	if v := c.QueryParam("end_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			errs.Add("end_date", "must be a date in YYYY-MM-DD format")
		} else {
			opts.EndDate = &t
		}
	}

	sortBy := c.QueryParam("sort_by")
	if sortBy == "" {
		sortBy = defaultSort
	}
	column, ok := sortable[sortBy]
	if !ok {
		keys := make([]string, 0, len(sortable))
		for k := range sortable {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		errs.Add("sort_by", fmt.Sprintf("must be one of: %s", strings.Join(keys, ", ")))
	}
	opts.SortColumn = column

	order := strings.ToLower(c.QueryParam("sort_order"))
	if order == "" {
		order = defaultOrder
	}
	if order != "asc" && order != "desc" {
		errs.Add("sort_order", "must be asc or desc")
	}
	opts.SortOrder = order

	if len(errs) > 0 {
		return Options{}, errs
	}
	return opts, nil
}

// Filter returns a gorm scope applying the free-text search (OR across the
// given columns), the status equality filter, and the inclusive created_at
// date range. Pagination and ordering are applied separately so the same
// scope can drive the count query.
func (o Options) Filter(searchColumns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if o.Search != "" && len(searchColumns) > 0 {
			pattern := "%" + o.Search + "%"
			clauses := make([]string, len(searchColumns))
			args := make([]interface{}, len(searchColumns))
			for i, col := range searchColumns {
				clauses[i] = col + " LIKE ?"
				args[i] = pattern
			}
			db = db.Where("("+strings.Join(clauses, " OR ")+")", args...)
		}
		if o.Status != "" {
			db = db.Where("status = ?", o.Status)
		}
		if o.StartDate != nil {
			db = db.Where("created_at >= ?", *o.StartDate)
		}
		if o.EndDate != nil {
			// Inclusive: anything before the start of the next day counts
			db = db.Where("created_at < ?", o.EndDate.AddDate(0, 0, 1))
		}
		return db
	}
}

// Sort returns the ORDER BY expression.
func (o Options) Sort() string {
	return o.SortColumn + " " + o.SortOrder
}

// Offset returns the row offset for the current page.
func (o Options) Offset() int {
	return (o.Page - 1) * o.PerPage
}

// Meta is the pagination block returned alongside list data.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// MetaFor computes the pagination block for a total row count.
func (o Options) MetaFor(total int64) Meta {
	pages := int(total) / o.PerPage
	if int(total)%o.PerPage != 0 {
		pages++
	}
	return Meta{
		Total:      total,
		Page:       o.Page,
		PerPage:    o.PerPage,
		TotalPages: pages,
	}
}
