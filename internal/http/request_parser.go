// Package http provides HTTP server and handler implementations.
//
// This file parses form and query values into the service inputs. Every
// value is sanitized before it reaches a service.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"budget/internal/core"
	"budget/internal/services"
)

// ParseEntryInput reads the record form. Year and month default to now
// when absent; month may be a number 1..12 or a Russian month name. An
// unreadable year or month is left as 0 so validation rejects it.
func ParseEntryInput(form valueGetter, now time.Time) services.EntryInput {
	in := services.EntryInput{
		Year:       now.Year(),
		Month:      int(now.Month()),
		Category:   form.Get("category"),
		Article:    form.Get("article"),
		SubArticle: form.Get("sub_article"),
		Amount:     form.Get("amount"),
		Type:       core.TransactionType(form.Get("type")),
	}
	if v := form.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			y = 0
		}
		in.Year = y
	}
	if v := form.Get("month"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			in.Month = m
		} else if m := core.MonthIndex(v); m > 0 {
			in.Month = m
		} else {
			in.Month = 0
		}
	}
	return in
}

// ParseFilter reads the cascading filter from a query. Missing values mean All.
func ParseFilter(query url.Values) core.Filter {
	f := core.Filter{
		Category:   sanitizeInput(query.Get("category")),
		Article:    sanitizeInput(query.Get("article")),
		SubArticle: sanitizeInput(query.Get("sub_article")),
	}
	if f.Category == "" {
		f.Category = core.All
	}
	if f.Article == "" {
		f.Article = core.All
	}
	if f.SubArticle == "" {
		f.SubArticle = core.All
	}
	return f
}

// ParsePermissions reads perm_<module> fields of the create-user form.
// Unknown levels are dropped so the service default applies.
func ParsePermissions(form valueGetter) map[core.Module]core.PermissionLevel {
	perms := make(map[core.Module]core.PermissionLevel, len(core.PermissionModules))
	for _, m := range core.PermissionModules {
		lvl := core.PermissionLevel(form.Get("perm_" + moduleSlugs[m]))
		if lvl.Valid() {
			perms[m] = lvl
		}
	}
	return perms
}

// valueGetter is satisfied by RequestBodyParser and by formValues.
type valueGetter interface {
	Get(key string) string
}

// formValues adapts url.Values so every read is sanitized.
type formValues url.Values

func (f formValues) Get(key string) string {
	return sanitizeInput(url.Values(f).Get(key))
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]interface{}
	formData url.Values
	parsed   bool
	err      error
}

// maxBodyBytes bounds what a form post may carry.
const maxBodyBytes = 64 << 10

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// JSON bodies only come from scripted clients
	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseBodyOrFail parses the request body and returns an error response on
// failure. Returns the parser and nil on success.
func ParseBodyOrFail(r *http.Request) (*RequestBodyParser, *HTMXResponseBuilder) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, BadRequestError("Некорректный формат запроса")
	}
	return p, nil
}
