// Package client talks to the remote student record store, a PostgREST-style
// HTTP API over the students table.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"eventreg/internal/platform/provider"
	"eventreg/internal/students/models"
)

const providerName = "student_directory"

// maxBody bounds how much of a response is read.
const maxBody = 1 << 20

var tracer = otel.Tracer("eventreg/internal/students/client")

// REST queries the record store over HTTP.
type REST struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
}

// Option configures the REST client.
type Option func(*REST)

// WithHTTPClient replaces the default client, e.g. with an httptest one.
func WithHTTPClient(c *http.Client) Option {
	return func(r *REST) {
		r.httpClient = c
	}
}

// WithTable overrides the table name.
func WithTable(table string) Option {
	return func(r *REST) {
		r.table = table
	}
}

// NewREST creates a record store client. baseURL is the API root the table
// path is appended to.
func NewREST(baseURL, apiKey string, timeout time.Duration, opts ...Option) (*REST, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("student directory URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse student directory URL: %w", err)
	}
	r := &REST{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		table:      "alunos",
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Name identifies the directory in metrics.
func (r *REST) Name() string {
	return "rest"
}

// record mirrors a row of the students table.
type record struct {
	ID       json.RawMessage `json:"id"`
	FullName string          `json:"nome_completo"`
	Grade    string          `json:"serie"`
	Section  string          `json:"turma"`
	Shift    string          `json:"turno"`
}

// Find runs q against the record store.
func (r *REST) Find(ctx context.Context, q models.Query) ([]models.Student, error) {
	ctx, span := tracer.Start(ctx, "students.find")
	defer span.End()
	span.SetAttributes(
		attribute.String("students.shift", q.Shift),
		attribute.String("students.grade", q.Grade),
		attribute.Int("students.pattern_length", len([]rune(q.NamePattern))),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.buildURL(q), nil)
	if err != nil {
		return nil, provider.NewError(provider.ErrorInternal, providerName, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("apikey", r.apiKey)
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		perr := provider.FromTransport(providerName, err)
		span.RecordError(perr)
		span.SetStatus(codes.Error, string(perr.Category))
		return nil, perr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		perr := provider.FromTransport(providerName, err)
		span.RecordError(perr)
		return nil, perr
	}

	students, err := parseResponse(resp.StatusCode, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(provider.CategoryOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("students.count", len(students)))
	return students, nil
}

func (r *REST) buildURL(q models.Query) string {
	v := url.Values{}
	v.Set("select", "id,nome_completo,serie,turma,turno")
	v.Set("nome_completo", "ilike.*"+q.NamePattern+"*")
	if q.Shift != "" {
		v.Set("turno", "eq."+q.Shift)
	}
	if q.Grade != "" {
		v.Set("serie", "eq."+q.Grade)
	}
	v.Set("order", "nome_completo.asc")
	v.Set("limit", strconv.Itoa(q.EffectiveLimit()))
	return r.baseURL + "/" + url.PathEscape(r.table) + "?" + v.Encode()
}

func parseResponse(status int, body []byte) ([]models.Student, error) {
	if status < 200 || status >= 300 {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &payload)
		return nil, provider.FromStatus(providerName, status, payload.Message)
	}

	var rows []record
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, provider.NewError(provider.ErrorBadData, providerName, "decode students", err)
	}

	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, models.Student{
			ID:       rawID(row.ID),
			FullName: row.FullName,
			Grade:    row.Grade,
			Section:  row.Section,
			Shift:    row.Shift,
		})
	}
	return students, nil
}

// rawID accepts numeric and string primary keys.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
