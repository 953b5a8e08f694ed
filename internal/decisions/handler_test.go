package decisions_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/decisions"
	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/internal/policies"
	"github.com/JaimeStill/lodestar/internal/policy"
	"github.com/JaimeStill/lodestar/pkg/pagination"
)

type mockSystem struct {
	listFn     func(ctx context.Context, page pagination.PageRequest, filters decisions.Filters) (*pagination.PageResult[decisions.Decision], error)
	findFn     func(ctx context.Context, id uuid.UUID) (*decisions.Decision, error)
	classifyFn func(ctx context.Context, cmd decisions.ClassifyCommand) (*decisions.Decision, error)
	confirmFn  func(ctx context.Context, id uuid.UUID, cmd decisions.ConfirmCommand) (*decisions.Decision, error)
	correctFn  func(ctx context.Context, id uuid.UUID, cmd decisions.CorrectCommand) (*decisions.Decision, error)
}

func (m *mockSystem) Handler() *decisions.Handler {
	return newTestHandler(m)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters decisions.Filters) (*pagination.PageResult[decisions.Decision], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*decisions.Decision, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Classify(ctx context.Context, cmd decisions.ClassifyCommand) (*decisions.Decision, error) {
	return m.classifyFn(ctx, cmd)
}

func (m *mockSystem) Confirm(ctx context.Context, id uuid.UUID, cmd decisions.ConfirmCommand) (*decisions.Decision, error) {
	return m.confirmFn(ctx, id, cmd)
}

func (m *mockSystem) Correct(ctx context.Context, id uuid.UUID, cmd decisions.CorrectCommand) (*decisions.Decision, error) {
	return m.correctFn(ctx, id, cmd)
}

func (m *mockSystem) Feedback(ctx context.Context, window feedback.DateRange) ([]feedback.Record, error) {
	return nil, nil
}

func newTestHandler(sys *mockSystem) *decisions.Handler {
	return decisions.NewHandler(sys, discard, pagination.Config{DefaultPageSize: 20, MaxPageSize: 100})
}

func setupMux(h *decisions.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func TestHandlerRoutes(t *testing.T) {
	h := newTestHandler(&mockSystem{})
	group := h.Routes()

	if group.Prefix != "/decisions" {
		t.Errorf("prefix = %q, want /decisions", group.Prefix)
	}

	want := map[string]bool{
		"GET ":               true,
		"GET /{id}":          true,
		"POST ":              true,
		"POST /search":       true,
		"POST /{id}/confirm": true,
		"POST /{id}/correct": true,
	}
	if len(group.Routes) != len(want) {
		t.Fatalf("routes = %d, want %d", len(group.Routes), len(want))
	}
	for _, r := range group.Routes {
		if !want[r.Method+" "+r.Pattern] {
			t.Errorf("unexpected route %s %s", r.Method, r.Pattern)
		}
	}
}

func TestHandlerList(t *testing.T) {
	var got decisions.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest, filters decisions.Filters) (*pagination.PageResult[decisions.Decision], error) {
			got = filters
			result := pagination.NewPageResult([]decisions.Decision{sampleDecision()}, 1, page.Page, page.PageSize)
			return &result, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	req := httptest.NewRequest("GET", "/decisions?category=RPA&overridden=true&reviewed=true", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got.Category == nil || *got.Category != "RPA" {
		t.Errorf("category filter = %v", got.Category)
	}
	if got.Overridden == nil || !*got.Overridden || !got.Reviewed {
		t.Errorf("filters = %+v", got)
	}
}

func TestHandlerFind(t *testing.T) {
	d := sampleDecision()

	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{"found", "/decisions/" + d.ID.String(), nil, http.StatusOK},
		{"not found", "/decisions/" + uuid.NewString(), decisions.ErrNotFound, http.StatusNotFound},
		{"bad id", "/decisions/not-a-uuid", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				findFn: func(_ context.Context, id uuid.UUID) (*decisions.Decision, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &d, nil
				},
			}
			mux := setupMux(newTestHandler(sys))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandlerClassify(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"created", `{"text":"paper invoices"}`, nil, http.StatusCreated},
		{"bad json", `{"text":`, nil, http.StatusBadRequest},
		{"empty text", `{"text":""}`, decisions.ErrEmptyText, http.StatusUnprocessableEntity},
		{"model down", `{"text":"x"}`, decisions.ErrClassificationFailed, http.StatusBadGateway},
		{"no policy", `{"text":"x"}`, policies.ErrNoPolicy, http.StatusNotFound},
		{"bad category", `{"text":"x"}`, policy.ErrInvalidCategory, http.StatusUnprocessableEntity},
		{"store failure", `{"text":"x"}`, errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got decisions.ClassifyCommand
			sys := &mockSystem{
				classifyFn: func(_ context.Context, cmd decisions.ClassifyCommand) (*decisions.Decision, error) {
					got = cmd
					if tt.err != nil {
						return nil, tt.err
					}
					d := sampleDecision()
					d.Text = cmd.Text
					return &d, nil
				},
			}
			mux := setupMux(newTestHandler(sys))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/decisions", bytes.NewBufferString(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantStatus == http.StatusCreated {
				var d decisions.Decision
				if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if d.Text != got.Text || d.Category != policy.CategoryDigitise {
					t.Errorf("decision = %+v", d)
				}
			}
		})
	}
}

func TestHandlerFeedback(t *testing.T) {
	d := sampleDecision()

	tests := []struct {
		name       string
		path       string
		body       string
		err        error
		wantStatus int
	}{
		{"confirm", "/decisions/" + d.ID.String() + "/confirm", `{"reviewed_by":"ana"}`, nil, http.StatusOK},
		{"confirm missing reviewer", "/decisions/" + d.ID.String() + "/confirm", `{}`, decisions.ErrReviewerRequired, http.StatusUnprocessableEntity},
		{"correct", "/decisions/" + d.ID.String() + "/correct", `{"category":"RPA","reviewed_by":"ana"}`, nil, http.StatusOK},
		{"correct same", "/decisions/" + d.ID.String() + "/correct", `{"category":"Digitise","reviewed_by":"ana"}`, decisions.ErrSameCategory, http.StatusUnprocessableEntity},
		{"correct missing", "/decisions/" + uuid.NewString() + "/correct", `{"category":"RPA","reviewed_by":"ana"}`, decisions.ErrNotFound, http.StatusNotFound},
		{"bad id", "/decisions/nope/confirm", `{}`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			respond := func() (*decisions.Decision, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &d, nil
			}
			sys := &mockSystem{
				confirmFn: func(context.Context, uuid.UUID, decisions.ConfirmCommand) (*decisions.Decision, error) {
					return respond()
				},
				correctFn: func(_ context.Context, _ uuid.UUID, cmd decisions.CorrectCommand) (*decisions.Decision, error) {
					if cmd.Category != policy.CategoryRPA && tt.err == nil {
						t.Errorf("category = %q", cmd.Category)
					}
					return respond()
				},
			}
			mux := setupMux(newTestHandler(sys))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", tt.path, bytes.NewBufferString(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
}
