// Package mockmine is an in-memory stand-in for a Redmine server. It backs
// the dev server binary and the sync engine tests with the same handlers, so
// both exercise the real wire envelopes.
package mockmine

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/redmine"
)

// Data is the mutable dataset served by the router. Guarded by its own mutex
// so tests can mutate it between requests.
type Data struct {
	mu sync.Mutex

	APIKey  string
	Account redmine.Account

	TimeEntries []redmine.TimeEntry
	Projects    []redmine.Project
	Issues      []redmine.Issue
	Activities  []redmine.Activity
	Priorities  []redmine.Priority
	Statuses    []redmine.Status

	nextID int
}

// Update runs fn with the dataset locked.
func (d *Data) Update(fn func(*Data)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d)
}

// NextID hands out server-assigned record ids. Callers must hold the lock.
func (d *Data) NextID() int {
	if d.nextID == 0 {
		d.nextID = 1000
	}
	d.nextID++
	return d.nextID
}

// NewRouter builds the fake tracker's HTTP surface over data.
func NewRouter(data *Data) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requireKey(data))

	r.Get("/my/account.json", func(w http.ResponseWriter, req *http.Request) {
		data.mu.Lock()
		account := data.Account
		data.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"user": account})
	})

	r.Get("/time_entries.json", func(w http.ResponseWriter, req *http.Request) {
		data.mu.Lock()
		var matched []redmine.TimeEntry
		from := req.URL.Query().Get("from")
		for _, entry := range data.TimeEntries {
			if from == "" || entry.SpentOn.String() >= from {
				matched = append(matched, entry)
			}
		}
		data.mu.Unlock()
		writePage(w, req, "time_entries", matched, true)
	})

	r.Get("/projects.json", func(w http.ResponseWriter, req *http.Request) {
		data.mu.Lock()
		matched := append([]redmine.Project(nil), data.Projects...)
		data.mu.Unlock()
		writePage(w, req, "projects", matched, true)
	})

	r.Get("/issues.json", func(w http.ResponseWriter, req *http.Request) {
		data.mu.Lock()
		var matched []redmine.Issue
		updatedOn := req.URL.Query().Get("updated_on")
		var after time.Time
		if len(updatedOn) > 2 && updatedOn[:2] == ">=" {
			after, _ = time.Parse("2006-01-02T15:04:05Z", updatedOn[2:])
		}
		for _, issue := range data.Issues {
			if after.IsZero() || !issue.UpdatedOn.Before(after) {
				matched = append(matched, issue)
			}
		}
		data.mu.Unlock()
		writePage(w, req, "issues", matched, true)
	})

	// Enumerations carry no total_count, same as the real server.
	r.Get("/enumerations/time_entry_activities.json", func(w http.ResponseWriter, req *http.Request) {
		data.mu.Lock()
		matched := append([]redmine.Activity(nil), data.Activities...)
		data.mu.Unlock()
		writePage(w, req, "time_entry_activities", matched, false)
	})

	r.Get("/enumerations/issue_priorities.json", func(w http.ResponseWriter, req *http.Request) {
		data.mu.Lock()
		matched := append([]redmine.Priority(nil), data.Priorities...)
		data.mu.Unlock()
		writePage(w, req, "issue_priorities", matched, false)
	})

	r.Get("/issue_statuses.json", func(w http.ResponseWriter, req *http.Request) {
		data.mu.Lock()
		matched := append([]redmine.Status(nil), data.Statuses...)
		data.mu.Unlock()
		writePage(w, req, "issue_statuses", matched, true)
	})

	r.Post("/time_entries.json", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			TimeEntry redmine.TimeEntryFields `json:"time_entry"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if msgs := validateEntry(body.TimeEntry, true); len(msgs) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": msgs})
			return
		}

		data.mu.Lock()
		now := time.Now().UTC()
		entry := redmine.TimeEntry{
			ID:        data.NextID(),
			Project:   redmine.Named{ID: *body.TimeEntry.ProjectID},
			Activity:  redmine.Named{ID: *body.TimeEntry.ActivityID},
			Hours:     *body.TimeEntry.Hours,
			SpentOn:   *body.TimeEntry.SpentOn,
			CreatedOn: now,
			UpdatedOn: now,
		}
		if body.TimeEntry.IssueID != nil {
			entry.Issue = &redmine.IssueRef{ID: *body.TimeEntry.IssueID}
		}
		if body.TimeEntry.Comments != nil {
			entry.Comments = *body.TimeEntry.Comments
		}
		data.TimeEntries = append(data.TimeEntries, entry)
		data.mu.Unlock()

		writeJSON(w, http.StatusCreated, map[string]any{"time_entry": entry})
	})

	r.Put("/time_entries/{id}.json", func(w http.ResponseWriter, req *http.Request) {
		id, _ := strconv.Atoi(chi.URLParam(req, "id"))
		var body struct {
			TimeEntry redmine.TimeEntryFields `json:"time_entry"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if msgs := validateEntry(body.TimeEntry, false); len(msgs) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": msgs})
			return
		}

		data.mu.Lock()
		defer data.mu.Unlock()
		for i := range data.TimeEntries {
			if data.TimeEntries[i].ID != id {
				continue
			}
			entry := &data.TimeEntries[i]
			if body.TimeEntry.ProjectID != nil {
				entry.Project = redmine.Named{ID: *body.TimeEntry.ProjectID}
			}
			if body.TimeEntry.IssueID != nil {
				entry.Issue = &redmine.IssueRef{ID: *body.TimeEntry.IssueID}
			}
			if body.TimeEntry.ActivityID != nil {
				entry.Activity = redmine.Named{ID: *body.TimeEntry.ActivityID}
			}
			if body.TimeEntry.Hours != nil {
				entry.Hours = *body.TimeEntry.Hours
			}
			if body.TimeEntry.Comments != nil {
				entry.Comments = *body.TimeEntry.Comments
			}
			if body.TimeEntry.SpentOn != nil {
				entry.SpentOn = *body.TimeEntry.SpentOn
			}
			entry.UpdatedOn = time.Now().UTC()
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, req)
	})

	r.Delete("/time_entries/{id}.json", func(w http.ResponseWriter, req *http.Request) {
		id, _ := strconv.Atoi(chi.URLParam(req, "id"))
		data.mu.Lock()
		defer data.mu.Unlock()
		for i := range data.TimeEntries {
			if data.TimeEntries[i].ID == id {
				data.TimeEntries = append(data.TimeEntries[:i], data.TimeEntries[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		http.NotFound(w, req)
	})

	r.Post("/issues.json", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Issue redmine.IssueFields `json:"issue"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var msgs []string
		if body.Issue.ProjectID == nil {
			msgs = append(msgs, "Project cannot be blank")
		}
		if body.Issue.Subject == nil || *body.Issue.Subject == "" {
			msgs = append(msgs, "Subject cannot be blank")
		}
		if len(msgs) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": msgs})
			return
		}

		data.mu.Lock()
		now := time.Now().UTC()
		issue := redmine.Issue{
			ID:        data.NextID(),
			Project:   redmine.Named{ID: *body.Issue.ProjectID},
			Subject:   *body.Issue.Subject,
			CreatedOn: now,
			UpdatedOn: now,
		}
		if body.Issue.Description != nil {
			issue.Description = *body.Issue.Description
		}
		if body.Issue.PriorityID != nil {
			issue.Priority = &redmine.Named{ID: *body.Issue.PriorityID}
		}
		if body.Issue.DueDate != nil {
			issue.DueDate = body.Issue.DueDate
		}
		data.Issues = append(data.Issues, issue)
		data.mu.Unlock()

		writeJSON(w, http.StatusCreated, map[string]any{"issue": issue})
	})

	r.Put("/issues/{id}.json", func(w http.ResponseWriter, req *http.Request) {
		id, _ := strconv.Atoi(chi.URLParam(req, "id"))
		var body struct {
			Issue redmine.IssueFields `json:"issue"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data.mu.Lock()
		defer data.mu.Unlock()
		for i := range data.Issues {
			if data.Issues[i].ID != id {
				continue
			}
			issue := &data.Issues[i]
			if body.Issue.Subject != nil {
				issue.Subject = *body.Issue.Subject
			}
			if body.Issue.Description != nil {
				issue.Description = *body.Issue.Description
			}
			if body.Issue.StatusID != nil {
				issue.Status = &redmine.Named{ID: *body.Issue.StatusID}
			}
			if body.Issue.PriorityID != nil {
				issue.Priority = &redmine.Named{ID: *body.Issue.PriorityID}
			}
			if body.Issue.DueDate != nil {
				issue.DueDate = body.Issue.DueDate
			}
			issue.UpdatedOn = time.Now().UTC()
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, req)
	})

	return r
}

func validateEntry(fields redmine.TimeEntryFields, create bool) []string {
	var msgs []string
	if create {
		if fields.ProjectID == nil {
			msgs = append(msgs, "Project cannot be blank")
		}
		if fields.ActivityID == nil {
			msgs = append(msgs, "Activity cannot be blank")
		}
		if fields.SpentOn == nil {
			msgs = append(msgs, "Date cannot be blank")
		}
		if fields.Hours == nil {
			msgs = append(msgs, "Hours cannot be blank")
		}
	}
	if fields.Hours != nil && *fields.Hours <= 0 {
		msgs = append(msgs, "Hours must be greater than 0")
	}
	return msgs
}

func requireKey(data *Data) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			data.mu.Lock()
			expected := data.APIKey
			data.mu.Unlock()
			if expected != "" && req.Header.Get("X-Redmine-API-Key") != expected {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"errors": []string{"Invalid API key"}})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// writePage slices the matched set by limit/offset and wraps it in the list
// envelope. Endpoints mirroring the enumerations omit total_count.
func writePage[T any](w http.ResponseWriter, req *http.Request, key string, matched []T, withTotal bool) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 25
	}

	page := []T{}
	if offset < len(matched) {
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		page = matched[offset:end]
	}

	envelope := map[string]any{
		key:      page,
		"offset": offset,
		"limit":  limit,
	}
	if withTotal {
		envelope["total_count"] = len(matched)
	}
	writeJSON(w, http.StatusOK, envelope)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Println("mockmine: encode response:", err)
	}
}
