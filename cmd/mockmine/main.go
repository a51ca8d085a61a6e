// mockmine runs a fake Redmine server with a small seeded dataset, handy for
// pointing the client at during development:
//
//	REDMINE_URL=http://localhost:8480 REDMINE_API_KEY=mockmine spender refresh
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/mockmine"
	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/redmine"
)

func main() {
	addr := flag.String("addr", ":8480", "listen address")
	apiKey := flag.String("api-key", "mockmine", "API key clients must present")
	flag.Parse()

	data := seed(*apiKey)
	fmt.Printf("mockmine listening on %s (api key %q)\n", *addr, *apiKey)
	if err := http.ListenAndServe(*addr, mockmine.NewRouter(data)); err != nil {
		fmt.Fprintf(os.Stderr, "mockmine: %v\n", err)
		os.Exit(1)
	}
}

func seed(apiKey string) *mockmine.Data {
	now := time.Now().UTC()
	return &mockmine.Data{
		APIKey:  apiKey,
		Account: redmine.Account{ID: 1, Login: "dev", Firstname: "Dev", Lastname: "Eloper"},
		Projects: []redmine.Project{
			{ID: 1, Name: "Backend", Identifier: "backend", CreatedOn: now.Add(-90 * 24 * time.Hour), UpdatedOn: now.Add(-time.Hour)},
			{ID: 2, Name: "Frontend", Identifier: "frontend", CreatedOn: now.Add(-60 * 24 * time.Hour), UpdatedOn: now.Add(-2 * time.Hour)},
			{ID: 3, Name: "Infrastructure", Identifier: "infra", CreatedOn: now.Add(-30 * 24 * time.Hour), UpdatedOn: now.Add(-26 * time.Hour)},
		},
		Issues: []redmine.Issue{
			{ID: 101, Project: redmine.Named{ID: 1, Name: "Backend"}, Subject: "Login times out behind proxy",
				Status: &redmine.Named{ID: 2, Name: "In Progress"}, CreatedOn: now.Add(-72 * time.Hour), UpdatedOn: now.Add(-3 * time.Hour)},
			{ID: 102, Project: redmine.Named{ID: 2, Name: "Frontend"}, Subject: "Datepicker off by one in DST week",
				Status: &redmine.Named{ID: 1, Name: "New"}, CreatedOn: now.Add(-48 * time.Hour), UpdatedOn: now.Add(-30 * time.Hour)},
			{ID: 103, Project: redmine.Named{ID: 3, Name: "Infrastructure"}, Subject: "Rotate registry credentials",
				Status: &redmine.Named{ID: 1, Name: "New"}, CreatedOn: now.Add(-24 * time.Hour), UpdatedOn: now.Add(-24 * time.Hour)},
		},
		Activities: []redmine.Activity{
			{ID: 8, Name: "Development", Active: true},
			{ID: 9, Name: "Meeting", Active: true},
			{ID: 10, Name: "Support", Active: false},
		},
		Priorities: []redmine.Priority{
			{ID: 1, Name: "Low", Active: true},
			{ID: 2, Name: "Normal", IsDefault: true, Active: true},
			{ID: 3, Name: "High", Active: true},
		},
		Statuses: []redmine.Status{
			{ID: 1, Name: "New"},
			{ID: 2, Name: "In Progress"},
			{ID: 5, Name: "Closed", IsClosed: true},
		},
		TimeEntries: []redmine.TimeEntry{
			{ID: 501, Project: redmine.Named{ID: 1, Name: "Backend"}, Issue: &redmine.IssueRef{ID: 101},
				Activity: redmine.Named{ID: 8, Name: "Development"}, Hours: 3.5, Comments: "proxy header debugging",
				SpentOn: redmine.Today().AddDays(-1), CreatedOn: now.Add(-20 * time.Hour), UpdatedOn: now.Add(-20 * time.Hour)},
			{ID: 502, Project: redmine.Named{ID: 2, Name: "Frontend"},
				Activity: redmine.Named{ID: 9, Name: "Meeting"}, Hours: 1, Comments: "sprint planning",
				SpentOn: redmine.Today(), CreatedOn: now.Add(-2 * time.Hour), UpdatedOn: now.Add(-2 * time.Hour)},
		},
	}
}
