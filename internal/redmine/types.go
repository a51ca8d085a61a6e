package redmine

import "time"

// Named is the id+name reference Redmine embeds all over its JSON.
type Named struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// IssueRef is the id-only issue reference carried by time entries.
type IssueRef struct {
	ID int `json:"id"`
}

// CustomField is a project- or issue-level custom field value.
type CustomField struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Value    any    `json:"value,omitempty"`
	Multiple bool   `json:"multiple,omitempty"`
}

type Project struct {
	ID              int           `json:"id"`
	Name            string        `json:"name"`
	Identifier      string        `json:"identifier"`
	Description     string        `json:"description,omitempty"`
	Trackers        []Named       `json:"trackers,omitempty"`
	IssueCategories []Named       `json:"issue_categories,omitempty"`
	CustomFields    []CustomField `json:"custom_fields,omitempty"`
	CreatedOn       time.Time     `json:"created_on"`
	UpdatedOn       time.Time     `json:"updated_on"`
}

type Issue struct {
	ID             int           `json:"id"`
	Project        Named         `json:"project"`
	Subject        string        `json:"subject"`
	Description    string        `json:"description,omitempty"`
	Tracker        *Named        `json:"tracker,omitempty"`
	Status         *Named        `json:"status,omitempty"`
	Priority       *Named        `json:"priority,omitempty"`
	Category       *Named        `json:"category,omitempty"`
	AssignedTo     *Named        `json:"assigned_to,omitempty"`
	CustomFields   []CustomField `json:"custom_fields,omitempty"`
	StartDate      *Date         `json:"start_date,omitempty"`
	DueDate        *Date         `json:"due_date,omitempty"`
	DoneRatio      int           `json:"done_ratio,omitempty"`
	EstimatedHours *float64      `json:"estimated_hours,omitempty"`
	IsPrivate      bool          `json:"is_private,omitempty"`
	CreatedOn      time.Time     `json:"created_on"`
	UpdatedOn      time.Time     `json:"updated_on"`
	ClosedOn       *time.Time    `json:"closed_on,omitempty"`
}

// Activity is a time entry activity enumeration value.
type Activity struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Priority is an issue priority enumeration value.
type Priority struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	Active    bool   `json:"active"`
}

type Status struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsClosed bool   `json:"is_closed"`
}

type TimeEntry struct {
	ID        int       `json:"id"`
	Project   Named     `json:"project"`
	Issue     *IssueRef `json:"issue,omitempty"`
	Activity  Named     `json:"activity"`
	User      *Named    `json:"user,omitempty"`
	Hours     float64   `json:"hours"`
	Comments  string    `json:"comments,omitempty"`
	SpentOn   Date      `json:"spent_on"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// Account is the authenticated user as reported by /my/account.
type Account struct {
	ID        int    `json:"id"`
	Login     string `json:"login"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Mail      string `json:"mail,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
}

// TimeEntryFields is the mutation payload for time entries. Nil fields are
// omitted from the request so the server leaves them untouched.
type TimeEntryFields struct {
	ProjectID  *int     `json:"project_id,omitempty"`
	IssueID    *int     `json:"issue_id,omitempty"`
	ActivityID *int     `json:"activity_id,omitempty"`
	Hours      *float64 `json:"hours,omitempty"`
	Comments   *string  `json:"comments,omitempty"`
	SpentOn    *Date    `json:"spent_on,omitempty"`
}

// IssueFields is the mutation payload for issues.
type IssueFields struct {
	ProjectID   *int    `json:"project_id,omitempty"`
	Subject     *string `json:"subject,omitempty"`
	Description *string `json:"description,omitempty"`
	TrackerID   *int    `json:"tracker_id,omitempty"`
	StatusID    *int    `json:"status_id,omitempty"`
	PriorityID  *int    `json:"priority_id,omitempty"`
	CategoryID  *int    `json:"category_id,omitempty"`
	DueDate     *Date   `json:"due_date,omitempty"`
}
