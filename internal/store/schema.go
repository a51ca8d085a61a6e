package store

// Kind is the storage type of an indexed field. It drives the conversion
// between a record's JSON representation and the SQLite column value, and
// back: without it a boolean written as 0/1 could not be restored faithfully.
type Kind int

const (
	KindInt Kind = iota
	KindText
	KindBool
)

// Index is one declared secondary-index field of a collection.
type Index struct {
	Name string
	Kind Kind
}

// Schema declares a collection's name and its indexed fields. Field names
// must match the entity's JSON tags: the primary key and the secondary
// indexes are the exact set of fields kept in plaintext columns, everything
// else is sealed into the payload blob. The set is fixed at store-open time;
// changing it requires a schema migration.
type Schema struct {
	Name    string
	Key     string
	AutoKey bool // key assigned locally by the store (AUTOINCREMENT)
	Indexes []Index
}

// indexed reports whether field is part of the plaintext column set.
func (s Schema) indexed(field string) bool {
	if field == s.Key {
		return true
	}
	for _, idx := range s.Indexes {
		if idx.Name == field {
			return true
		}
	}
	return false
}

// index looks up a declared secondary index by field name.
func (s Schema) index(field string) (Index, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == field {
			return idx, true
		}
	}
	return Index{}, false
}

// columns returns the plaintext column names, key first.
func (s Schema) columns() []string {
	cols := []string{s.Key}
	for _, idx := range s.Indexes {
		cols = append(cols, idx.Name)
	}
	return cols
}

// The fixed collection set. Table definitions live in the migration files
// and must stay in agreement with these descriptors.
var (
	Projects = Schema{Name: "projects", Key: "id",
		Indexes: []Index{{"updated_on", KindText}}}
	Issues = Schema{Name: "issues", Key: "id",
		Indexes: []Index{{"updated_on", KindText}, {"closed_on", KindText}}}
	Activities = Schema{Name: "activities", Key: "id",
		Indexes: []Index{{"active", KindBool}}}
	Priorities = Schema{Name: "priorities", Key: "id",
		Indexes: []Index{{"is_default", KindBool}, {"active", KindBool}}}
	Statuses = Schema{Name: "statuses", Key: "id",
		Indexes: []Index{{"is_closed", KindBool}}}
	Entries = Schema{Name: "entries", Key: "id",
		Indexes: []Index{{"spent_on", KindText}, {"updated_on", KindText}}}
	Tasks = Schema{Name: "tasks", Key: "id", AutoKey: true,
		Indexes: []Index{{"created_at", KindText}, {"closed_at", KindText}}}
)
