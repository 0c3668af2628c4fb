package service

import (
	"strings"

	"suratadmin/internal/server/storage"
)

// TemplateList holds the canonical collection and the search text. The
// filtered view is always derived, never stored.
//
// TemplateList is not safe for concurrent use; Console guards it.
type TemplateList struct {
	all   []storage.Template
	query string

	started uint64 // last refresh handed out by Begin
	applied uint64 // refresh whose result is currently in all
}

// SetAll replaces the collection with a copy of list.
func (l *TemplateList) SetAll(list []storage.Template) {
	l.all = append(make([]storage.Template, 0, len(list)), list...)
}

func (l *TemplateList) SetQuery(q string) { l.query = q }

func (l *TemplateList) Query() string { return l.query }

func (l *TemplateList) Len() int { return len(l.all) }

// All returns a copy of the collection in store order.
func (l *TemplateList) All() []storage.Template {
	return append([]storage.Template(nil), l.all...)
}

// Find looks a template up by id.
func (l *TemplateList) Find(id string) (storage.Template, bool) {
	for _, t := range l.all {
		if t.ID == id {
			return t, true
		}
	}
	return storage.Template{}, false
}

// Filtered returns the templates whose name contains the query, ignoring
// case, in store order. An empty query matches everything.
func (l *TemplateList) Filtered() []storage.Template {
	needle := strings.ToLower(l.query)
	out := make([]storage.Template, 0, len(l.all))
	for _, t := range l.all {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			out = append(out, t)
		}
	}
	return out
}

// Begin marks the start of a refresh and returns its sequence number.
func (l *TemplateList) Begin() uint64 {
	l.started++
	return l.started
}

// Apply installs the result of refresh seq unless a refresh that started
// later has already been applied. It reports whether list was installed.
func (l *TemplateList) Apply(seq uint64, list []storage.Template) bool {
	if seq < l.applied {
		return false
	}
	l.applied = seq
	l.SetAll(list)
	return true
}
