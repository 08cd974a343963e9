package dashboard

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"gradepulse/backend/internal/shared"
	"gradepulse/backend/internal/syncbus"
)

// Manager owns the dashboard views' lifetimes: each view is created lazily on
// first use, opened (initial fetch + sync subscription) once, and closed on
// shutdown. It stands in for the mount/unmount lifecycle the consumer
// contract describes.
type Manager struct {
	fetcher Fetcher
	bus     *syncbus.Bus
	log     *zap.Logger

	mu         sync.Mutex
	analytics  *View[shared.AggregateSnapshot]
	gradebooks map[string]*View[GradebookState]
	students   map[string]*View[StudentGradebookState]
	parents    map[string]*View[ParentState]
}

// NewManager creates a view manager.
func NewManager(fetcher Fetcher, bus *syncbus.Bus, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		fetcher:    fetcher,
		bus:        bus,
		log:        log,
		gradebooks: make(map[string]*View[GradebookState]),
		students:   make(map[string]*View[StudentGradebookState]),
		parents:    make(map[string]*View[ParentState]),
	}
}

// Analytics returns the admin analytics view, opening it on first use.
func (m *Manager) Analytics(ctx context.Context) *View[shared.AggregateSnapshot] {
	m.mu.Lock()
	view := m.analytics
	if view == nil {
		view = NewView("admin-analytics", syncbus.ChannelAnalytics, m.bus, m.log,
			refreshAnalytics(m.fetcher))
		m.analytics = view
	}
	m.mu.Unlock()

	view.Open(ctx)
	return view
}

// Gradebook returns the gradebook-manager view for one teacher/subject,
// opening it on first use.
func (m *Manager) Gradebook(ctx context.Context, teacherID, subjectName string) *View[GradebookState] {
	key := teacherID + "|" + subjectName

	m.mu.Lock()
	view := m.gradebooks[key]
	if view == nil {
		view = NewView("gradebook-manager:"+key, syncbus.ChannelGradebookManager, m.bus, m.log,
			refreshGradebook(m.fetcher, teacherID, subjectName))
		m.gradebooks[key] = view
	}
	m.mu.Unlock()

	view.Open(ctx)
	return view
}

// StudentGradebook returns the gradebook view for one student, opening it on
// first use.
func (m *Manager) StudentGradebook(ctx context.Context, studentID string) *View[StudentGradebookState] {
	m.mu.Lock()
	view := m.students[studentID]
	if view == nil {
		view = NewView("student-gradebook:"+studentID, syncbus.ChannelStudentGradebook, m.bus, m.log,
			refreshStudentGradebook(m.fetcher, studentID))
		m.students[studentID] = view
	}
	m.mu.Unlock()

	view.Open(ctx)
	return view
}

// Parent returns the parent dashboard view for a set of children, opening it
// on first use. An empty set covers every student in the analytics payload.
func (m *Manager) Parent(ctx context.Context, studentIDs []string) *View[ParentState] {
	key := parentKey(studentIDs)

	m.mu.Lock()
	view := m.parents[key]
	if view == nil {
		view = NewView("parent-dashboard:"+key, syncbus.ChannelParentDashboard, m.bus, m.log,
			refreshParent(m.fetcher, studentIDs))
		m.parents[key] = view
	}
	m.mu.Unlock()

	view.Open(ctx)
	return view
}

// CloseAll closes every open view. Outstanding refreshes resolve silently
// into discarded results.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.analytics != nil {
		m.analytics.Close()
	}
	for _, v := range m.gradebooks {
		v.Close()
	}
	for _, v := range m.students {
		v.Close()
	}
	for _, v := range m.parents {
		v.Close()
	}
}

func parentKey(studentIDs []string) string {
	if len(studentIDs) == 0 {
		return "*"
	}
	ids := make([]string, len(studentIDs))
	copy(ids, studentIDs)
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
