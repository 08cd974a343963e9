package syncbus

// Channel names, one per consuming dashboard feature. A grade mutation fans
// out to all of them so every dependent view refreshes, regardless of which
// surface submitted the change.
const (
	ChannelGradebookManager = "grades:gradebook-manager"
	ChannelStudentGradebook = "grades:student-gradebook"
	ChannelParentDashboard  = "grades:parent-dashboard"
	ChannelAnalytics        = "grades:analytics"
)

// FanoutChannels lists every channel a grade mutation is announced on.
func FanoutChannels() []string {
	return []string{
		ChannelGradebookManager,
		ChannelStudentGradebook,
		ChannelParentDashboard,
		ChannelAnalytics,
	}
}
