package portal

// Event types understood by the remote request worker. Each maps to one
// portal page fetch performed under the user's session.
const (
	EventMarks          = "marks"
	EventHomeworks      = "homeworks"
	EventNews           = "news"
	EventNewsIndividual = "news-individual"
	EventLogin          = "login"
)

// Request sub-sections. Each is tracked as an independent sub-resource.
var RequestSections = []string{"questionnaire", "doc", "reference"}

// EventRequests returns the worker event type for one requests sub-section.
func EventRequests(section string) string { return "requests-" + section }

// IsLogin reports whether the event contends for the login gate rather than
// the data-fetch gate.
func IsLogin(eventType string) bool { return eventType == EventLogin }
