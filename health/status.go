package health

import (
	"regexp"
	"strings"
	"time"
)

// Probe endpoints are reachable from the widget, so anything that looks
// like an address, path or credential is scrubbed from messages.
var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|wss?)://[^\s]+`)
	unixPathRegex   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one dependency, or the rolled-up system.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "degraded", "unhealthy"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"subStatuses,omitempty"`
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool { return s.Status == "healthy" }

// IsDegraded reports whether the status is degraded.
func (s Status) IsDegraded() bool { return s.Status == "degraded" }

// IsUnhealthy reports whether the status is unhealthy.
func (s Status) IsUnhealthy() bool { return s.Status == "unhealthy" }

// NewHealthy builds a healthy status for a dependency.
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    "healthy",
		Message:   Sanitize(message),
		Timestamp: time.Now(),
	}
}

// NewDegraded builds a degraded status. Degraded dependencies still
// serve requests, typically through a fallback.
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Status:    "degraded",
		Message:   Sanitize(message),
		Timestamp: time.Now(),
	}
}

// NewUnhealthy builds an unhealthy status for a dependency.
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Status:    "unhealthy",
		Message:   Sanitize(message),
		Timestamp: time.Now(),
	}
}

// FromError builds an unhealthy status from a dependency error.
func FromError(component string, err error) Status {
	if err == nil {
		return NewHealthy(component, "ok")
	}
	return NewUnhealthy(component, err.Error())
}

// Sanitize strips addresses, paths and credential-looking fragments
// from a message before it is served on a probe endpoint.
func Sanitize(message string) string {
	if message == "" {
		return ""
	}
	s := urlRegex.ReplaceAllString(message, "[URL]")
	s = unixPathRegex.ReplaceAllString(s, "[PATH]")
	s = ipAddrRegex.ReplaceAllString(s, "[IP]")
	s = portRegex.ReplaceAllString(s, "[PORT]")
	lower := strings.ToLower(s)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") ||
		strings.Contains(lower, "key") || strings.Contains(lower, "secret") ||
		strings.Contains(lower, "credential") {
		s = credentialRegex.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// Aggregate rolls sub-statuses up into one status. Any unhealthy
// dependency makes the system unhealthy; otherwise any degraded one
// makes it degraded.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "no dependencies registered")
	}

	hasUnhealthy := false
	hasDegraded := false
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			hasUnhealthy = true
		case sub.IsDegraded():
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case hasUnhealthy:
		status = NewUnhealthy(component, "one or more dependencies are unhealthy")
	case hasDegraded:
		status = NewDegraded(component, "one or more dependencies are degraded")
	default:
		status = NewHealthy(component, "all dependencies are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}
