package commsutil

import (
	"fmt"
	"strings"
)

// Default scheme and the subjects derived from it.
const (
	DefaultScheme          = "meetone://"
	SubjectOutbound        = "bridge.meetone.outbound"
	SubjectInbound         = "bridge.meetone.inbound"
	SubjectEventPrefix     = "bridge.meetone.events"
	SubjectRequests        = "bridge.meetone.requests"
	subjectTokenReplacer   = "_"
	defaultSchemeNameEmpty = "bridge"
)

// SchemeName strips the "://" suffix and makes the scheme safe as a subject token.
func SchemeName(scheme string) string {
	name := strings.TrimSuffix(strings.TrimSpace(scheme), "://")
	name = strings.NewReplacer(".", subjectTokenReplacer, "*", subjectTokenReplacer, ">", subjectTokenReplacer, " ", subjectTokenReplacer).Replace(name)
	if name == "" {
		return defaultSchemeNameEmpty
	}
	return name
}

// BuildOutboundSubject builds the subject URIs are published on for the host.
func BuildOutboundSubject(scheme string) string {
	return fmt.Sprintf("bridge.%s.outbound", SchemeName(scheme))
}

// BuildInboundSubject builds the subject the host posts response envelopes on.
func BuildInboundSubject(scheme string) string {
	return fmt.Sprintf("bridge.%s.inbound", SchemeName(scheme))
}

// BuildRequestSubject builds the subject callers send bridge requests on.
func BuildRequestSubject(scheme string) string {
	return fmt.Sprintf("bridge.%s.requests", SchemeName(scheme))
}

// BuildEventPrefix builds the prefix for request lifecycle event subjects.
func BuildEventPrefix(scheme string) string {
	return fmt.Sprintf("bridge.%s.events", SchemeName(scheme))
}

// BuildEventSubject builds a granular lifecycle event subject, e.g.
// bridge.meetone.events.resolved.eos_transfer.
func BuildEventSubject(prefix, kind, route string) string {
	safe := strings.NewReplacer("/", "_", ".", "_").Replace(route)
	if safe == "" {
		return prefix + "." + kind
	}
	return fmt.Sprintf("%s.%s.%s", prefix, kind, safe)
}
