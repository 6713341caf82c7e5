// Package chat answers chat messages by routing them to helper search, policy retrieval
// or a fixed referral.
package chat

import (
	"regexp"

	"github.com/hyperjump/helpmate/internal/models"
)

// Route is the path a chat message takes.
type Route int

const (
	// RouteFallback answers with the referral text.
	RouteFallback Route = iota
	// RouteHelper searches the helper catalog.
	RouteHelper
	// RoutePolicy answers from the policy knowledge base.
	RoutePolicy
)

func (r Route) String() string {
	switch r {
	case RouteHelper:
		return "helper"
	case RoutePolicy:
		return "policy"
	default:
		return "fallback"
	}
}

type rule struct {
	route   Route
	pattern *regexp.Regexp
}

// defaultRules are checked in order; the first match wins, so helper vocabulary is listed
// before policy vocabulary.
var defaultRules = []rule{
	{RouteHelper, regexp.MustCompile(`(?i)helper|maid`)},
	{RouteHelper, regexp.MustCompile(`(?i)\b(nann(y|ies)|caregivers?|babysitters?|housekeepers?)\b`)},
	{RouteHelper, regexp.MustCompile(`(?i)\b(find|hire|hiring|recommend|looking for|need|want)\b.*\bdomestic workers?\b`)},
	{RoutePolicy, regexp.MustCompile(`(?i)\b(work permits?|levy|levies|concession|security bond|insurance|rest days?|days? off|` +
		`medical (exam|examination|check-?up)s?|six-monthly|settling[- ]in|salary payments?|pay(ing)? salary|` +
		`employment agenc(y|ies)|repatriat(e|ion)|ministry of manpower|foreign domestic workers?|migrant domestic workers?|` +
		`employer('s)? (obligations|responsibilities|duties)|in-principle approval|home leave|upkeep|accommodation)\b`)},
	{RoutePolicy, regexp.MustCompile(`\b(MOM|MDWs?|FDWs?|SIP|IPA|WP)\b`)},
}

// Router classifies messages with a keyword rule table.
type Router struct {
	rules []rule
}

// NewRouter returns a router with the built-in helper and policy vocabulary.
func NewRouter() *Router {
	return &Router{rules: defaultRules}
}

// Route returns the path for message. An explicit mode always wins; otherwise the first
// matching rule decides, and a message matching nothing falls back.
func (r *Router) Route(message string, mode models.Mode) Route {
	switch mode {
	case models.ModeHelper:
		return RouteHelper
	case models.ModePolicy:
		return RoutePolicy
	}
	for _, rl := range r.rules {
		if rl.pattern.MatchString(message) {
			return rl.route
		}
	}
	return RouteFallback
}
