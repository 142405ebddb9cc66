package auth

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/gofiber/fiber/v2"
)

// Decision is the outcome of evaluating a request against an AccessPolicy
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionUnauthenticated
	DecisionForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionForbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// AccessRule maps a method and path pattern to the roles allowed to use it.
//
// Pattern segments use glob syntax with "/" as separator: "*" matches within
// one segment and "**" across segments. A pattern ending in "/**" also
// matches the bare prefix, so "/api/roles/**" covers "/api/roles".
// Roles has ANY-of semantics; an empty Roles list only requires an
// authenticated identity. Public rules admit anonymous requests.
// OwnerSegment, when positive, also admits the identity whose subject equals
// that 1-based path segment.
type AccessRule struct {
	Method       string
	Pattern      string
	Roles        []string
	Public       bool
	OwnerSegment int
}

type compiledRule struct {
	rule     AccessRule
	method   string
	matchers []glob.Glob
}

func (r compiledRule) clone() AccessRule {
	out := r.rule
	out.Roles = append([]string(nil), r.rule.Roles...)
	return out
}

func (r compiledRule) matches(method, path string) bool {
	if r.method != "" && r.method != method {
		return false
	}
	for _, m := range r.matchers {
		if m.Match(path) {
			return true
		}
	}
	return false
}

// AccessPolicy is an ordered, immutable rule table. The first matching rule
// decides; when nothing matches any authenticated identity is allowed.
type AccessPolicy struct {
	rules []compiledRule
}

// NewAccessPolicy compiles rules in declaration order
func NewAccessPolicy(rules ...AccessRule) (*AccessPolicy, error) {
	p := &AccessPolicy{rules: make([]compiledRule, 0, len(rules))}
	for i, rule := range rules {
		cr, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("access rule %d (%s %s): %w", i, rule.Method, rule.Pattern, err)
		}
		p.rules = append(p.rules, cr)
	}
	return p, nil
}

// MustAccessPolicy is NewAccessPolicy that panics on invalid patterns
func MustAccessPolicy(rules ...AccessRule) *AccessPolicy {
	p, err := NewAccessPolicy(rules...)
	if err != nil {
		panic(err)
	}
	return p
}

func compileRule(rule AccessRule) (compiledRule, error) {
	pattern := strings.TrimSpace(rule.Pattern)
	if pattern == "" || !strings.HasPrefix(pattern, "/") {
		return compiledRule{}, fmt.Errorf("pattern must start with /")
	}

	for _, role := range rule.Roles {
		if err := ValidateRoleName(role); err != nil {
			return compiledRule{}, err
		}
	}

	if rule.OwnerSegment < 0 {
		return compiledRule{}, fmt.Errorf("owner segment must not be negative")
	}

	// paths are matched case-folded so /API/Roles cannot dodge a rule
	pattern = strings.ToLower(pattern)
	patterns := []string{normalizePath(pattern)}
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		patterns = append(patterns, normalizePath(prefix))
	}

	cr := compiledRule{
		rule:   rule,
		method: strings.ToUpper(strings.TrimSpace(rule.Method)),
	}
	if cr.method == "*" {
		cr.method = ""
	}
	cr.rule.Roles = append([]string(nil), rule.Roles...)

	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return compiledRule{}, err
		}
		cr.matchers = append(cr.matchers, g)
	}
	return cr, nil
}

// Match returns the first rule matching method and path
func (p *AccessPolicy) Match(method, path string) (AccessRule, bool) {
	if p == nil {
		return AccessRule{}, false
	}
	method = strings.ToUpper(method)
	path = strings.ToLower(normalizePath(path))
	for _, r := range p.rules {
		if r.matches(method, path) {
			return r.clone(), true
		}
	}
	return AccessRule{}, false
}

// Evaluate decides whether identity may call method on path. A zero
// identity is anonymous.
func (p *AccessPolicy) Evaluate(method, path string, identity Identity) Decision {
	rule, ok := p.Match(method, path)
	if !ok {
		if identity.IsZero() {
			return DecisionUnauthenticated
		}
		return DecisionAllow
	}

	if rule.Public {
		return DecisionAllow
	}

	if identity.IsZero() {
		return DecisionUnauthenticated
	}

	if len(rule.Roles) == 0 || identity.HasAnyRole(rule.Roles...) {
		return DecisionAllow
	}

	if rule.OwnerSegment > 0 && pathSegment(path, rule.OwnerSegment) == identity.Subject {
		return DecisionAllow
	}

	return DecisionForbidden
}

// Authorize is Evaluate expressed as an error: nil, ErrUnauthenticated, or
// ErrInsufficientRole.
func (p *AccessPolicy) Authorize(method, path string, identity Identity) error {
	switch p.Evaluate(method, path, identity) {
	case DecisionAllow:
		return nil
	case DecisionUnauthenticated:
		return ErrUnauthenticated
	default:
		return ErrInsufficientRole
	}
}

// Rules returns a copy of the rule table
func (p *AccessPolicy) Rules() []AccessRule {
	out := make([]AccessRule, len(p.rules))
	for i, r := range p.rules {
		out[i] = r.clone()
	}
	return out
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

func pathSegment(path string, n int) string {
	parts := strings.Split(strings.Trim(normalizePath(path), "/"), "/")
	if n < 1 || n > len(parts) {
		return ""
	}
	return parts[n-1]
}

// DefaultRules is the rule table for the routes registered by NewHTTPApp
func DefaultRules() []AccessRule {
	return []AccessRule{
		{Method: fiber.MethodGet, Pattern: "/health", Public: true},
		{Method: fiber.MethodPost, Pattern: "/api/auth/login", Public: true},
		{Method: fiber.MethodPost, Pattern: "/api/auth/register", Public: true},
		{Method: fiber.MethodPost, Pattern: "/api/auth/verify", Public: true},
		{Method: fiber.MethodPost, Pattern: "/api/auth/logout", Public: true},
		{Method: fiber.MethodGet, Pattern: "/api/auth/me"},
		{Pattern: "/api/roles/**", Roles: []string{RoleAdmin}},
		{Pattern: "/api/users/roles", Roles: []string{RoleAdmin}},
		{Method: fiber.MethodGet, Pattern: "/api/users/*", Roles: []string{RoleAdmin}, OwnerSegment: 3},
		{Method: fiber.MethodPut, Pattern: "/api/users/*", Roles: []string{RoleAdmin}, OwnerSegment: 3},
		{Pattern: "/api/users/**", Roles: []string{RoleAdmin}},
		{Pattern: "/api/profile/**", Roles: []string{RoleAdmin, RoleOrdinary}},
	}
}
