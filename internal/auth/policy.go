package auth

import (
	"net/http"
	"strings"
)

// Policy decides which requests are exempt from auth and which role each
// request requires.
type Policy interface {
	IsExempt(r *http.Request) bool
	RequiredRole(r *http.Request) (Role, bool)
}

// DefaultPolicy exempts health/metrics/login, requires admin for catalog
// mutations, operator for other writes, and viewer for reads.
type DefaultPolicy struct {
	exemptPaths   map[string]struct{}
	adminPrefixes []string
}

// NewDefaultPolicy constructs the default policy. adminPrefixes lists path
// prefixes whose mutating methods require the admin role.
func NewDefaultPolicy(exemptPaths []string, adminPrefixes []string) DefaultPolicy {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		exempt[path] = struct{}{}
	}
	return DefaultPolicy{exemptPaths: exempt, adminPrefixes: adminPrefixes}
}

// IsExempt reports whether the request bypasses auth entirely.
func (p DefaultPolicy) IsExempt(r *http.Request) bool {
	if r == nil {
		return false
	}
	_, ok := p.exemptPaths[r.URL.Path]
	return ok
}

// RequiredRole returns the minimum role for the request.
func (p DefaultPolicy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return RoleViewer, true
	}
	for _, prefix := range p.adminPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return RoleAdmin, true
		}
	}
	return RoleOperator, true
}
