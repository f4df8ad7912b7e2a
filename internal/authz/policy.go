package authz

import (
	"database/sql"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Subject is the casbin subject a request is evaluated as.
type Subject string

const (
	SubjectAnonymous Subject = "anonymous"
	// SubjectPending is a signed-in user who still owes a TOTP code.
	SubjectPending Subject = "pending_2fa"
	SubjectUser    Subject = "user"

	guestOnly = "guest_only"
)

const routeModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// DefaultPolicies is the route allow-list written on first start.
var DefaultPolicies = [][]string{
	{"anonymous", "/healthz", "^GET$"},
	{"anonymous", "/metrics", "^GET$"},
	{"anonymous", "/auth/signin", "^(GET|POST)$"},
	{"anonymous", "/auth/verify-request", "^GET$"},
	{"anonymous", "/auth/error", "^GET$"},
	{"anonymous", "/auth/callback/email", "^GET$"},
	{"anonymous", "/auth/signed-out", "^(GET|POST)$"},
	{"anonymous", "/auth/ab/*", ".*"},
	{"pending_2fa", "/auth/2fa", "^(GET|POST)$"},
	{"user", "/*", ".*"},
	{guestOnly, "/auth/signin", "^(GET|POST)$"},
	{guestOnly, "/auth/verify-request", "^GET$"},
}

// DefaultGroupings lets signed-in and pending sessions reach everything
// anonymous visitors can.
var DefaultGroupings = [][]string{
	{"user", "anonymous"},
	{"pending_2fa", "anonymous"},
}

// RoutePolicy decides which paths each kind of session may reach.
type RoutePolicy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewRoutePolicy loads the policy stored in db, seeding the defaults when
// the table is empty.
func NewRoutePolicy(db *sql.DB) (*RoutePolicy, error) {
	m, err := model.NewModelFromString(routeModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	adapter := NewDatabaseAdapter(db)
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	n, err := adapter.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count policies: %w", err)
	}
	if n == 0 {
		if err := seed(enforcer); err != nil {
			return nil, err
		}
	}

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	return &RoutePolicy{enforcer: enforcer}, nil
}

func seed(e *casbin.SyncedEnforcer) error {
	for _, p := range DefaultPolicies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return fmt.Errorf("failed to seed policy %v: %w", p, err)
		}
	}
	for _, g := range DefaultGroupings {
		if _, err := e.AddGroupingPolicy(g[0], g[1]); err != nil {
			return fmt.Errorf("failed to seed grouping %v: %w", g, err)
		}
	}
	return nil
}

// Allowed reports whether sub may request method on path. Enforcement
// errors deny.
func (p *RoutePolicy) Allowed(sub Subject, path, method string) bool {
	ok, err := p.enforcer.Enforce(string(sub), path, method)
	return err == nil && ok
}

// GuestOnly reports whether path is a sign-in page that signed-in users
// should be bounced away from.
func (p *RoutePolicy) GuestOnly(path, method string) bool {
	ok, err := p.enforcer.Enforce(guestOnly, path, method)
	return err == nil && ok
}
