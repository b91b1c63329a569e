// Package account defines sideseat's transactional entities — the things
// that live in Postgres/SQLite rather than the analytics store: users,
// organizations, projects, memberships, API keys, and favorites — plus the
// totally-ordered Scope and Role enums spec.md §4.9/§9 build authorization
// on top of.
package account

import "time"

// Scope is an API key's permission level. Scopes are totally ordered:
// read < ingest < write < full.
type Scope int

const (
	ScopeRead Scope = iota
	ScopeIngest
	ScopeWrite
	ScopeFull
)

func (s Scope) String() string {
	switch s {
	case ScopeRead:
		return "read"
	case ScopeIngest:
		return "ingest"
	case ScopeWrite:
		return "write"
	case ScopeFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseScope parses a scope string, defaulting to ScopeRead on no match so
// callers get the least-privileged scope rather than an error on garbage
// input.
func ParseScope(s string) (Scope, bool) {
	switch s {
	case "read":
		return ScopeRead, true
	case "ingest":
		return ScopeIngest, true
	case "write":
		return ScopeWrite, true
	case "full":
		return ScopeFull, true
	default:
		return ScopeRead, false
	}
}

// Satisfies reports whether s meets or exceeds the required scope.
func (s Scope) Satisfies(required Scope) bool { return s >= required }

// Role is a membership's level within an organization or project. Roles
// are totally ordered: viewer < member < admin < owner.
type Role int

const (
	RoleViewer Role = iota
	RoleMember
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

func ParseRole(s string) (Role, bool) {
	switch s {
	case "viewer":
		return RoleViewer, true
	case "member":
		return RoleMember, true
	case "admin":
		return RoleAdmin, true
	case "owner":
		return RoleOwner, true
	default:
		return RoleViewer, false
	}
}

// Satisfies reports whether r meets or exceeds the required role.
func (r Role) Satisfies(required Role) bool { return r >= required }

// AuthMethod is how a User authenticated last, recorded for audit and to
// drive which login affordances a client should show.
type AuthMethod string

const (
	AuthMethodBootstrap AuthMethod = "bootstrap"
	AuthMethodPassword  AuthMethod = "password"
	AuthMethodOAuth     AuthMethod = "oauth"
)

// User is a human account. PasswordHash is set only for AuthMethodPassword
// users; it's a bcrypt hash, never a plaintext password.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	AuthMethod   AuthMethod
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Organization is the top-level billing/ownership boundary.
type Organization struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

// Project is a named ingestion/query namespace within an Organization. Its
// ID is the project_id carried on every ingested span (spec.md §3, pattern
// `[A-Za-z0-9_-]{1,64}`).
type Project struct {
	ID             string
	OrganizationID string
	Name           string
	CreatedAt      time.Time
}

// Membership binds a User to an Organization (ProjectID empty) or to a
// specific Project (ProjectID set) at a Role.
type Membership struct {
	ID             string
	UserID         string
	OrganizationID string
	ProjectID      string
	Role           Role
	CreatedAt      time.Time
}

// ApiKey is a project-scoped credential. Only Prefix is ever displayed
// back to a user after creation; SecretHash is an argon2id hash of the
// full secret, never the secret itself.
type ApiKey struct {
	ID         string
	ProjectID  string
	Prefix     string
	SecretHash string
	Scope      Scope
	Name       string
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

// Favorite records a user's pinned reference to a resource (typically a
// trace) for quick recall, keyed by an opaque resource id the caller
// interprets (trace_id, saved query id, etc).
type Favorite struct {
	ID         string
	UserID     string
	ProjectID  string
	ResourceID string
	Kind       string
	CreatedAt  time.Time
}
