/*
policy.go - Per-role write policy

PURPOSE:
  Business policy that varies by who is writing: whether dates strictly
  before today are allowed, whether dates outside the current ledger
  year are allowed, and whether administrator batch writes may land on
  weekends and holidays. Carried as one explicit typed value instead of
  scattered booleans.
*/
package ledger

// Role identifies the acting party's authority level.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// WritePolicy configures what the ledger writer and span resolver permit
// for one submission.
type WritePolicy struct {
	// AllowBackdate permits effective dates strictly before today.
	AllowBackdate bool

	// AllowFutureYear permits effective dates outside the current
	// ledger year.
	AllowFutureYear bool

	// IncludeNonBusinessDays makes the span resolver keep weekends and
	// holidays for annual spans instead of skipping them. Administrator
	// batch entries only.
	IncludeNonBusinessDays bool
}

// PolicyFor returns the default write policy for a role. Members may not
// backdate or reach into other years; administrators may do both.
func PolicyFor(role Role) WritePolicy {
	switch role {
	case RoleAdmin:
		return WritePolicy{AllowBackdate: true, AllowFutureYear: true}
	default:
		return WritePolicy{}
	}
}
