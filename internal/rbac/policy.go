package rbac

import "github.com/complyard/complyard/internal/models"

// Actions checked against the policy table.
const (
	ActionRead  = "read"
	ActionWrite = "write"
	ActionPurge = "purge"
	ActionUse   = "use"
)

// Resource families. Every route group the router registers must name one of
// these; Validate catches a route family that was added without a policy.
const (
	ResourceRisks             = "risks"
	ResourceIncidents         = "incidents"
	ResourceGovernanceItems   = "governance_items"
	ResourceComplianceFwks    = "compliance_frameworks"
	ResourceComplianceReqs    = "compliance_requirements"
	ResourceComplianceCtrls   = "compliance_controls"
	ResourceThreats           = "threats"
	ResourceConfigurations    = "configurations"
	ResourceUsers             = "users"
	ResourceAuditLogs         = "audit_logs"
	ResourceTrainingCourses   = "training_courses"
	ResourceTrainingQuizzes   = "training_quizzes"
	ResourceTrainingQuestions = "training_questions"
	ResourceTrainingAttempts  = "training_attempts"
	ResourceChat              = "chat"
)

// Rule grants an action on a resource to a role. Role inheritance
// (admin > moderator > user > guest) means a rule names the least privileged
// role that may act.
type Rule struct {
	Role     string
	Resource string
	Action   string
}

// policies is the authoritative route-family permission table. Role lists
// are not repeated at route registration sites; the router only names the
// resource family and action.
var policies = []Rule{
	// Risk register, governance, compliance, threat catalogue, configuration
	// items: readable by everyone, writable by regular users and up.
	{models.RoleGuest, ResourceRisks, ActionRead},
	{models.RoleUser, ResourceRisks, ActionWrite},
	{models.RoleGuest, ResourceGovernanceItems, ActionRead},
	{models.RoleUser, ResourceGovernanceItems, ActionWrite},
	{models.RoleGuest, ResourceComplianceFwks, ActionRead},
	{models.RoleUser, ResourceComplianceFwks, ActionWrite},
	{models.RoleGuest, ResourceComplianceReqs, ActionRead},
	{models.RoleUser, ResourceComplianceReqs, ActionWrite},
	{models.RoleGuest, ResourceComplianceCtrls, ActionRead},
	{models.RoleUser, ResourceComplianceCtrls, ActionWrite},
	{models.RoleGuest, ResourceThreats, ActionRead},
	{models.RoleUser, ResourceThreats, ActionWrite},
	{models.RoleGuest, ResourceConfigurations, ActionRead},
	{models.RoleUser, ResourceConfigurations, ActionWrite},

	// Incident write paths need a moderator.
	{models.RoleGuest, ResourceIncidents, ActionRead},
	{models.RoleModerator, ResourceIncidents, ActionWrite},

	// User management is moderator-read, admin-write.
	{models.RoleModerator, ResourceUsers, ActionRead},
	{models.RoleAdmin, ResourceUsers, ActionWrite},

	// Audit trail: admins only, purge is its own action.
	{models.RoleAdmin, ResourceAuditLogs, ActionRead},
	{models.RoleAdmin, ResourceAuditLogs, ActionPurge},

	// Awareness training: authoring needs a moderator, taking quizzes a user.
	{models.RoleGuest, ResourceTrainingCourses, ActionRead},
	{models.RoleModerator, ResourceTrainingCourses, ActionWrite},
	{models.RoleGuest, ResourceTrainingQuizzes, ActionRead},
	{models.RoleModerator, ResourceTrainingQuizzes, ActionWrite},
	{models.RoleGuest, ResourceTrainingQuestions, ActionRead},
	{models.RoleModerator, ResourceTrainingQuestions, ActionWrite},
	{models.RoleUser, ResourceTrainingAttempts, ActionRead},
	{models.RoleUser, ResourceTrainingAttempts, ActionWrite},

	// AI assistant.
	{models.RoleUser, ResourceChat, ActionUse},
}

// roleInheritance chains roles so that a grant to a lower role covers the
// higher ones.
var roleInheritance = [][2]string{
	{models.RoleAdmin, models.RoleModerator},
	{models.RoleModerator, models.RoleUser},
	{models.RoleUser, models.RoleGuest},
}

// Validate checks that every resource family in resources has at least one
// policy rule, returning the missing ones. Called at startup by the router
// so a route family cannot ship without a permission entry.
func Validate(resources []string) []string {
	known := make(map[string]bool, len(policies))
	for _, p := range policies {
		known[p.Resource] = true
	}

	var missing []string
	for _, r := range resources {
		if !known[r] {
			missing = append(missing, r)
		}
	}
	return missing
}
