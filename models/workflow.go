package models

// Role is a position in the attestation review hierarchy.
type Role string

const (
	RolePreparer Role = "preparer"
	RoleApprover Role = "approver"
	RoleAM       Role = "am"

	// RoleNone marks statuses that sit in nobody's workbasket
	// (terminal statuses such as completed).
	RoleNone Role = ""
)

// WorkflowStatusDef maps one observed status value to the role whose
// workbasket currently owns it and its position in the linear workflow
// sequence. OrderRank is a total order across all statuses.
type WorkflowStatusDef struct {
	StatusValue string `json:"status_value"`
	OwningRole  Role   `json:"owning_role"`
	OrderRank   int    `json:"order_rank"`
}

// DefaultWorkflowStatuses is the workflow definition the service is wired
// with at startup. Statuses observed in the feed that are absent here are
// unroutable: the engine fails closed and excludes them from queue
// results.
var DefaultWorkflowStatuses = []WorkflowStatusDef{
	{StatusValue: "new", OwningRole: RolePreparer, OrderRank: 0},
	{StatusValue: "in-preparation", OwningRole: RolePreparer, OrderRank: 1},
	{StatusValue: "returned-to-preparer", OwningRole: RolePreparer, OrderRank: 2},
	{StatusValue: "pending-approval", OwningRole: RoleApprover, OrderRank: 3},
	{StatusValue: "pending-am-review", OwningRole: RoleAM, OrderRank: 4},
	{StatusValue: "completed", OwningRole: RoleNone, OrderRank: 5},
}

// DataAdminMapping names the data administrator responsible for one
// division. Keyed by division.
type DataAdminMapping struct {
	Division     string `json:"division"`
	AdminName    string `json:"admin_name"`
	AdminContact string `json:"admin_contact"`
}

// DeadlineEntry is one attestation deadline rule for a role.
type DeadlineEntry struct {
	Role          Role   `json:"role"`
	Deadline      string `json:"deadline"`
	ReferenceLink string `json:"reference_link"`
}
