package models

// DefaultDeadlines ships with the deployment and serves until an operator
// loads the scraped reference tables through the manual refresh trigger.
var DefaultDeadlines = []Row{
	{"role": string(RolePreparer), "deadline": "5th business day of the month", "reference_link": "https://intranet/attestation/deadlines#preparer"},
	{"role": string(RoleApprover), "deadline": "7th business day of the month", "reference_link": "https://intranet/attestation/deadlines#approver"},
	{"role": string(RoleAM), "deadline": "10th business day of the month", "reference_link": "https://intranet/attestation/deadlines#am"},
}
