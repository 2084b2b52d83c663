package command

// IntentKind identifies what a chat message asks the workflow to do.
type IntentKind string

const (
	IntentSubmitForm              IntentKind = "SUBMIT_FORM"
	IntentBeginSubmission         IntentKind = "BEGIN_SUBMISSION"
	IntentDeptDecision            IntentKind = "DEPT_DECISION"
	IntentTreasuryUpdate          IntentKind = "TREASURY_UPDATE"
	IntentCheckStatus             IntentKind = "CHECK_STATUS"
	IntentHelp                    IntentKind = "HELP"
	IntentContinueRejectionReason IntentKind = "CONTINUE_REJECTION_REASON"
	IntentCancel                  IntentKind = "CANCEL"
	IntentUnrecognized            IntentKind = "UNRECOGNIZED"
)

// DeptAction is the department head's decision.
type DeptAction string

const (
	ActionApprove DeptAction = "APPROVE"
	ActionReject  DeptAction = "REJECT"
)

// TreasuryCode is the treasury's progress update code.
type TreasuryCode int

const (
	CodeNotProcessed TreasuryCode = 1
	CodeInProgress   TreasuryCode = 2
	CodeProcessed    TreasuryCode = 3
)

// SubmissionForm carries the five fields of a procurement request.
type SubmissionForm struct {
	FullName string `validate:"required,max=120"`
	Item     string `validate:"required,max=500"`
	Quantity string `validate:"required,max=64"`
	Link     string `validate:"required,max=2048"`
	Reason   string `validate:"required,max=1000"`
}

// Intent is the typed result of parsing one chat message.
type Intent struct {
	Kind         IntentKind
	Form         *SubmissionForm
	Action       DeptAction
	Code         TreasuryCode
	TicketNumber string
	Reason       string
	// AwaitingReason is set on a rejection without reason; the sender's next
	// message will arrive as IntentContinueRejectionReason.
	AwaitingReason bool
}
