package command

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

// Form field names, in the order they are listed to the requester.
const (
	FieldFullName = "full name"
	FieldItem     = "item"
	FieldQuantity = "quantity"
	FieldLink     = "link"
	FieldReason   = "reason"
)

// FormFields lists the submission labels in template order.
var FormFields = []string{FieldFullName, FieldItem, FieldQuantity, FieldLink, FieldReason}

var labelAliases = map[string]string{
	"full name":    FieldFullName,
	"name":         FieldFullName,
	"nama lengkap": FieldFullName,
	"item":         FieldItem,
	"nama barang":  FieldItem,
	"quantity":     FieldQuantity,
	"qty":          FieldQuantity,
	"jumlah":       FieldQuantity,
	"link":         FieldLink,
	"reason":       FieldReason,
	"alasan":       FieldReason,
}

// Parser turns chat text into intents. It holds the role bindings and the
// per-sender dialogue state.
type Parser struct {
	bindings      domain.RoleBindings
	conversations *ConversationStore
	validate      *validator.Validate
}

// NewParser builds a parser.
func NewParser(bindings domain.RoleBindings, conversations *ConversationStore) *Parser {
	return &Parser{
		bindings:      bindings,
		conversations: conversations,
		validate:      validator.New(),
	}
}

// Conversations exposes the dialogue store so callers can close a dialogue
// the workflow refused.
func (p *Parser) Conversations() *ConversationStore {
	return p.conversations
}

// Parse interprets one message from senderID.
func (p *Parser) Parse(senderID, raw string) (Intent, error) {
	text := strings.TrimSpace(raw)
	cmd, rest := splitCommand(text)

	if cmd == "/cancel" {
		p.conversations.Discard(senderID)
		return Intent{Kind: IntentCancel}, nil
	}

	if conv, ok := p.conversations.Peek(senderID); ok {
		switch conv.AwaitingField {
		case AwaitRejectionReason:
			p.conversations.Consume(senderID)
			if text == "" {
				return Intent{}, errorutil.NewParseError("a rejection reason is required")
			}
			return Intent{
				Kind:         IntentContinueRejectionReason,
				Action:       ActionReject,
				TicketNumber: conv.PendingTicketNumber,
				Reason:       text,
			}, nil
		case AwaitSubmissionForm:
			if cmd != "" {
				break
			}
			// approvers may still decide on tickets while a form is open
			if p.bindings.RoleOf(senderID) != domain.RoleRequester && isDecision(text) {
				p.conversations.Discard(senderID)
				intent, _, err := p.decision(senderID, text)
				return intent, err
			}
			return p.submit(senderID, text)
		}
	}

	switch cmd {
	case "/request":
		if rest == "" {
			p.conversations.Begin(senderID, AwaitSubmissionForm, "")
			return Intent{Kind: IntentBeginSubmission}, nil
		}
		return p.submit(senderID, rest)
	case "/help", "/start":
		return Intent{Kind: IntentHelp}, nil
	case "/cek", "/status":
		number := firstToken(rest)
		if number == "" {
			return Intent{}, errorutil.NewParseError("usage: " + cmd + " <ticket number>")
		}
		return Intent{Kind: IntentCheckStatus, TicketNumber: number}, nil
	case "":
	default:
		return Intent{Kind: IntentUnrecognized}, nil
	}

	if intent, matched, err := p.decision(senderID, text); matched {
		return intent, err
	}

	if isDigits(text) {
		return Intent{Kind: IntentCheckStatus, TicketNumber: text}, nil
	}
	return Intent{Kind: IntentUnrecognized}, nil
}

// decision recognizes the approver grammars. matched is false when text is
// not shaped like a decision at all.
func (p *Parser) decision(senderID, text string) (Intent, bool, error) {
	if !isDecision(text) {
		return Intent{}, false, nil
	}
	fields := strings.Fields(text)
	verb := strings.ToUpper(fields[0])
	number := fields[1]
	reason := restAfter(text, 2)

	switch p.bindings.RoleOf(senderID) {
	case domain.RoleDept:
		switch verb {
		case "1", "APPROVE":
			return Intent{Kind: IntentDeptDecision, Action: ActionApprove, TicketNumber: number}, true, nil
		case "2", "REJECT":
			intent := Intent{Kind: IntentDeptDecision, Action: ActionReject, TicketNumber: number, Reason: reason}
			if reason == "" {
				p.conversations.Begin(senderID, AwaitRejectionReason, number)
				intent.AwaitingReason = true
			}
			return intent, true, nil
		}
		return Intent{}, true, errorutil.NewParseError("department head replies with 1 <ticket> to approve or 2 <ticket> [reason] to reject")
	case domain.RoleTreasury:
		switch verb {
		case "1":
			return Intent{Kind: IntentTreasuryUpdate, Code: CodeNotProcessed, TicketNumber: number, Reason: reason}, true, nil
		case "2":
			return Intent{Kind: IntentTreasuryUpdate, Code: CodeInProgress, TicketNumber: number, Reason: reason}, true, nil
		case "3":
			return Intent{Kind: IntentTreasuryUpdate, Code: CodeProcessed, TicketNumber: number, Reason: reason}, true, nil
		}
		return Intent{}, true, errorutil.NewParseError("treasury replies with 1, 2 or 3 followed by the ticket number")
	}
	return Intent{}, true, errorutil.NewUnauthorized("you are not allowed to approve or update requests")
}

// isDecision reports whether text starts with a decision verb and a ticket.
func isDecision(text string) bool {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "1", "2", "3", "APPROVE", "REJECT":
		return true
	}
	return false
}

// submit parses a form body. An incomplete form keeps the dialogue open.
func (p *Parser) submit(senderID, body string) (Intent, error) {
	form, missing := ParseForm(body)
	if len(missing) > 0 {
		p.conversations.Begin(senderID, AwaitSubmissionForm, "")
		return Intent{}, errorutil.NewIncompleteForm(missing)
	}
	if err := p.validate.Struct(form); err != nil {
		p.conversations.Begin(senderID, AwaitSubmissionForm, "")
		return Intent{}, errorutil.NewValidationError("form values are too long", validationDetails(err))
	}
	p.conversations.Discard(senderID)
	return Intent{Kind: IntentSubmitForm, Form: form}, nil
}

// ParseForm extracts "label: value" lines. It returns the fields that were
// absent or empty, in template order.
func ParseForm(body string) (*SubmissionForm, []string) {
	values := make(map[string]string, len(FormFields))
	for _, line := range strings.Split(body, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field, known := labelAliases[normalizeLabel(label)]
		if !known {
			continue
		}
		if _, seen := values[field]; seen {
			continue
		}
		values[field] = strings.TrimSpace(value)
	}

	var missing []string
	for _, field := range FormFields {
		if values[field] == "" {
			missing = append(missing, field)
		}
	}
	return &SubmissionForm{
		FullName: values[FieldFullName],
		Item:     values[FieldItem],
		Quantity: values[FieldQuantity],
		Link:     values[FieldLink],
		Reason:   values[FieldReason],
	}, missing
}

func normalizeLabel(label string) string {
	label = strings.TrimLeft(strings.TrimSpace(label), "-*• ")
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

func validationDetails(err error) map[string]any {
	details := map[string]any{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return details
}

// splitCommand returns the lower-cased leading slash command and the text after it.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	end := strings.IndexFunc(text, unicode.IsSpace)
	if end < 0 {
		end = len(text)
	}
	cmd := strings.ToLower(text[:end])
	// telegram appends @botname in group chats
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return cmd, strings.TrimSpace(text[end:])
}

func firstToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// restAfter returns text with its first n whitespace-separated tokens removed.
func restAfter(text string, n int) string {
	rest := strings.TrimSpace(text)
	for i := 0; i < n && rest != ""; i++ {
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			return ""
		}
		rest = strings.TrimSpace(rest[end:])
	}
	return rest
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
