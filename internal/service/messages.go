package service

import (
	"fmt"
	"strings"

	"github.com/spec-kit/procurement-service/internal/command"
	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/internal/workflow"
	"github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

// Apology is sent when a collaborator failure abandons a message.
const Apology = "Sorry, something went wrong while handling your message. Please try again later."

// UnrecognizedHint answers free text that matches no command.
const UnrecognizedHint = "I did not understand that. Send /help to see what I can do."

// CancelAck confirms a discarded dialogue.
const CancelAck = "OK, cancelled."

func ticketSummary(t *domain.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket: %s\n", t.TicketNumber)
	if t.RequesterName != "" {
		fmt.Fprintf(&b, "Requester: %s\n", t.RequesterName)
	}
	fmt.Fprintf(&b, "Item: %s\n", t.ItemDescription)
	fmt.Fprintf(&b, "Quantity: %s\n", t.Quantity)
	if t.ReferenceLink != "" {
		fmt.Fprintf(&b, "Link: %s\n", t.ReferenceLink)
	}
	if t.Justification != "" {
		fmt.Fprintf(&b, "Reason: %s\n", t.Justification)
	}
	return b.String()
}

// RenderObligation builds the notification text owed to the obligation's recipient.
func RenderObligation(kind workflow.ObligationKind, t *domain.Ticket) string {
	switch kind {
	case workflow.NotifyDept:
		return "New procurement request awaiting your approval\n\n" + ticketSummary(t) +
			fmt.Sprintf("\nReply 1 %s to approve, or 2 %s <reason> to reject.", t.TicketNumber, t.TicketNumber)
	case workflow.NotifyTreasury:
		return "Procurement request approved by the department head\n\n" + ticketSummary(t) +
			fmt.Sprintf("\nReply with a code, the ticket number and an optional note:\n"+
				"1 %s = not processed yet\n2 %s = in progress\n3 %s = processed",
				t.TicketNumber, t.TicketNumber, t.TicketNumber)
	case workflow.NotifyRequesterRejected:
		return fmt.Sprintf("Your procurement request %s (%s, %s) was rejected by the department head.\nReason: %s",
			t.TicketNumber, t.ItemDescription, t.Quantity, orDefault(t.DeptReason, "no reason given"))
	case workflow.NotifyRequesterProcessed:
		return fmt.Sprintf("Your procurement request %s (%s, %s) has been processed by treasury.\nNote: %s",
			t.TicketNumber, t.ItemDescription, t.Quantity, orDefault(t.TreasuryReason, workflow.ReasonProcessed))
	}
	return ""
}

// StatusView renders a ticket for a status lookup.
func StatusView(t *domain.Ticket) string {
	var b strings.Builder
	b.WriteString(ticketSummary(t))
	if !t.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Submitted: %s\n", t.CreatedAt.Format("2006-01-02 15:04"))
	}
	b.WriteString("Status: " + statusLabel(t.PrimaryStatus))
	if t.PrimaryStatus == domain.StatusRejectedByDept {
		b.WriteString("\nRejection reason: " + orDefault(t.DeptReason, "no reason given"))
	}
	if t.TreasuryProgress != nil {
		b.WriteString("\nTreasury progress: " + progressLabel(*t.TreasuryProgress))
		if t.TreasuryReason != "" {
			b.WriteString("\nTreasury note: " + t.TreasuryReason)
		}
	}
	return b.String()
}

func statusLabel(s domain.PrimaryStatus) string {
	switch s {
	case domain.StatusAwaitingDeptApproval:
		return "awaiting department head approval"
	case domain.StatusAwaitingTreasuryProcessing:
		return "approved, awaiting treasury processing"
	case domain.StatusRejectedByDept:
		return "rejected by the department head"
	case domain.StatusCompleted:
		return "completed"
	}
	return "unknown"
}

func progressLabel(p domain.TreasuryProgress) string {
	switch p {
	case domain.ProgressNotProcessed:
		return "not processed yet"
	case domain.ProgressInProgress:
		return "in progress"
	case domain.ProgressProcessed:
		return "processed"
	}
	return string(p)
}

// FormTemplate is sent when a requester starts a submission.
func FormTemplate() string {
	var b strings.Builder
	b.WriteString("Please fill in and send back this form:\n\n")
	for _, field := range command.FormFields {
		b.WriteString(field + ": \n")
	}
	b.WriteString("\nSend /cancel to stop.")
	return b.String()
}

// HelpText lists the commands available to a role.
func HelpText(role domain.Role) string {
	lines := []string{
		"Available commands:",
		"/request - submit a procurement request",
		"/cek <ticket> or just <ticket> - check a request's status",
		"/cancel - stop the current dialogue",
		"/help - show this message",
	}
	switch role {
	case domain.RoleDept:
		lines = append(lines, "",
			"Department head:",
			"1 <ticket> or APPROVE <ticket> - approve",
			"2 <ticket> [reason] or REJECT <ticket> [reason] - reject")
	case domain.RoleTreasury:
		lines = append(lines, "",
			"Treasury:",
			"1 <ticket> [note] - not processed yet",
			"2 <ticket> [note] - in progress",
			"3 <ticket> [note] - processed")
	}
	return strings.Join(lines, "\n")
}

// SubmittedAck confirms a new ticket to its requester.
func SubmittedAck(t *domain.Ticket) string {
	return fmt.Sprintf("Your request has been recorded with ticket number %s. "+
		"It is now awaiting department head approval. Send %s at any time to check its status.",
		t.TicketNumber, t.TicketNumber)
}

// ReasonPrompt asks the department head for a rejection reason.
func ReasonPrompt(ticketNumber string) string {
	return fmt.Sprintf("Please send the reason for rejecting %s.", ticketNumber)
}

// DecisionAck confirms a transition to the actor who made it.
func DecisionAck(t *domain.Ticket) string {
	switch t.PrimaryStatus {
	case domain.StatusAwaitingTreasuryProcessing:
		if t.TreasuryProgress != nil && t.TreasuryReason != "" {
			return fmt.Sprintf("Ticket %s updated to: %s\nNote: %s", t.TicketNumber, progressLabel(*t.TreasuryProgress), t.TreasuryReason)
		}
		return fmt.Sprintf("Ticket %s approved and forwarded to treasury.", t.TicketNumber)
	case domain.StatusRejectedByDept:
		return fmt.Sprintf("Ticket %s rejected.\nReason: %s", t.TicketNumber, t.DeptReason)
	case domain.StatusCompleted:
		return fmt.Sprintf("Ticket %s marked as processed.\nNote: %s", t.TicketNumber, t.TreasuryReason)
	}
	return StatusView(t)
}

// RenderError turns a user-visible error into a chat reply. Collaborator
// failures get the generic apology.
func RenderError(err error) string {
	de := errorutil.ToDomainError(err)
	switch de.Code {
	case errorutil.CodeIncompleteForm:
		missing, _ := de.Details["missing"].([]string)
		return "Your form is missing: " + strings.Join(missing, ", ") + ". Please send the complete form again."
	case errorutil.CodeValidation:
		return "Some form values are too long. Please shorten them and send the form again."
	case errorutil.CodeParse:
		return "Sorry, " + de.Message + "."
	case errorutil.CodeUnauthorized:
		return "Sorry, " + de.Message + "."
	case errorutil.CodeInvalidStateTransition:
		if number, ok := de.Details["ticket_number"].(string); ok && number != "" {
			return fmt.Sprintf("Ticket %s: %s.", number, de.Message)
		}
		return "Sorry, " + de.Message + "."
	case errorutil.CodeNotFound:
		if number, ok := de.Details["ticket_number"].(string); ok && number != "" {
			return fmt.Sprintf("Ticket %s was not found.", number)
		}
		return "That ticket was not found."
	}
	return Apology
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
