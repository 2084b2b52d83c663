package command

import (
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/procurement-service/internal/domain"
	"github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

const (
	deptID     = "100"
	treasuryID = "200"
	requester  = "300"
)

const fullForm = `full name: Jane
item: Projector
quantity: 1 unit
link: http://x
reason: meeting`

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newParser() (*Parser, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	store := NewConversationStore(10*time.Minute, clock.Now)
	return NewParser(domain.RoleBindings{DeptHeadID: deptID, TreasuryID: treasuryID}, store), clock
}

func TestParseInlineForm(t *testing.T) {
	p, _ := newParser()
	intent, err := p.Parse(requester, "/request\n"+fullForm)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if intent.Kind != IntentSubmitForm || intent.Form == nil {
		t.Fatalf("expected submit intent, got %+v", intent)
	}
	want := SubmissionForm{FullName: "Jane", Item: "Projector", Quantity: "1 unit", Link: "http://x", Reason: "meeting"}
	if *intent.Form != want {
		t.Fatalf("unexpected form: %+v", *intent.Form)
	}
}

func TestParseFormLabelsAreCaseInsensitiveWithAliases(t *testing.T) {
	form, missing := ParseForm("Nama Lengkap: Budi\nNAMA BARANG: Kursi\n- Jumlah : 4\nLink: http://shop\nAlasan: rusak\nnoise line")
	if len(missing) != 0 {
		t.Fatalf("unexpected missing fields: %v", missing)
	}
	if form.FullName != "Budi" || form.Item != "Kursi" || form.Quantity != "4" || form.Reason != "rusak" {
		t.Fatalf("unexpected form: %+v", form)
	}
}

func TestParseIncompleteFormKeepsDialogueOpen(t *testing.T) {
	p, _ := newParser()
	_, err := p.Parse(requester, "/request\nfull name: Jane\nitem: Projector\nlink: http://x")
	if !errors.Is(err, errorutil.ErrIncompleteForm) {
		t.Fatalf("expected incomplete form, got %v", err)
	}
	de := errorutil.ToDomainError(err)
	missing, _ := de.Details["missing"].([]string)
	if len(missing) != 2 || missing[0] != FieldQuantity || missing[1] != FieldReason {
		t.Fatalf("unexpected missing fields: %v", missing)
	}
	if conv, ok := p.Conversations().Peek(requester); !ok || conv.AwaitingField != AwaitSubmissionForm {
		t.Fatalf("expected submission dialogue to stay open")
	}

	intent, err := p.Parse(requester, fullForm)
	if err != nil || intent.Kind != IntentSubmitForm {
		t.Fatalf("resent form: %+v %v", intent, err)
	}
	if _, ok := p.Conversations().Peek(requester); ok {
		t.Fatalf("dialogue should close after a complete form")
	}
}

func TestParseBeginSubmissionThenForm(t *testing.T) {
	p, _ := newParser()
	intent, err := p.Parse(requester, "/request")
	if err != nil || intent.Kind != IntentBeginSubmission {
		t.Fatalf("expected begin submission, got %+v %v", intent, err)
	}
	intent, err = p.Parse(requester, fullForm)
	if err != nil || intent.Kind != IntentSubmitForm {
		t.Fatalf("expected form on next message, got %+v %v", intent, err)
	}
}

func TestApproverDecisionClosesOpenForm(t *testing.T) {
	cases := []struct {
		sender string
		text   string
		kind   IntentKind
		await  bool
	}{
		{deptID, "1 4821", IntentDeptDecision, false},
		{deptID, "2 4821", IntentDeptDecision, true},
		{treasuryID, "3 4821 paid", IntentTreasuryUpdate, false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			p, _ := newParser()
			if _, err := p.Parse(tc.sender, "/request"); err != nil {
				t.Fatalf("begin: %v", err)
			}
			intent, err := p.Parse(tc.sender, tc.text)
			if err != nil {
				t.Fatalf("decision: %v", err)
			}
			if intent.Kind != tc.kind || intent.TicketNumber != "4821" {
				t.Fatalf("unexpected intent: %+v", intent)
			}
			conv, ok := p.Conversations().Peek(tc.sender)
			if tc.await {
				if !ok || conv.AwaitingField != AwaitRejectionReason {
					t.Fatalf("expected rejection reason dialogue, got %+v %v", conv, ok)
				}
				return
			}
			if ok {
				t.Fatalf("form dialogue should be closed, got %+v", conv)
			}
		})
	}
}

func TestRequesterDecisionShapedLineStaysInForm(t *testing.T) {
	p, _ := newParser()
	if _, err := p.Parse(requester, "/request"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := p.Parse(requester, "1 4821"); !errors.Is(err, errorutil.ErrIncompleteForm) {
		t.Fatalf("expected incomplete form, got %v", err)
	}
}

func TestParseFormValidation(t *testing.T) {
	p, _ := newParser()
	long := make([]byte, 130)
	for i := range long {
		long[i] = 'a'
	}
	_, err := p.Parse(requester, "/request\nfull name: "+string(long)+"\nitem: x\nquantity: 1\nlink: l\nreason: r")
	if !errorutil.HasCode(err, errorutil.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseDeptDecisions(t *testing.T) {
	cases := []struct {
		text   string
		action DeptAction
		reason string
		await  bool
	}{
		{"1 4821", ActionApprove, "", false},
		{"approve 4821", ActionApprove, "", false},
		{"APPROVE 4821", ActionApprove, "", false},
		{"2 4821 no budget left", ActionReject, "no budget left", false},
		{"reject 4821 duplicate", ActionReject, "duplicate", false},
		{"2 4821", ActionReject, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			p, _ := newParser()
			intent, err := p.Parse(deptID, tc.text)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if intent.Kind != IntentDeptDecision || intent.Action != tc.action || intent.TicketNumber != "4821" {
				t.Fatalf("unexpected intent: %+v", intent)
			}
			if intent.Reason != tc.reason || intent.AwaitingReason != tc.await {
				t.Fatalf("unexpected reason handling: %+v", intent)
			}
			_, pending := p.Conversations().Peek(deptID)
			if pending != tc.await {
				t.Fatalf("pending dialogue = %v, want %v", pending, tc.await)
			}
		})
	}
}

func TestParseRejectionReasonFollowUp(t *testing.T) {
	p, _ := newParser()
	if _, err := p.Parse(deptID, "2 4821"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	intent, err := p.Parse(deptID, "budget unavailable")
	if err != nil {
		t.Fatalf("parse reason: %v", err)
	}
	if intent.Kind != IntentContinueRejectionReason || intent.TicketNumber != "4821" || intent.Reason != "budget unavailable" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if _, ok := p.Conversations().Peek(deptID); ok {
		t.Fatalf("reason should consume the dialogue")
	}

	// a numeric reason is still consumed as the reason
	_, _ = p.Parse(deptID, "2 4821")
	intent, _ = p.Parse(deptID, "123")
	if intent.Kind != IntentContinueRejectionReason || intent.Reason != "123" {
		t.Fatalf("expected numeric reason to be consumed, got %+v", intent)
	}
}

func TestParseRejectionReasonExpires(t *testing.T) {
	p, clock := newParser()
	_, _ = p.Parse(deptID, "2 4821")
	clock.now = clock.now.Add(11 * time.Minute)

	intent, err := p.Parse(deptID, "4821")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if intent.Kind != IntentCheckStatus {
		t.Fatalf("expired dialogue should not capture the message, got %+v", intent)
	}
}

func TestParseTreasuryUpdates(t *testing.T) {
	p, _ := newParser()
	for code, text := range map[TreasuryCode]string{
		CodeNotProcessed: "1 77",
		CodeInProgress:   "2 77 ordering",
		CodeProcessed:    "3 77 delivered",
	} {
		intent, err := p.Parse(treasuryID, text)
		if err != nil {
			t.Fatalf("%s: %v", text, err)
		}
		if intent.Kind != IntentTreasuryUpdate || intent.Code != code || intent.TicketNumber != "77" {
			t.Fatalf("%s: unexpected intent %+v", text, intent)
		}
	}
	intent, _ := p.Parse(treasuryID, "3 77 delivered to floor 2")
	if intent.Reason != "delivered to floor 2" {
		t.Fatalf("unexpected reason %q", intent.Reason)
	}
	if _, err := p.Parse(treasuryID, "APPROVE 77"); !errors.Is(err, errorutil.ErrParse) {
		t.Fatalf("expected parse error for dept verb from treasury, got %v", err)
	}
}

func TestParseDecisionFromUnauthorizedSender(t *testing.T) {
	p, _ := newParser()
	for _, text := range []string{"1 4821", "APPROVE 4821", "3 4821 done"} {
		if _, err := p.Parse(requester, text); !errors.Is(err, errorutil.ErrUnauthorized) {
			t.Fatalf("%q: expected unauthorized, got %v", text, err)
		}
	}
	if _, err := p.Parse(deptID, "3 4821"); !errors.Is(err, errorutil.ErrParse) {
		t.Fatalf("expected parse error for treasury code from dept head, got %v", err)
	}
}

func TestParseStatusAndHelp(t *testing.T) {
	p, _ := newParser()
	cases := map[string]Intent{
		"4821":           {Kind: IntentCheckStatus, TicketNumber: "4821"},
		"/cek 4821":      {Kind: IntentCheckStatus, TicketNumber: "4821"},
		"/STATUS 4821":   {Kind: IntentCheckStatus, TicketNumber: "4821"},
		"/help":          {Kind: IntentHelp},
		"/help@procbot":  {Kind: IntentHelp},
		"hello there":    {Kind: IntentUnrecognized},
		"/unknown thing": {Kind: IntentUnrecognized},
	}
	for text, want := range cases {
		got, err := p.Parse(requester, text)
		if err != nil {
			t.Fatalf("%q: %v", text, err)
		}
		if got.Kind != want.Kind || got.TicketNumber != want.TicketNumber {
			t.Fatalf("%q: got %+v want %+v", text, got, want)
		}
	}
	if _, err := p.Parse(requester, "/cek"); !errors.Is(err, errorutil.ErrParse) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestParseCancelDiscardsDialogue(t *testing.T) {
	p, _ := newParser()
	_, _ = p.Parse(deptID, "2 4821")
	intent, err := p.Parse(deptID, "/cancel")
	if err != nil || intent.Kind != IntentCancel {
		t.Fatalf("expected cancel, got %+v %v", intent, err)
	}
	if _, ok := p.Conversations().Peek(deptID); ok {
		t.Fatalf("cancel should discard the dialogue")
	}
}
