package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/model"
)

func TestRegisterNormalizesEmail(t *testing.T) {
	repo := &stubMemberRepo{membersByEmail: make(map[string]*model.Member)}
	svc := NewMemberService(repo, zap.NewNop())

	member, err := svc.Register(context.Background(), "", "  Alice@Example.COM ", "  Alice  ")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if member.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased and trimmed", member.Email)
	}
	if member.DisplayName != "Alice" {
		t.Errorf("display name = %q, want trimmed", member.DisplayName)
	}
	if member.MemberID == "" {
		t.Error("member ID was not generated")
	}
	if !member.IsActive {
		t.Error("new member is not active")
	}
}

func TestRegisterRejectsMalformedEmail(t *testing.T) {
	svc := NewMemberService(&stubMemberRepo{}, zap.NewNop())

	for _, email := range []string{"", "   ", "not-an-email"} {
		if _, err := svc.Register(context.Background(), "", email, "Alice"); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("Register(%q) err = %v, want ErrInvalidEmail", email, err)
		}
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := &stubMemberRepo{membersByEmail: map[string]*model.Member{
		"alice@example.com": {MemberID: "member-1", Email: "alice@example.com"},
	}}
	svc := NewMemberService(repo, zap.NewNop())

	_, err := svc.Register(context.Background(), "", "Alice@example.com", "Alice")
	if !errors.Is(err, ErrMemberAlreadyExist) {
		t.Fatalf("err = %v, want ErrMemberAlreadyExist", err)
	}
}

func TestRegisterKeepsProvidedID(t *testing.T) {
	repo := &stubMemberRepo{membersByEmail: make(map[string]*model.Member)}
	svc := NewMemberService(repo, zap.NewNop())

	member, err := svc.Register(context.Background(), "idp-subject-1", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if member.MemberID != "idp-subject-1" {
		t.Errorf("member ID = %s, want the provided identity subject", member.MemberID)
	}
}
