package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/util"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrMemberAlreadyExist = errors.New("member already exists")
)

// MemberService handles registration and profile reads. Identity itself is
// owned by the external provider; this service only keeps the local member
// record the rest of the system references.
type MemberService struct {
	members model.MemberRepository
	logger  *zap.Logger
}

func NewMemberService(members model.MemberRepository, logger *zap.Logger) *MemberService {
	return &MemberService{members: members, logger: logger}
}

func (s *MemberService) Register(ctx context.Context, memberID, email, displayName string) (*model.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if _, err := s.members.GetMemberByEmail(email); err == nil {
		return nil, ErrMemberAlreadyExist
	}

	if memberID == "" {
		memberID = uuid.New().String()
	}
	now := time.Now().UTC()
	member := &model.Member{
		MemberID:    memberID,
		Email:       email,
		DisplayName: util.SanitizeInput(displayName),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.members.CreateMember(member); err != nil {
		return nil, err
	}

	s.logger.Info("Member registered", zap.String("member_id", member.MemberID))
	return member, nil
}

func (s *MemberService) GetProfile(ctx context.Context, memberID string) (*model.Member, error) {
	return s.members.GetMemberByID(memberID)
}
