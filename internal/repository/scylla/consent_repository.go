package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/util"
)

var ErrConsentNotFound = fmt.Errorf("consent not found")

type ConsentRepository struct {
	client *ScyllaClient
}

func NewConsentRepository(client *ScyllaClient) *ConsentRepository {
	return &ConsentRepository{client: client}
}

func (r *ConsentRepository) UpsertConsent(consent *model.Consent) error {
	consent.UpdatedAt = time.Now().UTC()

	err := r.client.Session.Query(`
        INSERT INTO consents (member_id, purpose, granted, version, updated_at)
        VALUES (?, ?, ?, ?, ?)`,
		consent.MemberID, consent.Purpose, consent.Granted, consent.Version,
		consent.UpdatedAt).Exec()
	if err != nil {
		util.Error("Failed to upsert consent",
			zap.String("member_id", consent.MemberID),
			zap.String("purpose", consent.Purpose),
			zap.Error(err))
		return fmt.Errorf("failed to upsert consent: %w", err)
	}

	util.Info("Consent recorded",
		zap.String("member_id", consent.MemberID),
		zap.String("purpose", consent.Purpose),
		zap.Bool("granted", consent.Granted))
	return nil
}

func (r *ConsentRepository) GetConsent(memberID, purpose string) (*model.Consent, error) {
	consent := &model.Consent{}
	err := r.client.Session.Query(`
        SELECT member_id, purpose, granted, version, updated_at
        FROM consents WHERE member_id = ? AND purpose = ?`, memberID, purpose).Scan(
		&consent.MemberID, &consent.Purpose, &consent.Granted, &consent.Version,
		&consent.UpdatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrConsentNotFound
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}
	return consent, nil
}

func (r *ConsentRepository) ListConsents(memberID string) ([]*model.Consent, error) {
	var consents []*model.Consent

	iter := r.client.Session.Query(`
        SELECT member_id, purpose, granted, version, updated_at
        FROM consents WHERE member_id = ?`, memberID).Iter()
	for {
		c := &model.Consent{}
		if !iter.Scan(&c.MemberID, &c.Purpose, &c.Granted, &c.Version, &c.UpdatedAt) {
			break
		}
		consents = append(consents, c)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list consents: %w", err)
	}
	return consents, nil
}

func (r *ConsentRepository) DeleteMemberConsents(memberID string) error {
	err := r.client.Session.Query(`
        DELETE FROM consents WHERE member_id = ?`, memberID).Exec()
	if err != nil {
		return fmt.Errorf("failed to delete member consents: %w", err)
	}

	util.Info("Member consents deleted", zap.String("member_id", memberID))
	return nil
}
