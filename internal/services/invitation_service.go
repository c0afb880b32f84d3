package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/pkg/crypto"
	"github.com/charlesng35/tenantcrm/pkg/logger"
	"github.com/charlesng35/tenantcrm/pkg/metrics"
)

const defaultInvitationExpiry = 7 * 24 * time.Hour

var (
	// ErrInvitationInvalid indicates no invitation matches the presented token.
	ErrInvitationInvalid = errors.New("invitation: invalid")
	// ErrInvitationRevoked indicates the invitation was revoked by an owner.
	ErrInvitationRevoked = errors.New("invitation: revoked")
	// ErrInvitationUsed indicates the invitation was already accepted.
	ErrInvitationUsed = errors.New("invitation: already used")
	// ErrInvitationExpired indicates the invitation is past its expiry.
	ErrInvitationExpired = errors.New("invitation: expired")
)

// InvitationOutcome classifies a presented invitation token.
type InvitationOutcome string

const (
	InvitationOutcomeInvalid InvitationOutcome = "INVALID"
	InvitationOutcomeRevoked InvitationOutcome = "REVOKED"
	InvitationOutcomeUsed    InvitationOutcome = "USED"
	InvitationOutcomeExpired InvitationOutcome = "EXPIRED"
	InvitationOutcomeValid   InvitationOutcome = "VALID"
)

// InvitationCheck is the result of Validate. Workspace details are only set
// when the outcome is valid.
type InvitationCheck struct {
	Outcome       InvitationOutcome `json:"outcome"`
	WorkspaceID   string            `json:"workspace_id,omitempty"`
	WorkspaceName string            `json:"workspace_name,omitempty"`
	Role          models.Role       `json:"role,omitempty"`
}

// Valid reports whether the token can currently be accepted.
func (c InvitationCheck) Valid() bool {
	return c.Outcome == InvitationOutcomeValid
}

// GeneratedInvitation carries the one-time link handed to the owner.
type GeneratedInvitation struct {
	ID        string      `json:"id"`
	Link      string      `json:"link"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// AcceptResult reports the workspace joined through an invitation.
type AcceptResult struct {
	WorkspaceID   string
	AlreadyMember bool
	Preference    *Preference
}

// InvitationView is an invitation as listed to workspace owners.
type InvitationView struct {
	ID               string                  `json:"id"`
	Role             models.Role             `json:"role"`
	Status           models.InvitationStatus `json:"status"`
	CreatedByUserID  string                  `json:"created_by_user_id"`
	CreatedAt        time.Time               `json:"created_at"`
	ExpiresAt        time.Time               `json:"expires_at"`
	AcceptedAt       *time.Time              `json:"accepted_at,omitempty"`
	AcceptedByUserID *string                 `json:"accepted_by_user_id,omitempty"`
	RevokedAt        *time.Time              `json:"revoked_at,omitempty"`
}

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationExpiry overrides the invitation lifetime.
func WithInvitationExpiry(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InvitationService issues, validates, redeems and revokes workspace invitations.
type InvitationService struct {
	db       *gorm.DB
	issuer   *crypto.SecretIssuer
	resolver *WorkspaceResolver
	links    *LinkBuilder
	expiry   time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewInvitationService constructs an InvitationService with the provided dependencies.
func NewInvitationService(db *gorm.DB, issuer *crypto.SecretIssuer, resolver *WorkspaceResolver, links *LinkBuilder, opts ...InvitationOption) (*InvitationService, error) {
	switch {
	case db == nil:
		return nil, errors.New("invitation service: db is required")
	case issuer == nil:
		return nil, errors.New("invitation service: secret issuer is required")
	case resolver == nil:
		return nil, errors.New("invitation service: workspace resolver is required")
	case links == nil:
		return nil, errors.New("invitation service: link builder is required")
	}

	service := &InvitationService{
		db:       db,
		issuer:   issuer,
		resolver: resolver,
		links:    links,
		expiry:   defaultInvitationExpiry,
		now:      time.Now,
		log:      logger.WithModule("invitations"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Generate mints an invitation into the caller's workspace. Only owners may
// invite. An empty role defaults to MEMBER.
func (s *InvitationService) Generate(ctx context.Context, wc *WorkspaceContext, role models.Role) (*GeneratedInvitation, error) {
	if err := RequireRole(wc, models.RoleOwner); err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, fieldError("role", "Role must be OWNER or MEMBER")
	}

	raw, digest, err := s.issuer.Issue()
	if err != nil {
		return nil, serverError(s.log, "issue invitation secret", err)
	}

	invitation := models.Invitation{
		WorkspaceID:     wc.WorkspaceID,
		TokenHash:       digest,
		Role:            role,
		CreatedByUserID: wc.UserID,
		ExpiresAt:       s.now().UTC().Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(&invitation).Error; err != nil {
		return nil, serverError(s.log, "create invitation", err, zap.String("workspace_id", wc.WorkspaceID))
	}

	metrics.InvitationEvents.WithLabelValues("generated").Inc()
	s.log.Info("invitation generated",
		zap.String("invitation_id", invitation.ID),
		zap.String("workspace_id", wc.WorkspaceID),
		zap.String("role", string(role)),
	)

	return &GeneratedInvitation{
		ID:        invitation.ID,
		Link:      s.links.AcceptInvite(raw),
		Role:      role,
		ExpiresAt: invitation.ExpiresAt,
	}, nil
}

// Validate classifies a raw token without side effects. A valid result gives
// no guarantee that a later Accept succeeds.
func (s *InvitationService) Validate(ctx context.Context, rawToken string) (InvitationCheck, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return InvitationCheck{Outcome: InvitationOutcomeInvalid}, nil
	}

	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Workspace").
		Where("token_hash = ?", crypto.HashSecret(rawToken)).
		Take(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return InvitationCheck{Outcome: InvitationOutcomeInvalid}, nil
	}
	if err != nil {
		return InvitationCheck{}, serverError(s.log, "load invitation", err)
	}

	switch invitation.StatusAt(s.now()) {
	case models.InvitationRevoked:
		return InvitationCheck{Outcome: InvitationOutcomeRevoked}, nil
	case models.InvitationAccepted:
		return InvitationCheck{Outcome: InvitationOutcomeUsed}, nil
	case models.InvitationExpired:
		return InvitationCheck{Outcome: InvitationOutcomeExpired}, nil
	}

	check := InvitationCheck{
		Outcome:     InvitationOutcomeValid,
		WorkspaceID: invitation.WorkspaceID,
		Role:        invitation.Role,
	}
	if invitation.Workspace != nil {
		check.WorkspaceName = invitation.Workspace.Name
	}
	return check, nil
}

// Accept redeems rawToken for userID. The checks are repeated inside one
// transaction holding the invitation row, so concurrent redemptions of the
// same token create at most one membership. A repeated accept by the user who
// already redeemed it reports AlreadyMember instead of failing.
func (s *InvitationService) Accept(ctx context.Context, rawToken, userID string) (*AcceptResult, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrInvitationInvalid
	}

	var result *AcceptResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.acceptTx(tx, crypto.HashSecret(rawToken), userID)
		return err
	})
	if err != nil {
		if isInvitationOutcome(err) || errors.Is(err, ErrUnauthorized) {
			metrics.InvitationEvents.WithLabelValues("rejected").Inc()
			return nil, err
		}
		return nil, serverError(s.log, "accept invitation", err, zap.String("user_id", userID))
	}

	pref, err := s.resolver.sign(userID, result.WorkspaceID)
	if err != nil {
		return nil, err
	}
	result.Preference = pref

	event := "accepted"
	if result.AlreadyMember {
		event = "already_member"
	}
	metrics.InvitationEvents.WithLabelValues(event).Inc()
	s.log.Info("invitation accepted",
		zap.String("user_id", userID),
		zap.String("workspace_id", result.WorkspaceID),
		zap.Bool("already_member", result.AlreadyMember),
	)
	return result, nil
}

// acceptTx performs the redemption on an open transaction. It never signs a
// preference; that happens after commit.
func (s *InvitationService) acceptTx(tx *gorm.DB, tokenHash, userID string) (*AcceptResult, error) {
	var invitation models.Invitation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_hash = ?", tokenHash).
		Take(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationInvalid
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	switch invitation.StatusAt(now) {
	case models.InvitationRevoked:
		return nil, ErrInvitationRevoked
	case models.InvitationAccepted:
		if invitation.AcceptedByUserID == nil || *invitation.AcceptedByUserID != userID {
			return nil, ErrInvitationUsed
		}
		member, err := hasMembership(tx, userID, invitation.WorkspaceID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, ErrInvitationUsed
		}
		return &AcceptResult{WorkspaceID: invitation.WorkspaceID, AlreadyMember: true}, nil
	case models.InvitationExpired:
		return nil, ErrInvitationExpired
	}

	var userCount int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&userCount).Error; err != nil {
		return nil, err
	}
	if userCount == 0 {
		return nil, ErrUnauthorized
	}

	alreadyMember, err := hasMembership(tx, userID, invitation.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if !alreadyMember {
		membership := models.Membership{
			UserID:      userID,
			WorkspaceID: invitation.WorkspaceID,
			Role:        invitation.Role,
		}
		err := tx.Transaction(func(nested *gorm.DB) error {
			return nested.Create(&membership).Error
		})
		switch {
		case isUniqueConstraintError(err):
			alreadyMember = true
		case err != nil:
			return nil, err
		}
	}

	update := tx.Model(&models.Invitation{}).
		Where("id = ? AND accepted_at IS NULL AND revoked_at IS NULL", invitation.ID).
		Updates(map[string]any{
			"accepted_at":         now,
			"accepted_by_user_id": userID,
		})
	if update.Error != nil {
		return nil, update.Error
	}
	if update.RowsAffected == 0 {
		return nil, ErrInvitationUsed
	}

	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		Update("selected_workspace_id", invitation.WorkspaceID).Error; err != nil {
		return nil, err
	}

	return &AcceptResult{WorkspaceID: invitation.WorkspaceID, AlreadyMember: alreadyMember}, nil
}

// Revoke marks an invitation of the caller's workspace as revoked. Revoking
// twice keeps the first timestamp.
func (s *InvitationService) Revoke(ctx context.Context, wc *WorkspaceContext, invitationID string) error {
	if err := RequireRole(wc, models.RoleOwner); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var invitation models.Invitation
	err := db.Where("id = ? AND workspace_id = ?", invitationID, wc.WorkspaceID).Take(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return serverError(s.log, "load invitation", err, zap.String("invitation_id", invitationID))
	}

	if err := db.Model(&models.Invitation{}).
		Where("id = ? AND revoked_at IS NULL", invitation.ID).
		Update("revoked_at", s.now().UTC()).Error; err != nil {
		return serverError(s.log, "revoke invitation", err, zap.String("invitation_id", invitationID))
	}

	metrics.InvitationEvents.WithLabelValues("revoked").Inc()
	s.log.Info("invitation revoked",
		zap.String("invitation_id", invitation.ID),
		zap.String("workspace_id", wc.WorkspaceID),
		zap.String("revoked_by", wc.UserID),
	)
	return nil
}

// List returns the caller's workspace invitations, newest first, with their
// effective status.
func (s *InvitationService) List(ctx context.Context, wc *WorkspaceContext) ([]InvitationView, error) {
	if err := RequireRole(wc, models.RoleOwner); err != nil {
		return nil, err
	}

	var invitations []models.Invitation
	if err := s.db.WithContext(ctx).
		Where("workspace_id = ?", wc.WorkspaceID).
		Order("created_at DESC").
		Find(&invitations).Error; err != nil {
		return nil, serverError(s.log, "list invitations", err, zap.String("workspace_id", wc.WorkspaceID))
	}

	now := s.now()
	views := make([]InvitationView, 0, len(invitations))
	for i := range invitations {
		inv := &invitations[i]
		views = append(views, InvitationView{
			ID:               inv.ID,
			Role:             inv.Role,
			Status:           inv.StatusAt(now),
			CreatedByUserID:  inv.CreatedByUserID,
			CreatedAt:        inv.CreatedAt,
			ExpiresAt:        inv.ExpiresAt,
			AcceptedAt:       inv.AcceptedAt,
			AcceptedByUserID: inv.AcceptedByUserID,
			RevokedAt:        inv.RevokedAt,
		})
	}
	return views, nil
}

func hasMembership(tx *gorm.DB, userID, workspaceID string) (bool, error) {
	var count int64
	err := tx.Model(&models.Membership{}).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Count(&count).Error
	return count > 0, err
}

func isInvitationOutcome(err error) bool {
	return errors.Is(err, ErrInvitationInvalid) ||
		errors.Is(err, ErrInvitationRevoked) ||
		errors.Is(err, ErrInvitationUsed) ||
		errors.Is(err, ErrInvitationExpired)
}
