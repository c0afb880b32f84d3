package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/pkg/crypto"
	"github.com/charlesng35/tenantcrm/pkg/logger"
	"github.com/charlesng35/tenantcrm/pkg/metrics"
)

const (
	maxSlugLength  = 50
	fallbackSlug   = "workspace"
	maxNameLength  = 100
	maxSlugAttempt = 1000
	// Concurrent signups may race for the same free slug; the loser retries.
	maxSlugRetries = 5
)

var errSlugTaken = errors.New("account: workspace slug taken")

var (
	// ErrEmailTaken indicates an account already uses the email.
	ErrEmailTaken = errors.New("account: email already registered")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("account: invalid credentials")
)

// AccessTokenIssuer mints the bearer tokens handed out after signup and login.
type AccessTokenIssuer interface {
	GenerateAccessToken(userID, email string) (string, error)
	TTL() time.Duration
}

// SignupInput creates an account together with its first workspace.
type SignupInput struct {
	WorkspaceName string
	Name          string
	Email         string
	Password      string
}

// JoinInput creates an account that joins a workspace through an invitation.
type JoinInput struct {
	Name     string
	Email    string
	Password string
	Token    string
}

// SessionGrant is what a successful signup or login returns.
type SessionGrant struct {
	User        *models.User
	AccessToken string
	ExpiresIn   time.Duration
	Workspace   *WorkspaceContext
	Preference  *Preference
}

// AccountService owns the credential store: signup, login and profile reads.
type AccountService struct {
	db          *gorm.DB
	hasher      *crypto.PasswordHasher
	tokens      AccessTokenIssuer
	resolver    *WorkspaceResolver
	invitations *InvitationService
	log         *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService constructs an AccountService with the provided dependencies.
func NewAccountService(db *gorm.DB, hasher *crypto.PasswordHasher, tokens AccessTokenIssuer, resolver *WorkspaceResolver, invitations *InvitationService) (*AccountService, error) {
	switch {
	case db == nil:
		return nil, errors.New("account service: db is required")
	case hasher == nil:
		return nil, errors.New("account service: hasher is required")
	case tokens == nil:
		return nil, errors.New("account service: token issuer is required")
	case resolver == nil:
		return nil, errors.New("account service: workspace resolver is required")
	case invitations == nil:
		return nil, errors.New("account service: invitation service is required")
	}
	return &AccountService{
		db:          db,
		hasher:      hasher,
		tokens:      tokens,
		resolver:    resolver,
		invitations: invitations,
		log:         logger.WithModule("accounts"),
	}, nil
}

// Signup creates the user, a workspace with a unique slug and the OWNER
// membership joining them, all in one transaction.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*SessionGrant, error) {
	workspaceName := strings.TrimSpace(in.WorkspaceName)
	switch {
	case workspaceName == "":
		return nil, fieldError("workspace_name", "Workspace name is required")
	case utf8.RuneCountInString(workspaceName) > maxNameLength:
		return nil, fieldError("workspace_name", fmt.Sprintf("Workspace name must be at most %d characters", maxNameLength))
	}
	email, name, err := s.checkIdentity(in.Email, in.Name, in.Password)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, serverError(s.log, "hash password", err)
	}

	var (
		user      *models.User
		workspace *models.Workspace
	)
	for attempt := 1; ; attempt++ {
		user = &models.User{Email: email, Name: name, PasswordHash: &hash}
		workspace = &models.Workspace{Name: workspaceName}
		err = s.createOwnedWorkspace(ctx, user, workspace)
		if !errors.Is(err, errSlugTaken) || attempt >= maxSlugRetries {
			break
		}
		s.log.Info("workspace slug taken concurrently, retrying",
			zap.String("slug", workspace.Slug), zap.Int("attempt", attempt))
	}
	if errors.Is(err, ErrEmailTaken) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, serverError(s.log, "signup", err, zap.String("email", email))
	}

	s.log.Info("account created",
		zap.String("user_id", user.ID),
		zap.String("workspace_id", workspace.ID),
		zap.String("workspace_slug", workspace.Slug),
	)

	wc := &WorkspaceContext{
		UserID:        user.ID,
		WorkspaceID:   workspace.ID,
		WorkspaceName: workspace.Name,
		WorkspaceSlug: workspace.Slug,
		Role:          models.RoleOwner,
	}
	return s.grant(user, wc)
}

// createOwnedWorkspace inserts the workspace, the user and the OWNER
// membership in one transaction. A slug claimed between the free-slug lookup
// and the insert surfaces as errSlugTaken.
func (s *AccountService) createOwnedWorkspace(ctx context.Context, user *models.User, workspace *models.Workspace) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, user.Email); err != nil {
			return err
		}
		slugValue, err := uniqueSlug(tx, workspaceSlug(workspace.Name))
		if err != nil {
			return err
		}
		workspace.Slug = slugValue
		if err := tx.Create(workspace).Error; err != nil {
			if isUniqueConstraintError(err) {
				return errSlugTaken
			}
			return err
		}

		user.SelectedWorkspaceID = &workspace.ID
		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrEmailTaken
			}
			return err
		}

		return tx.Create(&models.Membership{
			UserID:      user.ID,
			WorkspaceID: workspace.ID,
			Role:        models.RoleOwner,
		}).Error
	})
}

// SignupWithInvite creates an account without a workspace of its own and
// redeems the invitation for it. Either both happen or neither does.
func (s *AccountService) SignupWithInvite(ctx context.Context, in JoinInput) (*SessionGrant, error) {
	email, name, err := s.checkIdentity(in.Email, in.Name, in.Password)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(in.Token)
	if token == "" {
		return nil, ErrInvitationInvalid
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, serverError(s.log, "hash password", err)
	}

	user := &models.User{Email: email, Name: name, PasswordHash: &hash}
	var accepted *AcceptResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, email); err != nil {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrEmailTaken
			}
			return err
		}
		var err error
		accepted, err = s.invitations.acceptTx(tx, crypto.HashSecret(token), user.ID)
		return err
	})
	switch {
	case errors.Is(err, ErrEmailTaken), isInvitationOutcome(err):
		return nil, err
	case err != nil:
		return nil, serverError(s.log, "signup with invitation", err, zap.String("email", email))
	}

	metrics.InvitationEvents.WithLabelValues("accepted").Inc()
	s.log.Info("account created through invitation",
		zap.String("user_id", user.ID),
		zap.String("workspace_id", accepted.WorkspaceID),
	)

	wc, err := s.resolver.Resolve(ctx, user.ID, "")
	if err != nil {
		return nil, err
	}
	return s.grant(user, wc)
}

// Authenticate verifies an email and password pair. Unknown emails still pay
// for a bcrypt comparison so the two failures take similar time.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*SessionGrant, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, serverError(s.log, "load user", err, zap.String("email", email))
	}
	if err != nil || !user.HasPassword() {
		s.hasher.Verify(s.dummy(), password)
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(*user.PasswordHash, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		s.log.Info("login rejected", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}
	metrics.AuthAttempts.WithLabelValues("success").Inc()

	wc, err := s.resolver.Resolve(ctx, user.ID, "")
	if err != nil {
		return nil, err
	}
	return s.grant(&user, wc)
}

// Me returns the profile of userID.
func (s *AccountService) Me(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, serverError(s.log, "load user", err, zap.String("user_id", userID))
	}
	return &user, nil
}

func (s *AccountService) checkIdentity(rawEmail, rawName, password string) (string, *string, error) {
	email := models.NormalizeEmail(rawEmail)
	if email == "" {
		return "", nil, fieldError("email", "Email is required")
	}
	name := trimmedOrNil(&rawName)
	if name != nil && utf8.RuneCountInString(*name) > maxNameLength {
		return "", nil, fieldError("name", fmt.Sprintf("Name must be at most %d characters", maxNameLength))
	}
	if err := checkPassword("password", password, SignupPasswordMin); err != nil {
		return "", nil, err
	}
	return email, name, nil
}

func (s *AccountService) grant(user *models.User, wc *WorkspaceContext) (*SessionGrant, error) {
	token, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, serverError(s.log, "issue access token", err, zap.String("user_id", user.ID))
	}
	grant := &SessionGrant{
		User:        user,
		AccessToken: token,
		ExpiresIn:   s.tokens.TTL(),
		Workspace:   wc,
	}
	if wc != nil {
		if grant.Preference, err = s.resolver.sign(user.ID, wc.WorkspaceID); err != nil {
			return nil, err
		}
	}
	return grant, nil
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("tenantcrm-timing-equaliser")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func ensureEmailFree(tx *gorm.DB, email string) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return nil
}

// workspaceSlug turns a workspace name into its base slug: transliterated,
// lowercase, dash separated and at most 50 characters.
func workspaceSlug(name string) string {
	value := slug.Make(name)
	if len(value) > maxSlugLength {
		value = value[:maxSlugLength]
	}
	value = strings.Trim(value, "-")
	if value == "" {
		return fallbackSlug
	}
	return value
}

// uniqueSlug appends -1, -2, ... to base until no workspace uses it.
func uniqueSlug(tx *gorm.DB, base string) (string, error) {
	candidate := base
	for counter := 1; counter <= maxSlugAttempt; counter++ {
		var count int64
		if err := tx.Model(&models.Workspace{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
	return "", fmt.Errorf("no free slug for %q", base)
}
