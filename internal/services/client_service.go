package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/pkg/logger"
)

const (
	maxClientNameLength = 255
	maxClientNoteLength = 5000
)

// ClientFilter narrows ListClients. An empty or "all" status matches every status.
type ClientFilter struct {
	Search string
	Status string
}

// ClientInput carries client fields. Nil pointers leave a field untouched on
// update; on create Name is required and Status defaults to PROSPECT.
type ClientInput struct {
	Name    *string
	Email   *string
	Phone   *string
	Company *string
	Status  *models.ClientStatus
	Tags    []string
	Note    *string
}

// ClientService manages the clients of a workspace.
type ClientService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewClientService constructs a ClientService.
func NewClientService(db *gorm.DB) (*ClientService, error) {
	if db == nil {
		return nil, errors.New("client service: db is required")
	}
	return &ClientService{db: db, log: logger.WithModule("clients")}, nil
}

// List returns the workspace's clients, most recently updated first.
func (s *ClientService) List(ctx context.Context, wc *WorkspaceContext, filter ClientFilter) ([]models.Client, error) {
	if err := requireWorkspace(wc); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("workspace_id = ?", wc.WorkspaceID)
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(company) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if status := strings.ToUpper(strings.TrimSpace(filter.Status)); status != "" && status != "ALL" {
		if !models.ClientStatus(status).Valid() {
			return nil, fieldError("status", "Unknown client status")
		}
		query = query.Where("status = ?", status)
	}

	var clients []models.Client
	if err := query.Order("updated_at DESC").Find(&clients).Error; err != nil {
		return nil, serverError(s.log, "list clients", err, zap.String("workspace_id", wc.WorkspaceID))
	}
	return clients, nil
}

// Get returns one client of the workspace.
func (s *ClientService) Get(ctx context.Context, wc *WorkspaceContext, id string) (*models.Client, error) {
	if err := requireWorkspace(wc); err != nil {
		return nil, err
	}
	client, err := clientInWorkspace(s.db.WithContext(ctx), wc.WorkspaceID, id)
	if err != nil {
		return nil, s.wrap("load client", err, id)
	}
	return client, nil
}

// Create adds a client to the workspace.
func (s *ClientService) Create(ctx context.Context, wc *WorkspaceContext, in ClientInput) (*models.Client, error) {
	if err := requireWorkspace(wc); err != nil {
		return nil, err
	}
	if in.Name == nil {
		return nil, fieldError("name", "Name is required")
	}

	client := &models.Client{
		WorkspaceID:     wc.WorkspaceID,
		Status:          models.ClientProspect,
		Tags:            datatypes.JSONSlice[string]{},
		CreatedByUserID: wc.UserID,
	}
	if err := applyClientInput(client, in); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return nil, serverError(s.log, "create client", err, zap.String("workspace_id", wc.WorkspaceID))
	}
	return client, nil
}

// Update changes the supplied fields of a client.
func (s *ClientService) Update(ctx context.Context, wc *WorkspaceContext, id string, in ClientInput) (*models.Client, error) {
	if err := requireWorkspace(wc); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	client, err := clientInWorkspace(db, wc.WorkspaceID, id)
	if err != nil {
		return nil, s.wrap("load client", err, id)
	}
	if err := applyClientInput(client, in); err != nil {
		return nil, err
	}
	if err := db.Save(client).Error; err != nil {
		return nil, serverError(s.log, "update client", err, zap.String("client_id", id))
	}
	return client, nil
}

// Delete removes a client together with its activities and follow-ups.
func (s *ClientService) Delete(ctx context.Context, wc *WorkspaceContext, id string) error {
	if err := requireWorkspace(wc); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := clientInWorkspace(tx, wc.WorkspaceID, id)
		if err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", client.ID).Delete(&models.Activity{}).Error; err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", client.ID).Delete(&models.FollowUp{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Client{}, "id = ?", client.ID).Error
	})
	if err != nil {
		return s.wrap("delete client", err, id)
	}
	return nil
}

func (s *ClientService) wrap(op string, err error, id string) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return serverError(s.log, op, err, zap.String("client_id", id))
}

func applyClientInput(client *models.Client, in ClientInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		switch {
		case name == "":
			return fieldError("name", "Name is required")
		case utf8.RuneCountInString(name) > maxClientNameLength:
			return fieldError("name", fmt.Sprintf("Name must be at most %d characters", maxClientNameLength))
		}
		client.Name = name
	}
	if in.Email != nil {
		client.Email = trimmedOrNil(in.Email)
		if client.Email != nil {
			lowered := strings.ToLower(*client.Email)
			client.Email = &lowered
		}
	}
	if in.Phone != nil {
		client.Phone = trimmedOrNil(in.Phone)
	}
	if in.Company != nil {
		client.Company = trimmedOrNil(in.Company)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return fieldError("status", "Status must be PROSPECT, ACTIVE or INACTIVE")
		}
		client.Status = *in.Status
	}
	if in.Tags != nil {
		client.Tags = datatypes.JSONSlice[string](normaliseTags(in.Tags))
	}
	if in.Note != nil {
		note := trimmedOrNil(in.Note)
		if note != nil && utf8.RuneCountInString(*note) > maxClientNoteLength {
			return fieldError("note", fmt.Sprintf("Note must be at most %d characters", maxClientNoteLength))
		}
		client.Note = note
	}
	return nil
}

// clientInWorkspace loads a client only when it belongs to workspaceID. A
// client of another workspace is reported exactly like a missing one.
func clientInWorkspace(db *gorm.DB, workspaceID, clientID string) (*models.Client, error) {
	var client models.Client
	err := db.Where("id = ? AND workspace_id = ?", clientID, workspaceID).Take(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func requireWorkspace(wc *WorkspaceContext) error {
	if wc == nil || wc.UserID == "" {
		return ErrUnauthorized
	}
	if wc.WorkspaceID == "" {
		return ErrNoWorkspace
	}
	return nil
}
