package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/berrihq/berri-api/internal/authz"
	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
)

type fileStore interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, orgID, id string) (*models.File, error)
	ListByFolder(ctx context.Context, orgID string, folderID *string) ([]models.File, error)
	SiblingNameExists(ctx context.Context, orgID string, folderID *string, name, excludeID string) (bool, error)
	Rename(ctx context.Context, orgID, id, name string) error
	Move(ctx context.Context, orgID, id string, newFolderID *string) error
	SoftDelete(ctx context.Context, orgID, id, deletedBy string) error
	Restore(ctx context.Context, orgID, id string) error
}

type blobStore interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Delete(filename string) error
}

type uploadProcessor interface {
	EnqueueUploadProcessing(ctx context.Context, orgID, fileID, uploadedBy string)
}

// UploadFileInput carries a file upload request.
type UploadFileInput struct {
	Name               string
	FolderID           *string
	OwnerTeamID        *string
	InheritPermissions bool
	MimeType           string
	Data               []byte
}

// FileService implements the file half of the resource tree plus upload.
// The upload response never waits on — or fails because of — the document
// pipeline.
type FileService struct {
	files        fileStore
	blobs        blobStore
	perms        accessChecker
	pipeline     uploadProcessor
	logger       *zap.Logger
	maxSizeBytes int64
	allowedMIMEs map[string]struct{}
}

// NewFileService constructs the service. An empty allowedMIMEs list allows
// any type the extractor supports downstream.
func NewFileService(files fileStore, blobs blobStore, perms accessChecker, pipeline uploadProcessor, logger *zap.Logger, maxSizeBytes int64, allowedMIMEs []string) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSizeBytes <= 0 {
		maxSizeBytes = 20 << 20
	}
	allowed := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &FileService{
		files:        files,
		blobs:        blobs,
		perms:        perms,
		pipeline:     pipeline,
		logger:       logger,
		maxSizeBytes: maxSizeBytes,
		allowedMIMEs: allowed,
	}
}

// Upload validates, stores and registers a new file, then hands it to the
// pipeline in the background.
func (s *FileService) Upload(ctx context.Context, actor *models.Actor, input UploadFileInput) (*models.File, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	name, err := validateResourceName(input.Name)
	if err != nil {
		return nil, err
	}
	if len(input.Data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file content is empty")
	}
	if int64(len(input.Data)) > s.maxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.maxSizeBytes))
	}
	mime := strings.ToLower(strings.TrimSpace(input.MimeType))
	if mime == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type is required")
	}
	if len(s.allowedMIMEs) > 0 {
		if _, ok := s.allowedMIMEs[mime]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("mime type %q is not allowed", mime))
		}
	}

	if input.FolderID != nil {
		if err := s.perms.AssertAccess(ctx, actor, models.ResourceFolder, *input.FolderID, authz.ActionCreate); err != nil {
			return nil, err
		}
	} else if !actor.SuperAdmin {
		if input.OwnerTeamID == nil || !actor.InTeam(*input.OwnerTeamID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "root files must be owned by one of your teams")
		}
	}

	exists, err := s.files.SiblingNameExists(ctx, actor.OrganizationID, input.FolderID, name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sibling names")
	}
	if exists {
		return nil, appErrors.ErrDuplicateName
	}

	fileID := uuid.NewString()
	storagePath := path.Join(actor.OrganizationID, fileID)
	if _, err := s.blobs.Save(storagePath, input.Data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file content")
	}

	file := &models.File{
		ID:                 fileID,
		OrganizationID:     actor.OrganizationID,
		OwnerTeamID:        input.OwnerTeamID,
		FolderID:           input.FolderID,
		Name:               name,
		MimeType:           mime,
		SizeBytes:          int64(len(input.Data)),
		StoragePath:        storagePath,
		InheritPermissions: input.InheritPermissions,
		CreatedBy:          actor.UserID,
	}
	if err := s.files.Create(ctx, file); err != nil {
		if cleanupErr := s.blobs.Delete(storagePath); cleanupErr != nil {
			s.logger.Error("failed to clean up stored bytes after create failure",
				zap.String("storage_path", storagePath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create file")
	}

	s.pipeline.EnqueueUploadProcessing(ctx, actor.OrganizationID, fileID, actor.UserID)
	return file, nil
}

// Get returns one live file.
func (s *FileService) Get(ctx context.Context, actor *models.Actor, id string) (*models.File, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, id, authz.ActionView); err != nil {
		return nil, err
	}
	file, err := s.files.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if file.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return file, nil
}

// Download returns the stored original bytes.
func (s *FileService) Download(ctx context.Context, actor *models.Actor, id string) (*models.File, []byte, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, id, authz.ActionDownload); err != nil {
		return nil, nil, err
	}
	file, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Read(file.StoragePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file content")
	}
	return file, data, nil
}

// ListByFolder lists the live files the actor can see. Root files are
// filtered per file through the resolver.
func (s *FileService) ListByFolder(ctx context.Context, actor *models.Actor, folderID *string) ([]models.File, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if folderID != nil {
		if err := s.perms.AssertAccess(ctx, actor, models.ResourceFolder, *folderID, authz.ActionList); err != nil {
			return nil, err
		}
	}
	files, err := s.files.ListByFolder(ctx, actor.OrganizationID, folderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	if folderID != nil {
		return files, nil
	}

	visible := make([]models.File, 0, len(files))
	for _, file := range files {
		if s.perms.CanAccess(ctx, actor, models.ResourceFile, file.ID, authz.ActionView) {
			visible = append(visible, file)
		}
	}
	return visible, nil
}

// Rename changes the file name, keeping sibling uniqueness.
func (s *FileService) Rename(ctx context.Context, actor *models.Actor, id, newName string) (*models.File, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	name, err := validateResourceName(newName)
	if err != nil {
		return nil, err
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, id, authz.ActionRename); err != nil {
		return nil, err
	}

	file, err := s.files.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}

	exists, err := s.files.SiblingNameExists(ctx, actor.OrganizationID, file.FolderID, name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sibling names")
	}
	if exists {
		return nil, appErrors.ErrDuplicateName
	}

	if err := s.files.Rename(ctx, actor.OrganizationID, id, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename file")
	}
	file.Name = name
	return file, nil
}

// Move relocates the file to another folder (or the root). Files cannot
// form cycles; the checks are destination rights and name uniqueness.
func (s *FileService) Move(ctx context.Context, actor *models.Actor, id string, newFolderID *string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, id, authz.ActionMove); err != nil {
		return err
	}
	if newFolderID != nil {
		if err := s.perms.AssertAccess(ctx, actor, models.ResourceFolder, *newFolderID, authz.ActionCreate); err != nil {
			return err
		}
	}

	file, err := s.files.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}

	exists, err := s.files.SiblingNameExists(ctx, actor.OrganizationID, newFolderID, file.Name, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sibling names")
	}
	if exists {
		return appErrors.ErrDuplicateName
	}

	if err := s.files.Move(ctx, actor.OrganizationID, id, newFolderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move file")
	}
	return nil
}

// SoftDelete marks the file deleted. Stored bytes and chunks stay; the
// resolver hides deleted files from every read path including search.
func (s *FileService) SoftDelete(ctx context.Context, actor *models.Actor, id string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.perms.AssertAccess(ctx, actor, models.ResourceFile, id, authz.ActionDelete); err != nil {
		return err
	}
	if err := s.files.SoftDelete(ctx, actor.OrganizationID, id, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "file is already deleted or missing")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file")
	}
	return nil
}

// Restore brings a soft-deleted file back, rechecking name uniqueness.
func (s *FileService) Restore(ctx context.Context, actor *models.Actor, id string) (*models.File, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	file, err := s.files.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if file.DeletedAt == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "file is not deleted")
	}
	if !actor.SuperAdmin && (file.OwnerTeamID == nil || !actor.InTeam(*file.OwnerTeamID)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "restore requires the owning team or super-admin")
	}

	exists, err := s.files.SiblingNameExists(ctx, actor.OrganizationID, file.FolderID, file.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sibling names")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateName, "a live sibling now uses this name; rename it before restoring")
	}

	if err := s.files.Restore(ctx, actor.OrganizationID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "file is not deleted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore file")
	}
	file.DeletedAt = nil
	file.DeletedBy = nil
	return file, nil
}
