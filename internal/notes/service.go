// Package notes manages user-owned notes and their optional hosted images.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/imemory/server/internal/apperr"
	"github.com/imemory/server/internal/imagehost"
	"github.com/imemory/server/internal/model"
	"github.com/imemory/server/internal/repo"
)

const (
	minTitleLen       = 3
	minDescriptionLen = 5

	defaultCleanupTimeout = 30 * time.Second
)

// Input carries the editable note fields. Empty fields are left unchanged on update.
type Input struct {
	Title       string
	Description string
	Tag         string
}

// Service implements note CRUD. The local store is authoritative; deleting
// a replaced or orphaned image from the host happens in the background and
// only logs failures.
type Service struct {
	notes          repo.NoteRepo
	images         imagehost.Host
	log            *zap.Logger
	cleanupTimeout time.Duration
	wg             sync.WaitGroup
}

// NewService creates a new notes service
func NewService(notes repo.NoteRepo, images imagehost.Host, log *zap.Logger) *Service {
	if images == nil {
		images = imagehost.Disabled{}
	}
	return &Service{
		notes:          notes,
		images:         images,
		log:            log.Named("notes"),
		cleanupTimeout: defaultCleanupTimeout,
	}
}

// List returns the owner's notes.
func (s *Service) List(ctx context.Context, owner string) ([]model.Note, error) {
	notes, err := s.notes.ListByUser(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// Create stores a new note for owner, uploading img first when given.
func (s *Service) Create(ctx context.Context, owner string, in Input, img *imagehost.Upload) (model.Note, error) {
	in = trimInput(in)
	if err := validate(in, true); err != nil {
		return model.Note{}, err
	}

	n := model.Note{
		UserID:      owner,
		Title:       in.Title,
		Description: in.Description,
		Tag:         in.Tag,
	}
	if n.Tag == "" {
		n.Tag = model.DefaultTag
	}

	if img != nil {
		uploaded, err := s.upload(ctx, img)
		if err != nil {
			return model.Note{}, err
		}
		n.ImageURL, n.ImagePublicID = uploaded.URL, uploaded.PublicID
	}

	if err := s.notes.Create(ctx, &n); err != nil {
		s.cleanup(n.ImagePublicID)
		return model.Note{}, fmt.Errorf("create note: %w", err)
	}
	s.log.Info("note created", zap.String("note_id", n.ID), zap.String("user_id", owner), zap.Bool("image", n.ImageURL != ""))
	return n, nil
}

// Update changes the non-empty fields of the owner's note. A new image
// replaces the old one, which is then removed from the host.
func (s *Service) Update(ctx context.Context, owner, id string, in Input, img *imagehost.Upload) (model.Note, error) {
	in = trimInput(in)
	if err := validate(in, false); err != nil {
		return model.Note{}, err
	}

	n, err := s.owned(ctx, owner, id)
	if err != nil {
		return model.Note{}, err
	}

	if in.Title != "" {
		n.Title = in.Title
	}
	if in.Description != "" {
		n.Description = in.Description
	}
	if in.Tag != "" {
		n.Tag = in.Tag
	}

	var stale string
	if img != nil {
		uploaded, err := s.upload(ctx, img)
		if err != nil {
			return model.Note{}, err
		}
		stale = n.ImagePublicID
		n.ImageURL, n.ImagePublicID = uploaded.URL, uploaded.PublicID
	}

	if err := s.notes.Update(ctx, &n); err != nil {
		if img != nil {
			s.cleanup(n.ImagePublicID)
		}
		if errors.Is(err, repo.ErrNotFound) {
			return model.Note{}, apperr.New(apperr.CodeNotFound, "note not found")
		}
		return model.Note{}, fmt.Errorf("update note: %w", err)
	}

	s.cleanup(stale)
	s.log.Info("note updated", zap.String("note_id", n.ID), zap.String("user_id", owner))
	return n, nil
}

// Delete removes the owner's note and then its image.
func (s *Service) Delete(ctx context.Context, owner, id string) (model.Note, error) {
	n, err := s.owned(ctx, owner, id)
	if err != nil {
		return model.Note{}, err
	}
	if err := s.notes.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Note{}, apperr.New(apperr.CodeNotFound, "note not found")
		}
		return model.Note{}, fmt.Errorf("delete note: %w", err)
	}

	s.cleanup(n.ImagePublicID)
	s.log.Info("note deleted", zap.String("note_id", id), zap.String("user_id", owner))
	return n, nil
}

// Wait blocks until pending image cleanups finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) owned(ctx context.Context, owner, id string) (model.Note, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Note{}, apperr.New(apperr.CodeNotFound, "note not found")
		}
		return model.Note{}, fmt.Errorf("load note: %w", err)
	}
	if n.UserID != owner {
		return model.Note{}, apperr.New(apperr.CodeUnauthorized, "not allowed")
	}
	return n, nil
}

func (s *Service) upload(ctx context.Context, img *imagehost.Upload) (imagehost.Image, error) {
	if !imagehost.AllowedContentType(img.ContentType) {
		return imagehost.Image{}, apperr.Validation(apperr.FieldError{Field: "image", Message: "image must be a JPEG, PNG, GIF or WebP file"})
	}
	uploaded, err := s.images.Upload(ctx, *img)
	if err != nil {
		if errors.Is(err, imagehost.ErrDisabled) {
			return imagehost.Image{}, apperr.Validation(apperr.FieldError{Field: "image", Message: "image uploads are disabled"})
		}
		s.log.Error("image upload failed", zap.Error(err))
		return imagehost.Image{}, apperr.Upstream("image upload failed", err)
	}
	return uploaded, nil
}

func (s *Service) cleanup(publicID string) {
	if publicID == "" {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()
		if err := s.images.Delete(ctx, publicID); err != nil {
			s.log.Warn("image cleanup failed", zap.String("public_id", publicID), zap.Error(err))
		}
	}()
}

func trimInput(in Input) Input {
	return Input{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Tag:         strings.TrimSpace(in.Tag),
	}
}

// validate checks lengths. On create every field but the tag is required;
// on update only the fields present are checked.
func validate(in Input, create bool) error {
	var fields []apperr.FieldError
	if create || in.Title != "" {
		if utf8.RuneCountInString(in.Title) < minTitleLen {
			fields = append(fields, apperr.FieldError{Field: "title", Message: "Enter a valid title"})
		}
	}
	if create || in.Description != "" {
		if utf8.RuneCountInString(in.Description) < minDescriptionLen {
			fields = append(fields, apperr.FieldError{Field: "description", Message: "Description must be at least 5 characters"})
		}
	}
	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}
