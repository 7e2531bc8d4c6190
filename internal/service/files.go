package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tfinance/tfinance-api/internal/repository"
	"github.com/tfinance/tfinance-api/internal/storage"
)

var (
	ErrPremiumRequired = errors.New("premium subscription required")
	ErrFileNotFound    = errors.New("file not found")
)

// FilesService serves premium downloads.
type FilesService struct {
	users      UserStore
	store      FileStore
	appArchive string
	log        zerolog.Logger
	now        func() time.Time
}

// NewFilesService creates a new FilesService serving appArchive from store.
func NewFilesService(users UserStore, store FileStore, appArchive string, log zerolog.Logger) *FilesService {
	return &FilesService{
		users:      users,
		store:      store,
		appArchive: appArchive,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// OpenAppArchive opens the desktop application archive for a premium user.
// The caller closes the reader.
func (s *FilesService) OpenAppArchive(ctx context.Context, userID int64) (io.ReadCloser, storage.Object, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, storage.Object{}, ErrUserNotFound
		}
		return nil, storage.Object{}, err
	}
	if !user.PremiumActive(s.now()) {
		return nil, storage.Object{}, ErrPremiumRequired
	}

	rc, obj, err := s.store.Open(ctx, s.appArchive)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			s.log.Error().Str("key", s.appArchive).Msg("application archive is missing from storage")
			return nil, storage.Object{}, ErrFileNotFound
		}
		return nil, storage.Object{}, err
	}
	s.log.Info().Int64("user_id", userID).Str("key", obj.Key).Int64("size", obj.Size).Msg("application archive download")
	return rc, obj, nil
}
