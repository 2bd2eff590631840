package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/docsmith-core/server/internal/assistant/model"
	errx "github.com/docsmith-core/server/internal/core/error"
	logx "github.com/docsmith-core/server/pkg/logger"
)

const (
	fieldFilename = "filename"
	fieldOwnerID  = "owner_id"
	fieldContent  = "content"
)

// RedisDocumentStore keeps each document blob in a hash keyed by a random
// file reference. References are opaque to callers.
type RedisDocumentStore struct {
	rdb redis.Cmdable
}

var _ model.DocumentStore = (*RedisDocumentStore)(nil)

func NewRedisDocumentStore(rdb redis.Cmdable) *RedisDocumentStore {
	return &RedisDocumentStore{rdb: rdb}
}

func documentKey(fileRef string) string {
	return fmt.Sprintf("document:%s", fileRef)
}

func (s *RedisDocumentStore) Put(ctx context.Context, content []byte, filename, ownerID string) (*model.StoredFile, error) {
	fileRef := uuid.NewString()
	key := documentKey(fileRef)

	err := s.rdb.HSet(ctx, key,
		fieldFilename, filename,
		fieldOwnerID, ownerID,
		fieldContent, content,
	).Err()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Str("filename", filename).Msg("failed to store document")
		return nil, errx.WrapRedis(err)
	}

	logx.Debug().Str("file_ref", fileRef).Str("filename", filename).Int("size", len(content)).Msg("document stored")
	return &model.StoredFile{FileRef: fileRef, Filename: filename, OwnerID: ownerID}, nil
}

func (s *RedisDocumentStore) Get(ctx context.Context, fileRef string) ([]byte, *model.StoredFile, error) {
	if fileRef == "" {
		return nil, nil, errx.New(nil, 400, "empty document reference").WithCode(errx.CodeInvalidReference)
	}
	key := documentKey(fileRef)

	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load document")
		return nil, nil, errx.WrapRedis(err)
	}
	if len(fields) == 0 {
		return nil, nil, errx.New(nil, 404, fmt.Sprintf("document %q not found", fileRef)).WithCode(errx.CodeDocumentNotFound)
	}

	meta := &model.StoredFile{
		FileRef:  fileRef,
		Filename: fields[fieldFilename],
		OwnerID:  fields[fieldOwnerID],
	}
	return []byte(fields[fieldContent]), meta, nil
}

func (s *RedisDocumentStore) Delete(ctx context.Context, fileRef string) error {
	if fileRef == "" {
		return errx.New(nil, 400, "empty document reference").WithCode(errx.CodeInvalidReference)
	}
	if err := s.rdb.Del(ctx, documentKey(fileRef)).Err(); err != nil {
		logx.Error().Err(err).Str("file_ref", fileRef).Msg("failed to delete document")
		return errx.WrapRedis(err)
	}
	return nil
}
