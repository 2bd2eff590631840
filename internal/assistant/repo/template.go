package repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/docsmith-core/server/internal/assistant/model"
	errx "github.com/docsmith-core/server/internal/core/error"
	logx "github.com/docsmith-core/server/pkg/logger"
)

const templateSetKey = "templates"

// RedisTemplateRegistry resolves template filenames against a Redis-backed
// registry. Template bytes live in the document store; the registry maps the
// filename to the stored file reference.
type RedisTemplateRegistry struct {
	rdb   redis.Cmdable
	store model.DocumentStore
}

var _ model.TemplateRegistry = (*RedisTemplateRegistry)(nil)

func NewRedisTemplateRegistry(rdb redis.Cmdable, store model.DocumentStore) *RedisTemplateRegistry {
	return &RedisTemplateRegistry{rdb: rdb, store: store}
}

func templateKey(filename string) string {
	return fmt.Sprintf("template:%s", filename)
}

// Register stores the template bytes and records the filename in the
// registry. Re-registering a filename replaces the previous mapping.
func (r *RedisTemplateRegistry) Register(ctx context.Context, filename string, content []byte) (*model.TemplateInfo, error) {
	stored, err := r.store.Put(ctx, content, filename, "")
	if err != nil {
		return nil, err
	}
	if err := r.rdb.Set(ctx, templateKey(filename), stored.FileRef, 0).Err(); err != nil {
		logx.Error().Err(err).Str("filename", filename).Msg("failed to record template mapping")
		return nil, errx.WrapRedis(err)
	}
	if err := r.rdb.SAdd(ctx, templateSetKey, filename).Err(); err != nil {
		logx.Error().Err(err).Str("filename", filename).Msg("failed to index template")
		return nil, errx.WrapRedis(err)
	}
	logx.Info().Str("filename", filename).Str("file_ref", stored.FileRef).Msg("template registered")
	return &model.TemplateInfo{Filename: filename, FileRef: stored.FileRef}, nil
}

func (r *RedisTemplateRegistry) List(ctx context.Context) ([]string, error) {
	names, err := r.rdb.SMembers(ctx, templateSetKey).Result()
	if err != nil {
		logx.Error().Err(err).Msg("failed to list templates")
		return nil, errx.WrapRedis(err)
	}
	sort.Strings(names)
	return names, nil
}

func (r *RedisTemplateRegistry) Find(ctx context.Context, filename string) (*model.TemplateInfo, error) {
	fileRef, err := r.rdb.Get(ctx, templateKey(filename)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errx.New(nil, 404, fmt.Sprintf("template %q not found", filename)).WithCode(errx.CodeTemplateNotFound)
		}
		logx.Error().Err(err).Str("filename", filename).Msg("failed to resolve template")
		return nil, errx.WrapRedis(err)
	}
	return &model.TemplateInfo{Filename: filename, FileRef: fileRef}, nil
}

func (r *RedisTemplateRegistry) Fetch(ctx context.Context, filename string) ([]byte, *model.TemplateInfo, error) {
	info, err := r.Find(ctx, filename)
	if err != nil {
		return nil, nil, err
	}
	content, _, err := r.store.Get(ctx, info.FileRef)
	if err != nil {
		// a dangling mapping reads as a missing template, not a storage fault
		if errx.CodeOf(err) == errx.CodeDocumentNotFound {
			return nil, nil, errx.New(err, 404, fmt.Sprintf("template %q not found", filename)).WithCode(errx.CodeTemplateNotFound)
		}
		return nil, nil, err
	}
	return content, info, nil
}
