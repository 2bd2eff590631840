package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified Error type. A redis.Nil miss is a
// normal lookup failure, everything else is a storage-layer fault.
func WrapRedis(err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage).WithCode(CodeDocumentNotFound)
	}

	return New(err, http.StatusBadGateway, RedisErrorMessage).WithCode(CodeStorageError)
}
