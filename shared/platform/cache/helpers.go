package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Tope de cada operación de caché; una caché lenta no frena la operación de negocio.
const opTimeout = 200 * time.Millisecond

// CacheSet escribe de forma síncrona. Al volver, la entrada ya es visible para la siguiente lectura.
// Un error solo se registra.
func CacheSet(ctx context.Context, cache Cache, key string, value interface{}, ttl int, log *zap.Logger) {
	if cache == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	if err := cache.Set(cacheCtx, key, value, ttl); err != nil {
		log.Warn("Cache update failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// CacheDelete elimina una clave antes de volver.
func CacheDelete(ctx context.Context, cache Cache, key string, log *zap.Logger) {
	if cache == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	if err := cache.Delete(cacheCtx, key); err != nil {
		log.Warn("Cache deletion failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// InvalidatePrefix borra una familia de claves de forma síncrona.
// Un error de caché no debe tumbar la operación de negocio, solo se registra.
func InvalidatePrefix(ctx context.Context, cache Cache, prefix string, log *zap.Logger) {
	if cache == nil {
		return
	}
	// La invalidación debe completarse aunque el llamador ya haya cancelado.
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	if err := cache.DeletePrefix(cacheCtx, prefix); err != nil {
		log.Warn("Cache invalidation failed",
			zap.String("prefix", prefix),
			zap.Error(err))
	}
}
