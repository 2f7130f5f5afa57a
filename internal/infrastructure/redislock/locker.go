package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mercadolocal-sv/dte-engine/internal/application/dte"
)

// lockTTL cota superior de una transmisión: si el proceso muere con el candado
// tomado, Redis lo suelta solo.
const lockTTL = 2 * time.Minute

var _ dte.DocumentLocker = (*Locker)(nil)

// Locker candado de transmisión por documento sobre Redis (SET NX). Permite
// correr varias réplicas del motor sin transmitir dos veces el mismo
// documento en paralelo.
type Locker struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewClient crea el cliente Redis y verifica la conexión.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping Redis: %w", err)
	}
	return client, nil
}

// NewLocker construye el candado distribuido sobre un cliente existente.
func NewLocker(client *redis.Client, log zerolog.Logger) *Locker {
	return &Locker{client: client, log: log}
}

// TryAcquire intenta tomar el candado del documento sin bloquear. ok=false
// significa que otra transmisión del mismo documento está en vuelo.
func (l *Locker) TryAcquire(ctx context.Context, documentID string) (func(), bool, error) {
	key := "dte:lock:" + documentID
	ok, err := l.client.SetNX(ctx, key, "1", lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// La liberación no hereda la cancelación del caller: un candado
		// huérfano retiene el documento hasta que venza el TTL.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := l.client.Del(rctx, key).Err(); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("liberar candado de transmisión")
		}
	}
	return release, true, nil
}
