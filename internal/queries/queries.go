// Package queries pairs each contract read with a cache stale time and an
// invalidation key. Verification reads are deliberately absent: they always
// go straight to the chain.
package queries

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"podcred/internal/cache"
	"podcred/internal/chain"
)

const (
	UniversityStale      = 5 * time.Second
	RoleStale            = 10 * time.Second
	AllUniversitiesStale = 30 * time.Second
	StudentDiplomasStale = 15 * time.Second
	DiplomaStale         = 15 * time.Second
	roleIDStale          = time.Hour
)

const allUniversitiesKey = "universities:all"

type Queries struct {
	logger *zap.Logger
	reader chain.Reader
	store  cache.Store
}

func New(logger *zap.Logger, reader chain.Reader, store cache.Store) *Queries {
	return &Queries{logger: logger, reader: reader, store: store}
}

// Reader exposes the uncached port for reads that must not be cached.
func (q *Queries) Reader() chain.Reader {
	return q.reader
}

func fetch[T any](ctx context.Context, q *Queries, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	err := q.store.Get(ctx, key, &v)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		q.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err = load(ctx)
	if err != nil {
		return v, err
	}

	if err := q.store.Set(ctx, key, v, ttl); err != nil {
		q.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}

func addrKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func universityKey(addr common.Address) string {
	return "university:" + addrKey(addr)
}

func roleKey(name string, addr common.Address) string {
	return "role:" + name + ":" + addrKey(addr)
}

func studentKey(addr common.Address) string {
	return "student:" + addrKey(addr) + ":diplomas"
}

func (q *Queries) University(ctx context.Context, addr common.Address) (chain.University, error) {
	return fetch(ctx, q, universityKey(addr), UniversityStale, func(ctx context.Context) (chain.University, error) {
		return q.reader.University(ctx, addr)
	})
}

func (q *Queries) AllUniversities(ctx context.Context) ([]common.Address, error) {
	return fetch(ctx, q, allUniversitiesKey, AllUniversitiesStale, q.reader.AllUniversities)
}

func (q *Queries) AdminRoleID(ctx context.Context) (chain.Role, error) {
	return fetch(ctx, q, "roleid:admin", roleIDStale, q.reader.AdminRole)
}

func (q *Queries) UniversityRoleID(ctx context.Context) (chain.Role, error) {
	return fetch(ctx, q, "roleid:university", roleIDStale, q.reader.UniversityRole)
}

func (q *Queries) HasAdminRole(ctx context.Context, addr common.Address) (bool, error) {
	return fetch(ctx, q, roleKey("admin", addr), RoleStale, func(ctx context.Context) (bool, error) {
		role, err := q.AdminRoleID(ctx)
		if err != nil {
			return false, err
		}
		return q.reader.HasRole(ctx, role, addr)
	})
}

func (q *Queries) HasUniversityRole(ctx context.Context, addr common.Address) (bool, error) {
	return fetch(ctx, q, roleKey("university", addr), RoleStale, func(ctx context.Context) (bool, error) {
		role, err := q.UniversityRoleID(ctx)
		if err != nil {
			return false, err
		}
		return q.reader.HasRole(ctx, role, addr)
	})
}

func (q *Queries) StudentDiplomas(ctx context.Context, student common.Address) ([]common.Hash, error) {
	return fetch(ctx, q, studentKey(student), StudentDiplomasStale, func(ctx context.Context) ([]common.Hash, error) {
		return q.reader.StudentDiplomas(ctx, student)
	})
}

func (q *Queries) IsDiplomaMinted(ctx context.Context, id common.Hash) (bool, error) {
	return fetch(ctx, q, "diploma:"+id.Hex()+":minted", DiplomaStale, func(ctx context.Context) (bool, error) {
		return q.reader.IsDiplomaMinted(ctx, id)
	})
}

// TokenForDiploma returns zero for diplomas that have not been minted.
func (q *Queries) TokenForDiploma(ctx context.Context, id common.Hash) (*big.Int, error) {
	return fetch(ctx, q, "diploma:"+id.Hex()+":token", DiplomaStale, func(ctx context.Context) (*big.Int, error) {
		return q.reader.TokenForDiploma(ctx, id)
	})
}

type TokenInfo struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

func (q *Queries) TokenInfo(ctx context.Context) (TokenInfo, error) {
	return fetch(ctx, q, "token:info", roleIDStale, func(ctx context.Context) (TokenInfo, error) {
		name, symbol, err := q.reader.TokenMeta(ctx)
		return TokenInfo{Name: name, Symbol: symbol}, err
	})
}

func (q *Queries) invalidate(ctx context.Context, keys ...string) {
	if err := q.store.Delete(ctx, keys...); err != nil {
		q.logger.Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// InvalidateUniversity drops the registry record, both role flags and the
// university list.
func (q *Queries) InvalidateUniversity(ctx context.Context, addr common.Address) {
	q.invalidate(ctx, universityKey(addr), roleKey("university", addr), roleKey("admin", addr), allUniversitiesKey)
}

func (q *Queries) InvalidateStudent(ctx context.Context, student common.Address) {
	q.invalidate(ctx, studentKey(student))
}

func (q *Queries) InvalidateDiploma(ctx context.Context, id common.Hash) {
	q.invalidate(ctx, "diploma:"+id.Hex()+":minted", "diploma:"+id.Hex()+":token")
}
