package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/biometric-auth/internal/application/auth"
	"github.com/baechuer/biometric-auth/internal/domain"
)

// TokenFamilyStore keeps refresh-token families in Redis:
//   - tokfam:<fid>       hash {uid, jti, state}, TTL = refresh lifetime
//   - tokfam:user:<uid>  set of fids, used by RevokeUser; expired fids are
//     pruned lazily. Its TTL follows the newest family so an idle user's
//     index ages out with the families it lists.
//
// Rotation runs as one Lua script so two exchanges of the same token
// cannot both win.
type TokenFamilyStore struct {
	rdb *goredis.Client
}

func NewTokenFamilyStore(c *Client) *TokenFamilyStore {
	return &TokenFamilyStore{rdb: c.rdb}
}

const userKeyPrefix = "tokfam:user:"

func familyKey(fid string) string { return "tokfam:" + fid }
func userKey(uid string) string   { return userKeyPrefix + uid }

// returns: 0 ok, 1 reused, 2 revoked, 3 unknown
var rotateFamily = goredis.NewScript(`
local state = redis.call("HGET", KEYS[1], "state")
if not state then
  return 3
end
if state == "reused" then
  return 1
end
if state ~= "active" then
  return 2
end
if redis.call("HGET", KEYS[1], "jti") ~= ARGV[1] then
  redis.call("HSET", KEYS[1], "state", "reused")
  return 1
end
redis.call("HSET", KEYS[1], "jti", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
local uid = redis.call("HGET", KEYS[1], "uid")
if uid then
  redis.call("PEXPIRE", ARGV[4] .. uid, ARGV[3])
end
return 0
`)

// returns: 1 revoked, 0 not active, -1 gone
var revokeFamily = goredis.NewScript(`
local state = redis.call("HGET", KEYS[1], "state")
if not state then
  return -1
end
if state == "active" then
  redis.call("HSET", KEYS[1], "state", "revoked")
  return 1
end
return 0
`)

func (s *TokenFamilyStore) Create(ctx context.Context, fam domain.TokenFamily) error {
	ttl := time.Until(fam.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("token family %s already expired", fam.ID)
	}
	state := fam.State
	if state == "" {
		state = domain.FamilyActive
	}

	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, familyKey(fam.ID), "uid", fam.UserID, "jti", fam.CurrentJTI, "state", string(state))
		p.PExpire(ctx, familyKey(fam.ID), ttl)
		p.SAdd(ctx, userKey(fam.UserID), fam.ID)
		p.PExpire(ctx, userKey(fam.UserID), ttl)
		return nil
	})
	return err
}

func (s *TokenFamilyStore) Rotate(ctx context.Context, familyID, presented, next string, ttl time.Duration) (auth.RotateOutcome, error) {
	code, err := rotateFamily.Run(ctx, s.rdb, []string{familyKey(familyID)}, presented, next, ttl.Milliseconds(), userKeyPrefix).Int()
	if err != nil {
		return auth.RotateUnknown, fmt.Errorf("rotate family: %w", err)
	}
	switch code {
	case 0:
		return auth.RotateOK, nil
	case 1:
		return auth.RotateReused, nil
	case 2:
		return auth.RotateRevoked, nil
	default:
		return auth.RotateUnknown, nil
	}
}

func (s *TokenFamilyStore) Revoke(ctx context.Context, familyID string) error {
	_, err := s.revoke(ctx, familyID)
	return err
}

func (s *TokenFamilyStore) revoke(ctx context.Context, familyID string) (int, error) {
	code, err := revokeFamily.Run(ctx, s.rdb, []string{familyKey(familyID)}).Int()
	if err != nil {
		return 0, fmt.Errorf("revoke family: %w", err)
	}
	return code, nil
}

func (s *TokenFamilyStore) RevokeUser(ctx context.Context, userID string) error {
	fids, err := s.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("list families: %w", err)
	}
	var gone []any
	for _, fid := range fids {
		code, err := s.revoke(ctx, fid)
		if err != nil {
			return err
		}
		if code < 0 {
			gone = append(gone, fid)
		}
	}
	if len(gone) > 0 {
		if err := s.rdb.SRem(ctx, userKey(userID), gone...).Err(); err != nil {
			return fmt.Errorf("prune families: %w", err)
		}
	}
	return nil
}

func (s *TokenFamilyStore) IsActive(ctx context.Context, familyID string) (bool, error) {
	state, err := s.rdb.HGet(ctx, familyKey(familyID), "state").Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("family state: %w", err)
	}
	return state == string(domain.FamilyActive), nil
}
