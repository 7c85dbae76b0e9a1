package memory

import (
	"time"

	"fittrack-be/internal/dto"

	"github.com/patrickmn/go-cache"
)

// SessionCache keeps recently validated sessions in process memory so the
// auth middleware does not hit Postgres on every request. Entries are keyed
// by the full bearer token and never outlive the session row's expiry.
type SessionCache struct {
	cache *cache.Cache
}

func NewSessionCache() *SessionCache {
	// Default expiration of 5 minutes, purge sweep every 10 minutes.
	c := cache.New(5*time.Minute, 10*time.Minute)
	return &SessionCache{
		cache: c,
	}
}

func (r *SessionCache) Save(user *dto.AuthenticatedUser) {
	ttl := cache.DefaultExpiration
	if remaining := time.Until(user.ExpiresAt); remaining < 5*time.Minute {
		if remaining <= 0 {
			return
		}
		ttl = remaining
	}
	r.cache.Set(user.Token, user, ttl)
}

func (r *SessionCache) Get(token string) (*dto.AuthenticatedUser, bool) {
	if x, found := r.cache.Get(token); found {
		user := x.(*dto.AuthenticatedUser)
		if time.Now().Before(user.ExpiresAt) {
			return user, true
		}
		r.cache.Delete(token)
	}
	return nil, false
}

func (r *SessionCache) Delete(token string) {
	r.cache.Delete(token)
}

func (r *SessionCache) Flush() {
	r.cache.Flush()
}
