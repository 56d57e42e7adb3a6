package oauth2

import (
	"sync"
)

// TokenCache holds tokens by provider key. It is safe for concurrent use.
type TokenCache struct {
	tokens map[string]*Token
	mutex  sync.RWMutex
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]*Token),
	}
}

func (c *TokenCache) Get(key string) *Token {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.tokens[key]
}

func (c *TokenCache) Set(key string, token *Token) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tokens[key] = token
}

func (c *TokenCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.tokens, key)
}

// SharedCache is used by providers created without WithCache, so cases of
// one run share a token.
var SharedCache = NewTokenCache()
