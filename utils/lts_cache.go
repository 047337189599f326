package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/nci/gomemcache/memcache"
)

// LTSCache memoises finished product responses in memcached, keyed
// by the md5 of the request URI. The cache is strictly best effort:
// memcached being down or evicting entries only costs recomputation.
type LTSCache struct {
	mc      *memcache.Client
	verbose bool
}

func NewLTSCache(mcURIs []string, verbose bool) *LTSCache {
	if len(mcURIs) == 0 {
		return nil
	}
	// lazy connection; errors returned in .Get
	return &LTSCache{mc: memcache.New(mcURIs...), verbose: verbose}
}

func CacheKey(requestURI string) string {
	buff := md5.Sum([]byte(requestURI))
	return hex.EncodeToString(buff[:])
}

func (c *LTSCache) Get(requestURI string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	item, err := c.mc.Get(CacheKey(requestURI))
	if err != nil {
		return nil, false
	}
	if c.verbose {
		log.Printf("cache hit: %v", requestURI)
	}
	return item.Value, true
}

func (c *LTSCache) Put(requestURI string, value []byte) {
	if c == nil {
		return
	}
	// don't care about errors; memcache may not necessarily retain this anyway
	err := c.mc.Set(&memcache.Item{Key: CacheKey(requestURI), Value: value})
	if err != nil && c.verbose {
		log.Printf("cache put failed for %v: %v", requestURI, err)
	}
}

// ContentType picks the response content type for a requested
// product format.
func ContentType(format string) (string, error) {
	switch format {
	case "", "png":
		return "image/png", nil
	case "jpeg":
		return "image/jpeg", nil
	case "lts":
		return "application/octet-stream", nil
	case "json":
		return "application/json", nil
	case "csv":
		return "text/csv", nil
	default:
		return "", fmt.Errorf("Unsupported encoding format: %v", format)
	}
}
