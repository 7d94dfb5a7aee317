package resolutioncache

import (
	"strings"

	"ai-queryrefine-be/pkg/resolver"
)

// unit separator, never present in labels, properties or user literals
const sep = "\x1f"

const redisKeyPrefix = "valuemap:"

func field(key resolver.CacheKey) string {
	return strings.Join([]string{key.Label, key.Property, key.RawValue}, sep)
}

func sessionPrefix(sessionID string) string {
	return sessionID + sep
}

func flatKey(key resolver.CacheKey) string {
	return sessionPrefix(key.SessionID) + field(key)
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}
