package constant

// Message types
const (
	MsgTypeText = "text"
)

// Pagination limits
const (
	DefaultHistoryPageSize      = 50
	MaxHistoryPageSize          = 100
	DefaultConversationPageSize = 20
	MaxConversationPageSize     = 50
)

// Rate limit groups
const (
	RateLimitGroupChat    = "chat"
	RateLimitGroupGeneric = "generic"
)

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyToken       = "token:%d"           // token:{user_id}
	redisKeyUnreadCount = "chat:unread:%d"     // chat:unread:{user_id}
	redisKeyUnreadVer   = "chat:unread_ver:%d" // chat:unread_ver:{user_id}
	redisKeyRateLimit   = "ratelimit:%s:%s"    // ratelimit:{group}:{identity}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "campuschat:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyToken() string       { return redisKeyPrefix + redisKeyToken }
func RedisKeyUnreadCount() string { return redisKeyPrefix + redisKeyUnreadCount }
func RedisKeyUnreadVer() string   { return redisKeyPrefix + redisKeyUnreadVer }
func RedisKeyRateLimit() string   { return redisKeyPrefix + redisKeyRateLimit }
