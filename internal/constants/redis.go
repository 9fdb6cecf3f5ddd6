package constants

// Префиксы ключей в общем хранилище
const (
	RedisKeyCircuitBreaker = "circuit_breaker:"
	RedisKeyCircuitProbe   = "circuit_breaker_probe:"
)
