package health

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type DBChecker struct {
	db *gorm.DB
}

func NewDBChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return &DBChecker{db: db}
}

func (c *DBChecker) Check(ctx context.Context) CheckResult {
	sqlDB, err := c.db.DB()
	if err != nil {
		return failed("db", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return failed("db", err)
	}
	return CheckResult{Name: "db", Healthy: true}
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return failed("redis", err)
	}
	return CheckResult{Name: "redis", Healthy: true}
}

// Pinger is anything that can report its own liveness, such as the identity
// service client.
type Pinger interface {
	Health(ctx context.Context) error
}

type UpstreamChecker struct {
	name   string
	pinger Pinger
}

func NewUpstreamChecker(name string, p Pinger) Checker {
	if p == nil {
		return nil
	}
	return &UpstreamChecker{name: name, pinger: p}
}

func (c *UpstreamChecker) Check(ctx context.Context) CheckResult {
	if err := c.pinger.Health(ctx); err != nil {
		return failed(c.name, err)
	}
	return CheckResult{Name: c.name, Healthy: true}
}

func failed(name string, err error) CheckResult {
	return CheckResult{Name: name, Healthy: false, Error: err.Error()}
}
