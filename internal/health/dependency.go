package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gopkg.in/gomail.v2"
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
	res := CheckResult{Name: "db", Healthy: true}
	if c.db == nil {
		res.Healthy = false
		res.Error = "db not configured"
		return res
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		res.Healthy = false
		res.Error = err.Error()
		return res
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
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
	res := CheckResult{Name: "redis", Healthy: true}
	if c.client == nil {
		res.Healthy = false
		res.Error = "redis not configured"
		return res
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
}

// SMTPDialer is the part of gomail.Dialer the SMTP probe needs.
type SMTPDialer interface {
	Dial() (gomail.SendCloser, error)
}

// SMTPChecker opens and closes a mail relay connection. gomail has no
// context support, so a dial that outlives ctx is reported as a timeout and
// left to finish in the background.
type SMTPChecker struct {
	dialer SMTPDialer
}

func NewSMTPChecker(dialer SMTPDialer) Checker {
	if dialer == nil {
		return nil
	}
	return &SMTPChecker{dialer: dialer}
}

func (c *SMTPChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "smtp", Healthy: true}
	done := make(chan error, 1)
	go func() {
		sc, err := c.dialer.Dial()
		if err == nil {
			err = sc.Close()
		}
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			res.Healthy = false
			res.Error = err.Error()
		}
	case <-ctx.Done():
		res.Healthy = false
		res.Error = fmt.Sprintf("smtp dial: %v", ctx.Err())
	}
	return res
}
