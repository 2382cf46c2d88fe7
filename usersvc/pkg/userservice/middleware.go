package userservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/taskmesh/backend/usersvc"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Users(ctx context.Context) (u []usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "Users", "count", len(u), "err", err)
	}()
	return mw.next.Users(ctx)
}

func (mw loggingMiddleware) User(ctx context.Context, userID uint64) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "User", "user_id", userID, "err", err)
	}()
	return mw.next.User(ctx, userID)
}

func (mw loggingMiddleware) CreateUser(ctx context.Context, name, email string) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "CreateUser", "email", email, "user_id", u.ID, "err", err)
	}()
	return mw.next.CreateUser(ctx, name, email)
}

func (mw loggingMiddleware) UpdateUser(ctx context.Context, userID uint64, name, email string) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "UpdateUser", "user_id", userID, "email", email, "err", err)
	}()
	return mw.next.UpdateUser(ctx, userID, name, email)
}

func (mw loggingMiddleware) DeleteUser(ctx context.Context, userID uint64) (err error) {
	defer func() {
		mw.logger.Log("method", "DeleteUser", "user_id", userID, "err", err)
	}()
	return mw.next.DeleteUser(ctx, userID)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) Users(ctx context.Context) ([]usersvc.User, error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "users").Add(1)
		mw.requestLatency.With("method", "users").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Users(ctx)
}

func (mw instrumentingMiddleware) User(ctx context.Context, userID uint64) (usersvc.User, error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "user").Add(1)
		mw.requestLatency.With("method", "user").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.User(ctx, userID)
}

func (mw instrumentingMiddleware) CreateUser(ctx context.Context, name, email string) (usersvc.User, error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "create_user").Add(1)
		mw.requestLatency.With("method", "create_user").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.CreateUser(ctx, name, email)
}

func (mw instrumentingMiddleware) UpdateUser(ctx context.Context, userID uint64, name, email string) (usersvc.User, error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "update_user").Add(1)
		mw.requestLatency.With("method", "update_user").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.UpdateUser(ctx, userID, name, email)
}

func (mw instrumentingMiddleware) DeleteUser(ctx context.Context, userID uint64) error {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "delete_user").Add(1)
		mw.requestLatency.With("method", "delete_user").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.DeleteUser(ctx, userID)
}
