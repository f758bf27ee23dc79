// Package redistest provides an in-memory stand-in for the few go-redis
// commands the service uses.
package redistest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Published is one PUBLISH call.
type Published struct {
	Channel string
	Payload []byte
}

// Fake implements Incr, Expire, TTL, Set, Get, Del, Exists and Publish.
type Fake struct {
	mu        sync.Mutex
	values    map[string]string
	expiry    map[string]time.Time
	Published []Published
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{values: map[string]string{}, expiry: map[string]time.Time{}}
}

func (f *Fake) live(key string) (string, bool) {
	if exp, ok := f.expiry[key]; ok && time.Now().After(exp) {
		delete(f.values, key)
		delete(f.expiry, key)
	}
	v, ok := f.values[key]
	return v, ok
}

// Incr implements INCR.
func (f *Fake) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, _ := f.live(key)
	n, _ := strconv.ParseInt(v, 10, 64)
	n++
	f.values[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

// Expire implements EXPIRE.
func (f *Fake) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live(key); !ok {
		return redis.NewBoolResult(false, nil)
	}
	f.expiry[key] = time.Now().Add(expiration)
	return redis.NewBoolResult(true, nil)
}

// TTL implements TTL; missing keys report -2 like Redis.
func (f *Fake) TTL(_ context.Context, key string) *redis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live(key); !ok {
		return redis.NewDurationResult(-2, nil)
	}
	exp, ok := f.expiry[key]
	if !ok {
		return redis.NewDurationResult(-1, nil)
	}
	return redis.NewDurationResult(time.Until(exp), nil)
}

// Set implements SET with an optional expiry.
func (f *Fake) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = fmt.Sprint(value)
	if expiration > 0 {
		f.expiry[key] = time.Now().Add(expiration)
	} else {
		delete(f.expiry, key)
	}
	return redis.NewStatusResult("OK", nil)
}

// Get implements GET.
func (f *Fake) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.live(key)
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

// Del implements DEL.
func (f *Fake) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.live(k); ok {
			n++
		}
		delete(f.values, k)
		delete(f.expiry, k)
	}
	return redis.NewIntResult(n, nil)
}

// Exists implements EXISTS.
func (f *Fake) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.live(k); ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// Publish records the message.
func (f *Fake) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var payload []byte
	switch m := message.(type) {
	case []byte:
		payload = m
	case string:
		payload = []byte(m)
	default:
		payload = []byte(fmt.Sprint(m))
	}
	f.Published = append(f.Published, Published{Channel: channel, Payload: payload})
	return redis.NewIntResult(0, nil)
}
