package intgen

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string        `cfg:"addr" def:"localhost:6379"`
	Password string        `cfg:"password"`
	DB       int           `cfg:"db"`
	KeyName  string        `cfg:"keyName" def:"uid:sequence"`
	Timeout  time.Duration `cfg:"timeout" def:"3s"`
}

// RedisGenerator 分布式 id: 毫秒时间戳 + redis INCR 得到的序列号
// redis 不可用时退化为纯时间戳
type RedisGenerator struct {
	client  redis.UniversalClient
	keyName string
	timeout time.Duration
}

func NewRedisGeneratorWithOptions(options *RedisOptions) *RedisGenerator {
	if options == nil {
		options = &RedisOptions{}
	}
	if options.Addr == "" {
		options.Addr = "localhost:6379"
	}
	return NewRedisGenerator(redis.NewClient(&redis.Options{
		Addr:     options.Addr,
		Password: options.Password,
		DB:       options.DB,
	}), options.KeyName, options.Timeout)
}

func NewRedisGenerator(client redis.UniversalClient, keyName string, timeout time.Duration) *RedisGenerator {
	if keyName == "" {
		keyName = "uid:sequence"
	}
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &RedisGenerator{client: client, keyName: keyName, timeout: timeout}
}

func (g *RedisGenerator) Generate() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	for {
		ts := time.Now().UnixMilli()
		key := g.keyName + ":" + strconv.FormatInt(ts, 10)

		n, err := g.client.Incr(ctx, key).Result()
		if err != nil {
			return ts << sequenceBits
		}
		if n == 1 {
			g.client.Expire(ctx, key, 2*time.Second)
		}
		if n-1 <= maxSequence {
			return ts<<sequenceBits | (n - 1)
		}
		// 当前毫秒序列号用完
		time.Sleep(time.Millisecond)
	}
}
