package intgen

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hatlonely/dataobj/ref"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

func assertUnique(g IntGenerator, goroutines, n int) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	ids := map[int64]struct{}{}
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n; j++ {
				id := g.Generate()
				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	So(len(ids), ShouldEqual, goroutines*n)
}

func TestSnowflakeGenerator(t *testing.T) {
	Convey("测试 SnowflakeGenerator", t, func() {
		Convey("id 递增且结构正确", func() {
			machineID := int64(123)
			g := NewSnowflakeGeneratorWithOptions(&SnowflakeOptions{MachineID: &machineID})
			id1, id2 := g.Generate(), g.Generate()
			So(id2, ShouldBeGreaterThan, id1)
			So((id1>>machineIDShift)&maxMachineID, ShouldEqual, 123)
			So(id1>>timestampShift, ShouldBeGreaterThan, 0)
		})

		Convey("机器 id 超出范围被截断", func() {
			machineID := int64(2048 + 5)
			g := NewSnowflakeGeneratorWithOptions(&SnowflakeOptions{MachineID: &machineID})
			So((g.Generate()>>machineIDShift)&maxMachineID, ShouldEqual, 5)
		})

		Convey("并发生成不重复", func() {
			assertUnique(NewSnowflakeGeneratorWithOptions(nil), 8, 2000)
		})
	})
}

func TestTimestampSeqGenerator(t *testing.T) {
	Convey("测试 TimestampSeqGenerator", t, func() {
		g := NewTimestampSeqGenerator()
		now := time.Now().UnixMilli()
		So(g.Generate()>>sequenceBits, ShouldBeGreaterThanOrEqualTo, now)
		assertUnique(g, 4, 5000)
	})
}

func TestRedisGenerator(t *testing.T) {
	Convey("测试 RedisGenerator", t, func() {
		mr, err := miniredis.Run()
		So(err, ShouldBeNil)
		defer mr.Close()

		Convey("基于 redis 生成唯一 id", func() {
			g := NewRedisGenerator(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:uid", time.Second)
			id1, id2 := g.Generate(), g.Generate()
			So(id1, ShouldNotEqual, id2)
			So(id1>>sequenceBits, ShouldBeLessThanOrEqualTo, time.Now().UnixMilli())
			assertUnique(g, 4, 200)
		})

		Convey("通过 ref 和 map 配置构造", func() {
			obj, err := ref.New("github.com/hatlonely/dataobj/uid/intgen", "RedisGenerator", map[string]any{
				"addr":    mr.Addr(),
				"keyName": "test:ref",
			})
			So(err, ShouldBeNil)
			So(obj.(IntGenerator).Generate(), ShouldBeGreaterThan, 0)
		})

		Convey("redis 不可用时退化为时间戳", func() {
			g := NewRedisGenerator(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "", 100*time.Millisecond)
			id := g.Generate()
			So(id&maxSequence, ShouldEqual, 0)
			So(id>>sequenceBits, ShouldBeGreaterThan, 0)
		})
	})
}
