package intgen

import (
	"sync/atomic"
	"time"

	"github.com/hatlonely/dataobj/ref"
)

func init() {
	ref.MustRegisterT[TimestampSeqGenerator](NewTimestampSeqGenerator)
	ref.MustRegisterT[SnowflakeGenerator](NewSnowflakeGeneratorWithOptions)
	ref.MustRegisterT[RedisGenerator](NewRedisGeneratorWithOptions)
}

// IntGenerator 生成 64 位整数 id，常用作整型主键的默认值
type IntGenerator interface {
	Generate() int64
}

const (
	sequenceBits = 12
	maxSequence  = (1 << sequenceBits) - 1
)

// sequencer 毫秒时间戳 + 12 位序列号，序列号溢出时等待下一毫秒
type sequencer struct {
	state int64
	epoch int64
}

func newSequencer(epoch int64) *sequencer {
	return &sequencer{state: (time.Now().UnixMilli() - epoch) << sequenceBits, epoch: epoch}
}

func (s *sequencer) next() (int64, int64) {
	for {
		old := atomic.LoadInt64(&s.state)
		ts, seq := old>>sequenceBits, old&maxSequence

		now := time.Now().UnixMilli() - s.epoch
		if now <= ts {
			seq = (seq + 1) & maxSequence
			if seq == 0 {
				for now <= ts {
					now = time.Now().UnixMilli() - s.epoch
				}
				ts = now
			}
		} else {
			ts, seq = now, 0
		}

		if atomic.CompareAndSwapInt64(&s.state, old, ts<<sequenceBits|seq) {
			return ts, seq
		}
	}
}

// TimestampSeqGenerator 单机 id: 高 52 位毫秒时间戳，低 12 位序列号
type TimestampSeqGenerator struct {
	seq *sequencer
}

func NewTimestampSeqGenerator() *TimestampSeqGenerator {
	return &TimestampSeqGenerator{seq: newSequencer(0)}
}

func (g *TimestampSeqGenerator) Generate() int64 {
	ts, seq := g.seq.next()
	return ts<<sequenceBits | seq
}
