package intgen

import (
	"net"
	"time"
)

const (
	machineIDBits  = 10
	maxMachineID   = (1 << machineIDBits) - 1
	machineIDShift = sequenceBits
	timestampShift = sequenceBits + machineIDBits
)

var snowflakeEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

type SnowflakeOptions struct {
	// 为空时取本机 IPv4 地址的低两个字节
	MachineID *int64 `cfg:"machineID"`
}

// SnowflakeGenerator 1 位符号 + 41 位时间戳 + 10 位机器 id + 12 位序列号
type SnowflakeGenerator struct {
	seq       *sequencer
	machineID int64
}

func NewSnowflakeGeneratorWithOptions(options *SnowflakeOptions) *SnowflakeGenerator {
	machineID := machineIDFromIP()
	if options != nil && options.MachineID != nil {
		machineID = *options.MachineID
	}
	return &SnowflakeGenerator{
		seq:       newSequencer(snowflakeEpoch),
		machineID: machineID & maxMachineID,
	}
}

func machineIDFromIP() int64 {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return 0
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip := ipnet.IP.To4(); ip != nil {
			return int64(ip[2])<<8 | int64(ip[3])
		}
	}
	return 0
}

func (g *SnowflakeGenerator) Generate() int64 {
	ts, seq := g.seq.next()
	return ts<<timestampShift | g.machineID<<machineIDShift | seq
}
