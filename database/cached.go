package database

import (
	"bytes"
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/coocood/freecache"
	"github.com/hatlonely/dataobj/ref"
	"github.com/hatlonely/dataobj/serializer"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	ref.MustRegisterT[Cached](NewCachedWithOptions)
}

type CachedOptions struct {
	DB *ref.TypeOptions `cfg:"db"`

	// Size 缓存字节数，freecache 最小 512KB
	Size int           `cfg:"size" def:"10485760"`
	TTL  time.Duration `cfg:"ttl" def:"1m"`

	// Serializer 查询结果的序列化方式，默认 MsgPack
	Serializer *ref.TypeOptions `cfg:"serializer"`
}

// Cached 缓存 Query 的结果，任何 Execute 都会清空缓存
type Cached struct {
	db         DB
	cache      *freecache.Cache
	ttl        time.Duration
	serializer serializer.Serializer[any, []byte]
}

func NewCachedWithOptions(options *CachedOptions) (*Cached, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if options.DB == nil {
		return nil, errors.New("db is required")
	}

	db, err := NewDBWithOptions(options.DB)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create underlying db")
	}
	return NewCached(db, options)
}

// NewCached 包装已经创建好的 DB，忽略 options.DB
func NewCached(db DB, options *CachedOptions) (*Cached, error) {
	if options == nil {
		options = &CachedOptions{}
	}
	size := options.Size
	if size <= 0 {
		size = 10 * 1024 * 1024
	}
	ttl := options.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	serializerOptions := options.Serializer
	if serializerOptions == nil {
		serializerOptions = &ref.TypeOptions{Type: "MsgPack"}
	}
	s, err := serializer.NewByteSerializerWithOptions(serializerOptions)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create serializer")
	}

	return &Cached{
		db:         db,
		cache:      freecache.NewCache(size),
		ttl:        ttl,
		serializer: s,
	}, nil
}

// key 语句加上按键排序后的参数
func (c *Cached) key(stmt string, args map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(args); err != nil {
		return nil, errors.Wrap(err, "encode args failed")
	}

	d := xxhash.New()
	_, _ = d.WriteString(stmt)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(buf.Bytes())
	return d.Sum(nil), nil
}

func (c *Cached) Execute(ctx context.Context, stmt string, args map[string]any) (int64, error) {
	id, err := c.db.Execute(ctx, stmt, args)
	c.cache.Clear()
	return id, err
}

func (c *Cached) Query(ctx context.Context, stmt string, args map[string]any) ([]Row, error) {
	key, err := c.key(stmt, args)
	if err != nil {
		return nil, err
	}

	if buf, err := c.cache.Get(key); err == nil {
		if rows, err := c.decode(buf); err == nil {
			return rows, nil
		}
		c.cache.Del(key)
	}

	rows, err := c.db.Query(ctx, stmt, args)
	if err != nil {
		return nil, err
	}

	buf, err := c.encode(rows)
	if err != nil {
		return rows, nil
	}
	// 超过 freecache 单条上限时不缓存
	_ = c.cache.Set(key, buf, int(c.ttl.Seconds()))
	return rows, nil
}

func (c *Cached) encode(rows []Row) ([]byte, error) {
	items := make([]any, len(rows))
	for i, row := range rows {
		items[i] = map[string]any(row)
	}
	return c.serializer.Serialize(items)
}

func (c *Cached) decode(buf []byte) ([]Row, error) {
	v, err := c.serializer.Deserialize(buf)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, errors.Errorf("unexpected cached value %T", v)
	}
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Errorf("unexpected cached row %T", item)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Cached) HitCount() int64 {
	return c.cache.HitCount()
}

func (c *Cached) MissCount() int64 {
	return c.cache.MissCount()
}

func (c *Cached) Close() error {
	c.cache.Clear()
	if closer, ok := c.db.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
