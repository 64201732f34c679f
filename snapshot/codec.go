package snapshot

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/rushteam/moviematch/core"
)

// DefaultKey 是快照在 Store 中的默认 key。
const DefaultKey = "moviematch:snapshot"

// envelope 是写入 Store 的外层结构：校验和 + 压缩后的 gob 数据。
type envelope struct {
	Checksum string
	SavedAt  time.Time
	Version  int64
	Data     []byte
}

// Save 把快照编码为 gob，gzip 压缩后写入 Store。
func Save(ctx context.Context, st core.Store, key string, s *Snapshot) error {
	if s == nil {
		return core.ErrIndexUnavailable
	}
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(s.state()); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("snapshot: compress: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("snapshot: finalize compression: %w", err)
	}

	var out bytes.Buffer
	env := envelope{
		Checksum: hex.EncodeToString(sum[:]),
		SavedAt:  time.Now().UTC(),
		Version:  s.Version,
		Data:     compressed.Bytes(),
	}
	if err := gob.NewEncoder(&out).Encode(env); err != nil {
		return fmt.Errorf("snapshot: encode envelope: %w", err)
	}
	return st.Set(ctx, key, out.Bytes())
}

// Restore 从 Store 读取快照并校验，索引由保存的向量重建。
// key 不存在时返回 core.ErrStoreNotFound。
func Restore(ctx context.Context, st core.Store, key string, opts Options) (*Snapshot, error) {
	data, err := st.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("snapshot: decode envelope: %w", err)
	}
	gzr, err := gzip.NewReader(bytes.NewReader(env.Data))
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress: %w", err)
	}
	defer func() { _ = gzr.Close() }()
	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read decompressed: %w", err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != env.Checksum {
		return nil, fmt.Errorf("snapshot: checksum mismatch: expected %s, got %s", env.Checksum, got)
	}

	var st2 state
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&st2); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return assemble(st2, opts.withDefaults())
}
