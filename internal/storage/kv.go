// Package storage は設定データ（JSONブロブ）の永続化先を提供する。
//
// 保存単位はキーごとのブロブ全体で、部分更新は行わない。
// バックエンドはメモリ、ファイル、SQLite、PostgreSQL、Redisから選択する。
package storage

import (
	"context"
	"fmt"
)

// KV はキー単位でブロブを読み書きするインターフェース。
type KV interface {
	// Get はキーに対応する値を返す。存在しない場合はfoundがfalseになる。
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set はキーの値を丸ごと置き換える。
	Set(ctx context.Context, key string, value []byte) error
}

// Backend はストレージバックエンドの種類。
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

// ParseBackend は文字列をBackendに変換する。
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendMemory, BackendFile, BackendSQLite, BackendPostgres, BackendRedis:
		return b, nil
	default:
		return "", fmt.Errorf("unknown storage backend: %q", s)
	}
}

// prefixed はキーに共通の接頭辞を付けるKVのラッパー。
type prefixed struct {
	prefix string
	kv     KV
}

// WithPrefix は全てのキーにprefixを付けて委譲するKVを返す。
func WithPrefix(kv KV, prefix string) KV {
	if prefix == "" {
		return kv
	}
	return &prefixed{prefix: prefix, kv: kv}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.kv.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.kv.Set(ctx, p.prefix+key, value)
}
