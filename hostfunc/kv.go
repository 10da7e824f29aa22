package hostfunc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var errKeyRequired = errors.New("key required")

// KVConfig bounds a KV store. Zero fields are unlimited.
type KVConfig struct {
	MaxKeySize   int
	MaxValueSize int
	MaxEntries   int
}

func DefaultKVConfig() KVConfig {
	return KVConfig{
		MaxKeySize:   256,
		MaxValueSize: 64 * 1024,
		MaxEntries:   1000,
	}
}

// KV is an in-memory key-value store. Values are any JSON-encodable value;
// size limits apply to the encoded form.
type KV struct {
	cfg  KVConfig
	mu   sync.RWMutex
	data map[string]any
}

func NewKV(cfg KVConfig) *KV {
	return &KV{cfg: cfg, data: make(map[string]any)}
}

func (s *KV) Get(ctx context.Context, args map[string]any) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, errKeyRequired
	}

	s.mu.RLock()
	val, exists := s.data[key]
	s.mu.RUnlock()

	if !exists {
		return args["default"], nil
	}
	return val, nil
}

func (s *KV) Set(ctx context.Context, args map[string]any) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, errKeyRequired
	}
	val, ok := args["value"]
	if !ok {
		return nil, errors.New("value required")
	}

	if s.cfg.MaxKeySize > 0 && len(key) > s.cfg.MaxKeySize {
		return nil, fmt.Errorf("key exceeds %d bytes", s.cfg.MaxKeySize)
	}
	if s.cfg.MaxValueSize > 0 {
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode value: %w", err)
		}
		if len(encoded) > s.cfg.MaxValueSize {
			return nil, fmt.Errorf("value exceeds %d bytes", s.cfg.MaxValueSize)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; !exists && s.cfg.MaxEntries > 0 && len(s.data) >= s.cfg.MaxEntries {
		return nil, fmt.Errorf("store is full (%d entries)", s.cfg.MaxEntries)
	}
	s.data[key] = val

	return "ok", nil
}

func (s *KV) Delete(ctx context.Context, args map[string]any) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, errKeyRequired
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	return "ok", nil
}

// Keys returns stored keys in sorted order.
func (s *KV) Keys(ctx context.Context, args map[string]any) (any, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}
