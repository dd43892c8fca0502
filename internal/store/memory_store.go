package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/staysearch/unit-index/internal/domain"
)

// Memory is an in-memory IndexStore. It backs local development against
// stores without scripting support and the package test suites.
type Memory struct {
	mu     sync.RWMutex
	kv     map[string]string
	sets   map[string]map[string]struct{}
	zsets  map[string]map[string]float64
	failAt error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		kv:    make(map[string]string),
		sets:  make(map[string]map[string]struct{}),
		zsets: make(map[string]map[string]float64),
	}
}

// FailWith makes every subsequent operation fail with err, tagged as
// domain.ErrStoreUnavailable the way real client failures are. Pass nil
// to heal.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		m.failAt = nil
		return
	}
	m.failAt = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failAt != nil {
		return "", m.failAt
	}
	val, ok := m.kv[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return val, nil
}

func (m *Memory) MGet(_ context.Context, keys []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failAt != nil {
		return nil, m.failAt
	}
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = m.kv[key]
	}
	return out, nil
}

func (m *Memory) Commit(_ context.Context, b *Batch) error {
	if b == nil || b.Empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAt != nil {
		return m.failAt
	}

	for key, val := range b.Set {
		m.kv[key] = val
	}
	for _, key := range b.Del {
		delete(m.kv, key)
		delete(m.sets, key)
		delete(m.zsets, key)
	}
	for key, members := range b.SAdd {
		set := m.sets[key]
		if set == nil {
			set = make(map[string]struct{})
			m.sets[key] = set
		}
		for _, member := range members {
			set[member] = struct{}{}
		}
	}
	for key, members := range b.SRem {
		for _, member := range members {
			delete(m.sets[key], member)
		}
	}
	for key, members := range b.ZAdd {
		zset := m.zsets[key]
		if zset == nil {
			zset = make(map[string]float64)
			m.zsets[key] = zset
		}
		for _, member := range members {
			zset[member.ID] = member.Score
		}
	}
	for key, members := range b.ZRem {
		for _, member := range members {
			delete(m.zsets[key], member)
		}
	}
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failAt != nil {
		return nil, m.failAt
	}
	members := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *Memory) SCard(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failAt != nil {
		return 0, m.failAt
	}
	return int64(len(m.sets[key])), nil
}

func (m *Memory) ZRangeByScore(_ context.Context, key string, min, max float64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failAt != nil {
		return nil, m.failAt
	}
	type entry struct {
		id    string
		score float64
	}
	entries := make([]entry, 0)
	for id, score := range m.zsets[key] {
		if score >= min && score < max {
			entries = append(entries, entry{id: id, score: score})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score < entries[j].score
		}
		return entries[i].id < entries[j].id
	})
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}
	return out, nil
}

func (m *Memory) ZCard(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failAt != nil {
		return 0, m.failAt
	}
	return int64(len(m.zsets[key])), nil
}

func (m *Memory) Scan(_ context.Context, pattern string, fn func(key string) error) error {
	m.mu.RLock()
	if m.failAt != nil {
		m.mu.RUnlock()
		return m.failAt
	}
	seen := make(map[string]struct{}, len(m.kv))
	keys := make([]string, 0, len(m.kv))
	add := func(key string) {
		if _, dup := seen[key]; dup {
			return
		}
		if ok, _ := path.Match(pattern, key); ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for key := range m.kv {
		add(key)
	}
	for key := range m.sets {
		add(key)
	}
	for key := range m.zsets {
		add(key)
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for _, key := range keys {
		if err := fn(key); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) StayQuery(ctx context.Context, from, to time.Time) (map[string]UnitStay, error) {
	members, err := m.ZRangeByScore(ctx, ScheduleDaysKey, DayScore(from), DayScore(to))
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]domain.DayScheduleDocument, 0, len(members))
	for _, member := range members {
		unitID, dayKey, ok := SplitScheduleDayMember(member)
		if !ok {
			continue
		}
		raw, ok := m.kv[ScheduleKeyPrefix+unitID+":"+dayKey]
		if !ok {
			continue
		}
		var doc domain.DayScheduleDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return AggregateStay(docs), nil
}

func (m *Memory) Close() error {
	return nil
}

var _ IndexStore = (*Memory)(nil)
