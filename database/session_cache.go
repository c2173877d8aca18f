package database

import (
	"context"
	"time"

	"medicose-chatbot-backend/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUSessionStore keeps chat sessions in process. The least recently used
// session is evicted once the cache is full.
type LRUSessionStore struct {
	cache *lru.Cache[string, *models.ChatSession]
}

func NewLRUSessionStore(size int) (*LRUSessionStore, error) {
	cache, err := lru.New[string, *models.ChatSession](size)
	if err != nil {
		return nil, err
	}
	return &LRUSessionStore{cache: cache}, nil
}

// Get returns nil without error when no session is stored under key.
func (s *LRUSessionStore) Get(ctx context.Context, key string) (*models.ChatSession, error) {
	session, ok := s.cache.Get(key)
	if !ok {
		return nil, nil
	}
	return session.Clone(), nil
}

func (s *LRUSessionStore) Save(ctx context.Context, session *models.ChatSession) error {
	stored := session.Clone()
	stored.UpdatedAt = time.Now()
	s.cache.Add(stored.ID, stored)
	return nil
}

func (s *LRUSessionStore) Delete(ctx context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

func (s *LRUSessionStore) Len() int {
	return s.cache.Len()
}
