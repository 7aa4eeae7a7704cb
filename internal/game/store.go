package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"picmatch/pkg/realtime"
)

// Fragment names published to a session's broadcaster. Each one tells SSE
// subscribers which part of the page to re-render.
const (
	FragmentBoard  = "board"
	FragmentCover  = "cover"
	FragmentReview = "review"
)

// StoreConfig holds what every session in a Store shares.
type StoreConfig struct {
	Dataset      *Dataset
	AdvanceDelay time.Duration
	Logger       *zap.Logger
	// AfterFunc overrides the scheduler for tests. Nil uses the runtime timer.
	AfterFunc realtime.AfterFunc
	// SessionTTL is how long a session may sit idle before Sweep drops it.
	// Zero keeps sessions until they are deleted.
	SessionTTL time.Duration
	// Now overrides the clock used for idle tracking.
	Now func() time.Time
}

// Store holds quiz sessions and delegates to realtime.RoomStore for lookup and broadcast.
type Store struct {
	r      *realtime.RoomStore[*Engine]
	cfg    StoreConfig
	logger *zap.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewStore validates the dataset once so that no session can start on a bad vocabulary.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Dataset.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		r:        realtime.NewRoomStore[*Engine](),
		cfg:      cfg,
		logger:   cfg.Logger,
		lastSeen: make(map[string]time.Time),
	}, nil
}

// CreateSession starts a new session in lang and registers its broadcaster.
func (s *Store) CreateSession(lang Language) (string, *Engine, error) {
	id := uuid.NewString()
	logger := s.logger.With(zap.String("session", id))
	engine, err := NewEngine(s.cfg.Dataset,
		WithLanguage(lang),
		WithAdvanceDelay(s.cfg.AdvanceDelay),
		WithAfterFunc(s.cfg.AfterFunc),
		WithLogger(logger),
		WithListener(s.publisher(id, logger)),
	)
	if err != nil {
		return "", nil, err
	}
	s.r.Create(id, engine)
	s.touch(id)
	logger.Info("session created", zap.String("language", string(lang)))
	return id, engine, nil
}

// GetSession returns a session by ID if it exists and marks it as active.
func (s *Store) GetSession(id string) (*Engine, bool) {
	room, ok := s.r.Get(id)
	if !ok {
		return nil, false
	}
	s.touch(id)
	return room.State, true
}

// Broadcaster returns the SSE broadcaster for a session.
func (s *Store) Broadcaster(id string) (*realtime.Broadcaster[string], bool) {
	return s.r.Broadcaster(id)
}

// Publish notifies subscribers of a session update.
func (s *Store) Publish(id string, fragment string) {
	s.r.Publish(id, fragment)
}

// Delete drops a session and disconnects its subscribers.
func (s *Store) Delete(id string) bool {
	room, ok := s.r.Get(id)
	if !ok {
		return false
	}
	room.State.Close()
	s.mu.Lock()
	delete(s.lastSeen, id)
	s.mu.Unlock()
	return s.r.Delete(id)
}

// Close deletes every session, which ends their open streams.
func (s *Store) Close() {
	for _, id := range s.r.IDs() {
		s.Delete(id)
	}
}

// Sweep deletes sessions idle for longer than SessionTTL and returns how many
// it removed. A session with a connected stream counts as active.
func (s *Store) Sweep() int {
	if s.cfg.SessionTTL <= 0 {
		return 0
	}
	now := s.cfg.Now()
	var idle []string
	s.mu.Lock()
	for id, seen := range s.lastSeen {
		hub, ok := s.r.Broadcaster(id)
		if !ok {
			delete(s.lastSeen, id)
			continue
		}
		if hub.Subscribers() > 0 {
			s.lastSeen[id] = now
			continue
		}
		if now.Sub(seen) > s.cfg.SessionTTL {
			idle = append(idle, id)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, id := range idle {
		if s.Delete(id) {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("idle sessions removed", zap.Int("removed", removed), zap.Int("live", s.Len()))
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.r.Len()
}

func (s *Store) touch(id string) {
	s.mu.Lock()
	s.lastSeen[id] = s.cfg.Now()
	s.mu.Unlock()
}

func (s *Store) publisher(id string, logger *zap.Logger) Listener {
	return func(ev Event) {
		logger.Debug("engine event", zap.String("kind", string(ev.Kind)))
		for _, fragment := range FragmentsFor(ev.Kind) {
			s.r.Publish(id, fragment)
		}
	}
}

// FragmentsFor lists the page fragments an event invalidates.
func FragmentsFor(kind EventKind) []string {
	switch kind {
	case EventRoundStarted, EventAnswerResult:
		return []string{FragmentBoard}
	case EventProgressChanged:
		return []string{FragmentCover}
	case EventLearnedItemAdded:
		return []string{FragmentReview}
	case EventSessionCompleted:
		return []string{FragmentBoard, FragmentCover}
	case EventSessionRestarted:
		return []string{FragmentCover, FragmentReview}
	case EventLanguageChanged:
		return []string{FragmentBoard, FragmentCover, FragmentReview}
	}
	return nil
}
