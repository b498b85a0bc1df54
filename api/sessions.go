package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/reorder"
)

// TaskAPIFactory returns the task API a user's board sessions talk to.
type TaskAPIFactory func(userID string) reorder.TaskAPI

// SessionOptions configures the engines created by Sessions.
type SessionOptions struct {
	Order          domain.WeightOrder
	PersistTimeout time.Duration
	SuccessMessage string
	FailureMessage string
	// TTL drops sessions with no request or stream activity for this long.
	TTL    time.Duration
	Moves  *MoveCounter
	Logger *log.Logger
}

// Session is one user's live view of a project board.
type Session struct {
	Engine *reorder.Engine
	UserID string

	broker   *streamBroker
	lastUsed atomic.Int64
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

type sessionKey struct {
	userID    string
	projectID int
}

// Sessions keeps one board session per user and project.
type Sessions struct {
	newAPI TaskAPIFactory
	opts   SessionOptions
	log    *log.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*Session
	// loading serialises first loads so concurrent requests share one session.
	loading map[sessionKey]*sync.Mutex
}

// NewSessions creates an empty session registry.
func NewSessions(newAPI TaskAPIFactory, opts SessionOptions) *Sessions {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Sessions{
		newAPI:   newAPI,
		opts:     opts,
		log:      logger,
		sessions: make(map[sessionKey]*Session),
		loading:  make(map[sessionKey]*sync.Mutex),
	}
}

// Get returns the session of userID on projectID, creating and loading it on
// first use.
func (s *Sessions) Get(ctx context.Context, userID string, projectID int) (*Session, error) {
	key := sessionKey{userID: userID, projectID: projectID}

	s.mu.Lock()
	if sess, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		sess.touch()
		return sess, nil
	}
	lm, ok := s.loading[key]
	if !ok {
		lm = &sync.Mutex{}
		s.loading[key] = lm
	}
	s.mu.Unlock()

	lm.Lock()
	defer lm.Unlock()

	s.mu.Lock()
	if sess, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		sess.touch()
		return sess, nil
	}
	s.mu.Unlock()

	sess := s.newSession(userID, projectID)
	if err := sess.Engine.Load(ctx); err != nil {
		s.mu.Lock()
		delete(s.loading, key)
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[key] = sess
	delete(s.loading, key)
	s.mu.Unlock()
	s.log.WithFields(log.Fields{"user": userID, "project": projectID, "session": sess.Engine.ID()}).Debug("board session opened")
	return sess, nil
}

func (s *Sessions) newSession(userID string, projectID int) *Session {
	sessionID := uuid.NewString()
	entry := s.log.WithField("user", userID)
	broker := newStreamBroker()
	engine := reorder.New(s.newAPI(userID), projectID, reorder.Options{
		SessionID:      sessionID,
		Order:          s.opts.Order,
		PersistTimeout: s.opts.PersistTimeout,
		SuccessMessage: s.opts.SuccessMessage,
		FailureMessage: s.opts.FailureMessage,
		Notifier:       sessionNotifier{broker: broker, moves: s.opts.Moves, log: entry.WithField("project", projectID)},
		Logger:         entry,
	})
	engine.Subscribe(func(snap reorder.Snapshot) {
		broker.publish(eventSnapshot, snap)
	})
	sess := &Session{Engine: engine, UserID: userID, broker: broker}
	sess.touch()
	return sess
}

// ReloadProject refetches every session showing projectID except the one
// whose id is origin. It returns how many sessions were reloaded.
func (s *Sessions) ReloadProject(ctx context.Context, projectID int, origin string) int {
	s.mu.Lock()
	targets := make([]*Session, 0, 4)
	for key, sess := range s.sessions {
		if key.projectID == projectID && sess.Engine.ID() != origin {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	reloaded := 0
	for _, sess := range targets {
		if err := sess.Engine.Reload(ctx); err != nil {
			s.log.WithFields(log.Fields{"project": projectID, "session": sess.Engine.ID()}).WithError(err).Error("reload board session")
			continue
		}
		reloaded++
	}
	return reloaded
}

// Sweep drops sessions idle since before now minus the TTL. Sessions with
// connected stream clients or moves still being persisted are kept, so Wait
// covers every outstanding move. It returns how many were dropped.
func (s *Sessions) Sweep(now time.Time) int {
	if s.opts.TTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.opts.TTL).UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for key, sess := range s.sessions {
		if sess.lastUsed.Load() < cutoff && sess.broker.subscribers() == 0 && sess.Engine.Pending() == 0 {
			delete(s.sessions, key)
			dropped++
		}
	}
	return dropped
}

// Run sweeps idle sessions until ctx is done.
func (s *Sessions) Run(ctx context.Context) {
	if s.opts.TTL <= 0 {
		return
	}
	ticker := time.NewTicker(s.opts.TTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				s.log.Debugf("dropped %d idle board sessions", n)
			}
		}
	}
}

// Wait blocks until every session's background moves have completed.
func (s *Sessions) Wait() {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.Unlock()
	for _, sess := range all {
		sess.Engine.Wait()
	}
}

// Len reports the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
