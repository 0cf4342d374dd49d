package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/pkg/errs"
	"github.com/xxxsen/advisor/internal/pkg/timeutil"
	"github.com/xxxsen/advisor/internal/workflow"
)

const maxTitleLen = 80

// QueryEngine is the workflow contract; satisfied by *workflow.Engine.
type QueryEngine interface {
	Run(ctx context.Context, in workflow.Input) (*workflow.Result, error)
}

// ConversationStore is the conversation persistence contract; satisfied by
// *repo.ConversationRepo.
type ConversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) error
	Get(ctx context.Context, tenantID, convID string) (*model.Conversation, error)
	List(ctx context.Context, tenantID string, limit uint) ([]model.Conversation, error)
	Touch(ctx context.Context, tenantID, convID string, mtime int64) error
}

type QueryRequest struct {
	TenantID       string
	ClientID       string
	UserID         string
	ConversationID string
	Query          string
	DocTypes       []string
	CompanyFilter  string
}

// QueryService owns conversation lifecycle around the workflow engine.
// Turns within one conversation are serialized in submission order; turns in
// different conversations run concurrently.
type QueryService struct {
	engine QueryEngine
	convs  ConversationStore

	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

func NewQueryService(engine QueryEngine, convs ConversationStore) *QueryService {
	return &QueryService{
		engine: engine,
		convs:  convs,
		locks:  make(map[string]*convLock),
	}
}

func (s *QueryService) Submit(ctx context.Context, req QueryRequest) (*workflow.Result, error) {
	if req.TenantID == "" {
		return nil, errs.ErrScopeViolation
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty query: %w", errs.ErrInvalid)
	}

	convID := req.ConversationID
	if convID == "" {
		conv := &model.Conversation{
			ID:       uuid.NewString(),
			TenantID: req.TenantID,
			ClientID: req.ClientID,
			UserID:   req.UserID,
			Title:    titleFromQuery(req.Query),
			Ctime:    timeutil.NowUnix(),
			Mtime:    timeutil.NowUnix(),
		}
		if err := s.convs.Create(ctx, conv); err != nil {
			return nil, err
		}
		convID = conv.ID
	} else if _, err := s.convs.Get(ctx, req.TenantID, convID); err != nil {
		return nil, err
	}

	unlock := s.lockConversation(convID)
	defer unlock()

	result, err := s.engine.Run(ctx, workflow.Input{
		TenantID:       req.TenantID,
		ClientID:       req.ClientID,
		UserID:         req.UserID,
		ConversationID: convID,
		Query:          req.Query,
		DocTypes:       req.DocTypes,
		CompanyFilter:  req.CompanyFilter,
	})
	if err != nil {
		return nil, err
	}
	if err := s.convs.Touch(ctx, req.TenantID, convID, timeutil.NowUnix()); err != nil {
		// mtime drift only affects retention ordering, not correctness.
		return result, nil
	}
	return result, nil
}

func (s *QueryService) ListConversations(ctx context.Context, tenantID string, limit uint) ([]model.Conversation, error) {
	return s.convs.List(ctx, tenantID, limit)
}

// lockConversation hands out a per-conversation mutex, refcounted so idle
// entries do not accumulate for the life of the process.
func (s *QueryService) lockConversation(convID string) func() {
	s.mu.Lock()
	l, ok := s.locks[convID]
	if !ok {
		l = &convLock{}
		s.locks[convID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, convID)
		}
		s.mu.Unlock()
	}
}

func titleFromQuery(query string) string {
	title := strings.TrimSpace(query)
	runes := []rune(title)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen]) + "..."
	}
	return title
}
