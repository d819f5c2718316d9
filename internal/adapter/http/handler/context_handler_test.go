package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

type contextServiceStub struct {
	createFriendFn func(ctx context.Context, input usecase.CreateFriendInput) (*domain.LedgerContext, bool, error)
	createGroupFn  func(ctx context.Context, input usecase.CreateGroupInput) (*domain.LedgerContext, error)
	addMembersFn   func(ctx context.Context, input usecase.AddMembersInput) (*domain.LedgerContext, error)
	getFn          func(ctx context.Context, contextID, actorID string) (*domain.LedgerContext, error)
	listFn         func(ctx context.Context, userID string) ([]*domain.LedgerContext, error)
}

func (s *contextServiceStub) CreateFriend(ctx context.Context, input usecase.CreateFriendInput) (*domain.LedgerContext, bool, error) {
	return s.createFriendFn(ctx, input)
}

func (s *contextServiceStub) CreateGroup(ctx context.Context, input usecase.CreateGroupInput) (*domain.LedgerContext, error) {
	return s.createGroupFn(ctx, input)
}

func (s *contextServiceStub) AddMembers(ctx context.Context, input usecase.AddMembersInput) (*domain.LedgerContext, error) {
	return s.addMembersFn(ctx, input)
}

func (s *contextServiceStub) GetContext(ctx context.Context, contextID, actorID string) (*domain.LedgerContext, error) {
	return s.getFn(ctx, contextID, actorID)
}

func (s *contextServiceStub) ListContexts(ctx context.Context, userID string) ([]*domain.LedgerContext, error) {
	return s.listFn(ctx, userID)
}

func (s *contextServiceStub) Roster(ctx context.Context, contextID, actorID string) ([]domain.Member, error) {
	lc, err := s.getFn(ctx, contextID, actorID)
	if err != nil {
		return nil, err
	}
	return lc.Members, nil
}

func friendContext() *domain.LedgerContext {
	return &domain.LedgerContext{
		ID:       "ctx-1",
		Type:     domain.ContextTypeFriend,
		Currency: "EUR",
		Members:  []domain.Member{{UserID: "me", Name: "Me"}, {UserID: "bob", Name: "Bob"}},
	}
}

func TestContextHandler_CreateFriend(t *testing.T) {
	tests := []struct {
		name    string
		created bool
		status  int
	}{
		{"new pair", true, http.StatusCreated},
		{"existing pair", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured usecase.CreateFriendInput
			h := NewContextHandler(&contextServiceStub{
				createFriendFn: func(ctx context.Context, input usecase.CreateFriendInput) (*domain.LedgerContext, bool, error) {
					captured = input
					return friendContext(), tt.created, nil
				},
			})

			body, _ := json.Marshal(dto.CreateFriendRequest{Friend: dto.MemberRequest{UserID: "bob", Name: "Bob"}})
			req := asUser(httptest.NewRequest(http.MethodPost, "/contexts/friends", bytes.NewReader(body)), "me")
			rec := httptest.NewRecorder()

			h.CreateFriend(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if captured.Me.UserID != "me" || captured.Friend.UserID != "bob" {
				t.Fatalf("unexpected input %+v", captured)
			}

			var resp dto.ContextResponse
			decodeBody(t, rec, &resp)
			if resp.Created == nil || *resp.Created != tt.created || len(resp.Members) != 2 {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestContextHandler_CreateGroup_InvalidJSON(t *testing.T) {
	h := NewContextHandler(&contextServiceStub{
		createGroupFn: func(ctx context.Context, input usecase.CreateGroupInput) (*domain.LedgerContext, error) {
			t.Fatal("CreateGroup should not be called for invalid payload")
			return nil, nil
		},
	})

	req := asUser(httptest.NewRequest(http.MethodPost, "/contexts/groups", bytes.NewBufferString("{invalid json")), "me")
	rec := httptest.NewRecorder()

	h.CreateGroup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestContextHandler_CreateGroup_ValidationError(t *testing.T) {
	h := NewContextHandler(&contextServiceStub{
		createGroupFn: func(ctx context.Context, input usecase.CreateGroupInput) (*domain.LedgerContext, error) {
			return nil, domain.ErrInvalidContextName
		},
	})

	body, _ := json.Marshal(dto.CreateGroupRequest{Name: ""})
	req := asUser(httptest.NewRequest(http.MethodPost, "/contexts/groups", bytes.NewReader(body)), "me")
	rec := httptest.NewRecorder()

	h.CreateGroup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestContextHandler_Get(t *testing.T) {
	h := NewContextHandler(&contextServiceStub{
		getFn: func(ctx context.Context, contextID, actorID string) (*domain.LedgerContext, error) {
			if contextID != "ctx-1" || actorID != "me" {
				t.Fatalf("unexpected lookup %s/%s", contextID, actorID)
			}
			return friendContext(), nil
		},
	})

	rec := httptest.NewRecorder()
	h.Get(rec, asUser(httptest.NewRequest(http.MethodGet, "/contexts/ctx-1", nil), "me", "id", "ctx-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestContextHandler_Get_NotFound(t *testing.T) {
	h := NewContextHandler(&contextServiceStub{
		getFn: func(ctx context.Context, contextID, actorID string) (*domain.LedgerContext, error) {
			return nil, domain.ErrContextNotFound
		},
	})

	rec := httptest.NewRecorder()
	h.Get(rec, asUser(httptest.NewRequest(http.MethodGet, "/contexts/nope", nil), "me", "id", "nope"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestContextHandler_ListAndRoster(t *testing.T) {
	h := NewContextHandler(&contextServiceStub{
		listFn: func(ctx context.Context, userID string) ([]*domain.LedgerContext, error) {
			return []*domain.LedgerContext{friendContext()}, nil
		},
		getFn: func(ctx context.Context, contextID, actorID string) (*domain.LedgerContext, error) {
			return friendContext(), nil
		},
	})

	rec := httptest.NewRecorder()
	h.List(rec, asUser(httptest.NewRequest(http.MethodGet, "/contexts", nil), "me"))
	var list dto.ListContextsResponse
	decodeBody(t, rec, &list)
	if list.Total != 1 || list.Contexts[0].ID != "ctx-1" {
		t.Fatalf("unexpected list %+v", list)
	}

	rec = httptest.NewRecorder()
	h.Roster(rec, asUser(httptest.NewRequest(http.MethodGet, "/contexts/ctx-1/roster", nil), "me", "id", "ctx-1"))
	var roster []dto.MemberResponse
	decodeBody(t, rec, &roster)
	if len(roster) != 2 || roster[0].UserID != "me" || roster[1].UserID != "bob" {
		t.Fatalf("unexpected roster %+v", roster)
	}
}

func TestContextHandler_AddMembers_FriendRejected(t *testing.T) {
	h := NewContextHandler(&contextServiceStub{
		addMembersFn: func(ctx context.Context, input usecase.AddMembersInput) (*domain.LedgerContext, error) {
			if input.ContextID != "ctx-1" || input.ActorID != "me" || len(input.Members) != 1 {
				t.Fatalf("unexpected input %+v", input)
			}
			return nil, domain.ErrNotGroupContext
		},
	})

	body, _ := json.Marshal(dto.AddMembersRequest{Members: []dto.MemberRequest{{UserID: "zed"}}})
	rec := httptest.NewRecorder()
	h.AddMembers(rec, asUser(httptest.NewRequest(http.MethodPost, "/contexts/ctx-1/members", bytes.NewReader(body)), "me", "id", "ctx-1"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
