package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/domain"
)

// Me returns the session the server sees for this client.
func (c *Client) Me(ctx context.Context) (*dto.SessionResponse, error) {
	var out dto.SessionResponse
	if _, err := c.do(ctx, http.MethodGet, apiPrefix+"/me", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchContexts lists the caller's friend and group contexts.
func (c *Client) FetchContexts(ctx context.Context) (*dto.ListContextsResponse, error) {
	var out dto.ListContextsResponse
	if _, err := c.do(ctx, http.MethodGet, apiPrefix+"/contexts", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchContext returns one context with its roster.
func (c *Client) FetchContext(ctx context.Context, contextID string) (*dto.ContextResponse, error) {
	var out dto.ContextResponse
	if _, err := c.do(ctx, http.MethodGet, contextPath(contextID), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFriend links the caller with another user.
func (c *Client) CreateFriend(ctx context.Context, req dto.CreateFriendRequest) (*dto.ContextResponse, error) {
	var out dto.ContextResponse
	if _, err := c.do(ctx, http.MethodPost, apiPrefix+"/contexts/friends", req, c.newKey(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGroup creates a group owned by the caller.
func (c *Client) CreateGroup(ctx context.Context, req dto.CreateGroupRequest) (*dto.ContextResponse, error) {
	var out dto.ContextResponse
	if _, err := c.do(ctx, http.MethodPost, apiPrefix+"/contexts/groups", req, c.newKey(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchRoster returns a context's members in roster order.
func (c *Client) FetchRoster(ctx context.Context, contextID string) ([]dto.MemberResponse, error) {
	var out []dto.MemberResponse
	if _, err := c.do(ctx, http.MethodGet, contextPath(contextID, "roster"), nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchEntries lists a context's entries, optionally from since onwards.
// Entries of another context type are rejected.
func (c *Client) FetchEntries(ctx context.Context, contextType domain.ContextType, contextID string, since *domain.Date) (*dto.ListEntriesResponse, error) {
	path := contextPath(contextID, "entries")
	if since != nil {
		path += "?" + url.Values{"since": {since.String()}}.Encode()
	}

	var out dto.ListEntriesResponse
	if _, err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}

	for _, e := range out.Entries {
		if domain.ContextType(e.ContextType) != contextType {
			return nil, fmt.Errorf("%w: %w: entry %s belongs to a %s context", domain.ErrTransport, domain.ErrContextTypeMismatch, e.ID, e.ContextType)
		}
	}
	return &out, nil
}

// PostEntry appends a draft to a context. One idempotency key is used for
// every retry of the call, so a retried post never appends twice.
func (c *Client) PostEntry(ctx context.Context, contextType domain.ContextType, contextID string, draft dto.AppendEntryRequest) (*dto.EntryResponse, error) {
	var out dto.EntryResponse
	if _, err := c.do(ctx, http.MethodPost, contextPath(contextID, "entries"), draft, c.newKey(), &out); err != nil {
		return nil, err
	}
	if domain.ContextType(out.ContextType) != contextType {
		return nil, fmt.Errorf("%w: %w: posted to a %s context", domain.ErrTransport, domain.ErrContextTypeMismatch, out.ContextType)
	}
	return &out, nil
}

// FetchBalance returns the caller's net in a context.
func (c *Client) FetchBalance(ctx context.Context, contextID string) (*dto.BalanceResponse, error) {
	var out dto.BalanceResponse
	if _, err := c.do(ctx, http.MethodGet, contextPath(contextID, "balance"), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchBreakdown returns per-member totals of a context.
func (c *Client) FetchBreakdown(ctx context.Context, contextID string) (*dto.BreakdownResponse, error) {
	var out dto.BreakdownResponse
	if _, err := c.do(ctx, http.MethodGet, contextPath(contextID, "breakdown"), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchDashboard returns the caller's totals across all contexts.
func (c *Client) FetchDashboard(ctx context.Context) (*dto.DashboardResponse, error) {
	var out dto.DashboardResponse
	if _, err := c.do(ctx, http.MethodGet, apiPrefix+"/dashboard", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckConsistency runs the ledger audit of a context. An inconsistent
// ledger is reported, not returned as an error.
func (c *Client) CheckConsistency(ctx context.Context, contextID string) (*dto.ConsistencyResponse, error) {
	var out dto.ConsistencyResponse
	if _, err := c.do(ctx, http.MethodGet, contextPath(contextID, "consistency"), nil, "", &out, http.StatusConflict); err != nil {
		return nil, err
	}
	return &out, nil
}
