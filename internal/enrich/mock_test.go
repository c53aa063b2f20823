package enrich

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/philippeb99/researcher-sub001/pkg/anthropic"
	"github.com/philippeb99/researcher-sub001/pkg/jina"
	"github.com/philippeb99/researcher-sub001/pkg/pdl"
	"github.com/philippeb99/researcher-sub001/pkg/proxycurl"
	"github.com/philippeb99/researcher-sub001/pkg/serper"
)

// --- Serper Mock ---

type mockSerperClient struct {
	mock.Mock
}

func (m *mockSerperClient) Search(ctx context.Context, query string, opts ...serper.SearchOption) (*serper.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*serper.SearchResponse), args.Error(1)
}

func (m *mockSerperClient) News(ctx context.Context, query string, opts ...serper.SearchOption) (*serper.NewsResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*serper.NewsResponse), args.Error(1)
}

// --- PDL Mock ---

type mockPDLClient struct {
	mock.Mock
}

func (m *mockPDLClient) EnrichCompany(ctx context.Context, name, website string) (*pdl.Company, error) {
	args := m.Called(ctx, name, website)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pdl.Company), args.Error(1)
}

// --- Proxycurl Mock ---

type mockProxycurlClient struct {
	mock.Mock
	configured bool
}

func (m *mockProxycurlClient) Configured() bool {
	return m.configured
}

func (m *mockProxycurlClient) LookupPerson(ctx context.Context, firstName, lastName, companyDomain string) (*proxycurl.Person, error) {
	args := m.Called(ctx, firstName, lastName, companyDomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*proxycurl.Person), args.Error(1)
}

// --- Jina Mock ---

type mockJinaClient struct {
	mock.Mock
}

func (m *mockJinaClient) Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.ReadResponse), args.Error(1)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}
