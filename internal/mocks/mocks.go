// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/promptpilot/internal/api"
)

// -- API Client Mock --

// MockAPIClient mocks executor.APIClient.
type MockAPIClient struct {
	mock.Mock
}

func (m *MockAPIClient) Get(ctx context.Context, endpoint string) (*api.Response, error) {
	args := m.Called(ctx, endpoint)
	resp, _ := args.Get(0).(*api.Response)
	return resp, args.Error(1)
}

func (m *MockAPIClient) Post(ctx context.Context, endpoint string, data any) (*api.Response, error) {
	args := m.Called(ctx, endpoint, data)
	resp, _ := args.Get(0).(*api.Response)
	return resp, args.Error(1)
}

func (m *MockAPIClient) Delete(ctx context.Context, endpoint string) (*api.Response, error) {
	args := m.Called(ctx, endpoint)
	resp, _ := args.Get(0).(*api.Response)
	return resp, args.Error(1)
}

// -- UI Surface Mock --

// MockUI mocks executor.UISurface.
type MockUI struct {
	mock.Mock
}

func (m *MockUI) NavigateTo(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockUI) Fill(ctx context.Context, locator, value string) error {
	return m.Called(ctx, locator, value).Error(0)
}

func (m *MockUI) Click(ctx context.Context, locator string) error {
	return m.Called(ctx, locator).Error(0)
}

func (m *MockUI) ClickButton(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockUI) ClickLink(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockUI) IsValueInTable(ctx context.Context, tableLocator, value string) (bool, error) {
	args := m.Called(ctx, tableLocator, value)
	return args.Bool(0), args.Error(1)
}

func (m *MockUI) IsTextPresent(ctx context.Context, text string) bool {
	return m.Called(ctx, text).Bool(0)
}

func (m *MockUI) VerifyTextPresent(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}
