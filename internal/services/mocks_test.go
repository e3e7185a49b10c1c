package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ruralpay/energyledger/internal/models"
)

type MockTradePublisher struct {
	mock.Mock
}

func (m *MockTradePublisher) PublishTrade(ctx context.Context, t *models.Trade) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}
