package service

import (
	"kwik.app/dispatch/internal/queue"
	"kwik.app/dispatch/internal/store"
)

type Services struct {
	calls         CallService
	conversations ConversationService
}

func NewServices(calls store.CallStore, builder CallBuilder, producer queue.Producer) *Services {
	return &Services{
		calls:         NewCallService(calls, builder),
		conversations: NewConversationService(producer),
	}
}

func (s *Services) Calls() CallService {
	return s.calls
}

func (s *Services) Conversations() ConversationService {
	return s.conversations
}
