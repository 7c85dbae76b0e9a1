package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"fittrack-be/internal/constant"
	"fittrack-be/internal/dto"
	"fittrack-be/internal/entity"
	"fittrack-be/internal/repository/specification"
	"fittrack-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatHarness struct {
	factory  *fakeFactory
	provider *fakeProvider
	service  IChatService
	userId   uuid.UUID
}

func newChatHarness(t *testing.T) *chatHarness {
	t.Helper()
	factory := newFakeFactory()
	provider := &fakeProvider{reply: "model says hi"}
	svc := NewChatService(factory, provider, nopLogger{})
	return &chatHarness{
		factory:  factory,
		provider: provider,
		service:  svc,
		userId:   uuid.New(),
	}
}

// seedMessages inserts alternating user/assistant rows with strictly
// increasing timestamps.
func (h *chatHarness) seedMessages(t *testing.T, chatId uuid.UUID, n int) {
	t.Helper()
	ctx := context.Background()
	uow := h.factory.NewUnitOfWork(ctx)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		require.NoError(t, uow.MessageRepository().Create(ctx, &entity.Message{
			Id:        uuid.New(),
			ChatId:    chatId,
			Content:   fmt.Sprintf("message %d", i+1),
			IsUser:    i%2 == 0,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
}

func (h *chatHarness) createChat(t *testing.T, name string) uuid.UUID {
	t.Helper()
	resp, err := h.service.CreateChat(context.Background(), h.userId, &dto.CreateChatRequest{Name: name})
	require.NoError(t, err)
	return resp.Id
}

func TestCreateChatDefaultName(t *testing.T) {
	h := newChatHarness(t)

	resp, err := h.service.CreateChat(context.Background(), h.userId, &dto.CreateChatRequest{Name: "   "})
	require.NoError(t, err)
	assert.Equal(t, constant.DefaultChatName, resp.Name)

	resp, err = h.service.CreateChat(context.Background(), h.userId, &dto.CreateChatRequest{Name: "Treino de pernas"})
	require.NoError(t, err)
	assert.Equal(t, "Treino de pernas", resp.Name)
}

func TestCreateChatNameTooLong(t *testing.T) {
	h := newChatHarness(t)

	_, err := h.service.CreateChat(context.Background(), h.userId, &dto.CreateChatRequest{
		Name: strings.Repeat("a", constant.ChatNameMaxLength+1),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChatAccessIsOwnerScoped(t *testing.T) {
	h := newChatHarness(t)
	chatId := h.createChat(t, "mine")
	intruder := uuid.New()
	ctx := context.Background()

	// A foreign chat and a missing chat answer the same way.
	_, err := h.service.GetChatHistory(ctx, intruder, chatId)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.service.RenameChat(ctx, intruder, chatId, &dto.RenameChatRequest{Name: "stolen"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = h.service.DeleteChat(ctx, intruder, chatId)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.service.GetChatHistory(ctx, h.userId, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendTurnCreatesChatWhenMissing(t *testing.T) {
	h := newChatHarness(t)
	ctx := context.Background()

	resp, err := h.service.SendTurn(ctx, h.userId, &dto.SendTurnRequest{Content: "olá"})
	require.NoError(t, err)
	assert.Equal(t, constant.DefaultChatName, resp.ChatName)
	assert.Equal(t, "olá", resp.Sent.Content)
	assert.Equal(t, "model says hi", resp.Reply.Content)
	assert.True(t, resp.Sent.IsUser)
	assert.False(t, resp.Reply.IsUser)

	history, err := h.service.GetChatHistory(ctx, h.userId, resp.ChatId)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "olá", history[0].Content)
	assert.Equal(t, "model says hi", history[1].Content)
}

func TestSendTurnWindowIncludesNewMessage(t *testing.T) {
	h := newChatHarness(t)
	chatId := h.createChat(t, "window")
	h.seedMessages(t, chatId, 6)

	_, err := h.service.SendTurn(context.Background(), h.userId, &dto.SendTurnRequest{
		ChatId:  &chatId,
		Content: "latest question",
	})
	require.NoError(t, err)

	window := h.provider.lastWindow()
	require.Len(t, window, 7)
	// Chronological, ending with the message that triggered the turn.
	assert.Equal(t, "message 1", window[0].Content)
	assert.Equal(t, llm.RoleUser, window[0].Role)
	assert.Equal(t, "message 2", window[1].Content)
	assert.Equal(t, llm.RoleAssistant, window[1].Role)
	assert.Equal(t, "latest question", window[6].Content)
	assert.Equal(t, llm.RoleUser, window[6].Role)
}

func TestSendTurnWindowIsCapped(t *testing.T) {
	h := newChatHarness(t)
	chatId := h.createChat(t, "long history")
	h.seedMessages(t, chatId, 20)

	_, err := h.service.SendTurn(context.Background(), h.userId, &dto.SendTurnRequest{
		ChatId:  &chatId,
		Content: "latest question",
	})
	require.NoError(t, err)

	window := h.provider.lastWindow()
	require.Len(t, window, constant.ContextWindowSize)
	// Oldest rows fall out of the window.
	assert.Equal(t, "message 12", window[0].Content)
	assert.Equal(t, "latest question", window[len(window)-1].Content)
}

func TestSendTurnPersistsUserMessageBeforeModelFailure(t *testing.T) {
	h := newChatHarness(t)
	h.provider.err = errors.New("model is down")
	chatId := h.createChat(t, "failing")
	ctx := context.Background()

	_, err := h.service.SendTurn(ctx, h.userId, &dto.SendTurnRequest{
		ChatId:  &chatId,
		Content: "please answer",
	})
	require.ErrorIs(t, err, ErrUpstream)

	// The user's message survived the failed turn; no reply row exists.
	history, err := h.service.GetChatHistory(ctx, h.userId, chatId)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "please answer", history[0].Content)
	assert.True(t, history[0].IsUser)
}

func TestSendTurnUnknownChatPersistsNothing(t *testing.T) {
	h := newChatHarness(t)
	ctx := context.Background()
	missing := uuid.New()

	_, err := h.service.SendTurn(ctx, h.userId, &dto.SendTurnRequest{
		ChatId:  &missing,
		Content: "hello?",
	})
	require.ErrorIs(t, err, ErrNotFound)

	uow := h.factory.NewUnitOfWork(ctx)
	count, err := uow.MessageRepository().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, h.provider.calls)
}

func TestRenameChatRejectsEmptyName(t *testing.T) {
	h := newChatHarness(t)
	chatId := h.createChat(t, "named")

	_, err := h.service.RenameChat(context.Background(), h.userId, chatId, &dto.RenameChatRequest{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSendTurnEmptyContent(t *testing.T) {
	h := newChatHarness(t)

	_, err := h.service.SendTurn(context.Background(), h.userId, &dto.SendTurnRequest{Content: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	h := newChatHarness(t)
	h.provider.delay = 20 * time.Millisecond
	chatId := h.createChat(t, "busy")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := h.service.SendTurn(ctx, h.userId, &dto.SendTurnRequest{
				ChatId:  &chatId,
				Content: fmt.Sprintf("question %d", n),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Turns never interleave: the history is strict user/assistant pairs.
	history, err := h.service.GetChatHistory(ctx, h.userId, chatId)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, msg := range history {
		assert.Equal(t, i%2 == 0, msg.IsUser, "position %d", i)
	}

	// Each window the model saw was internally complete.
	h.provider.mu.Lock()
	defer h.provider.mu.Unlock()
	require.Len(t, h.provider.windows, 2)
	assert.Len(t, h.provider.windows[0], 1)
	assert.Len(t, h.provider.windows[1], 3)
}

func TestSendTurnStream(t *testing.T) {
	h := newChatHarness(t)
	chatId := h.createChat(t, "stream")
	ctx := context.Background()

	deltas, err := h.service.SendTurnStream(ctx, h.userId, &dto.SendTurnRequest{
		ChatId:  &chatId,
		Content: "stream it",
	})
	require.NoError(t, err)

	var text strings.Builder
	var terminal *dto.TurnDelta
	for delta := range deltas {
		require.Empty(t, delta.Error)
		text.WriteString(delta.Text)
		if delta.Done {
			d := delta
			terminal = &d
		}
	}

	require.NotNil(t, terminal, "stream ended without a terminal delta")
	assert.Equal(t, "model says hi", text.String())
	assert.Equal(t, "stop", terminal.FinishReason)
	require.NotNil(t, terminal.MessageId)

	history, err := h.service.GetChatHistory(ctx, h.userId, chatId)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "model says hi", history[1].Content)
	assert.Equal(t, *terminal.MessageId, history[1].Id)
}

func TestSendTurnStreamPersistsAfterCancel(t *testing.T) {
	h := newChatHarness(t)
	chatId := h.createChat(t, "gone client")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deltas, err := h.service.SendTurnStream(ctx, h.userId, &dto.SendTurnRequest{
		ChatId:  &chatId,
		Content: "stream it",
	})
	require.NoError(t, err)

	// The client goes away after the first chunk; the consumer side keeps
	// draining, as the HTTP layer does.
	first := true
	sawDone := false
	for delta := range deltas {
		if first {
			cancel()
			first = false
		}
		if delta.Done {
			sawDone = true
		}
	}
	require.True(t, sawDone)

	history, err := h.service.GetChatHistory(context.Background(), h.userId, chatId)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "model says hi", history[1].Content)
}

func TestSendTurnStreamUpstreamFailure(t *testing.T) {
	h := newChatHarness(t)
	h.provider.err = errors.New("model is down")
	chatId := h.createChat(t, "failing stream")

	_, err := h.service.SendTurnStream(context.Background(), h.userId, &dto.SendTurnRequest{
		ChatId:  &chatId,
		Content: "please answer",
	})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestListChatsOrderAndPreview(t *testing.T) {
	h := newChatHarness(t)
	ctx := context.Background()
	older := h.createChat(t, "older")
	newer := h.createChat(t, "newer")

	// Activity on the older chat moves it to the top.
	uow := h.factory.NewUnitOfWork(ctx)
	now := time.Now()
	require.NoError(t, uow.MessageRepository().Create(ctx, &entity.Message{
		Id: uuid.New(), ChatId: older, Content: "bump", IsUser: true, CreatedAt: now,
	}))
	require.NoError(t, uow.ChatRepository().Touch(ctx, older, now))
	require.NoError(t, uow.ChatRepository().Touch(ctx, newer, now.Add(-time.Minute)))

	items, err := h.service.ListChats(ctx, h.userId)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, older, items[0].Id)
	require.NotNil(t, items[0].LastMessage)
	assert.Equal(t, "bump", items[0].LastMessage.Content)
	assert.Nil(t, items[1].LastMessage)
}

func TestDeleteChatRemovesMessages(t *testing.T) {
	h := newChatHarness(t)
	chatId := h.createChat(t, "doomed")
	h.seedMessages(t, chatId, 4)
	ctx := context.Background()

	require.NoError(t, h.service.DeleteChat(ctx, h.userId, chatId))

	_, err := h.service.GetChatHistory(ctx, h.userId, chatId)
	assert.ErrorIs(t, err, ErrNotFound)

	uow := h.factory.NewUnitOfWork(ctx)
	count, err := uow.MessageRepository().Count(ctx, specification.ByChatID{ChatID: chatId})
	require.NoError(t, err)
	assert.Zero(t, count)
}
