package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fittrack-be/internal/constant"
	"fittrack-be/internal/dto"
	"fittrack-be/internal/entity"
	"fittrack-be/internal/pkg/logger"
	"fittrack-be/internal/repository/specification"
	"fittrack-be/internal/repository/unitofwork"
	"fittrack-be/pkg/llm"

	"github.com/google/uuid"
)

type IChatService interface {
	CreateChat(ctx context.Context, userId uuid.UUID, req *dto.CreateChatRequest) (*dto.ChatResponse, error)
	ListChats(ctx context.Context, userId uuid.UUID) ([]*dto.ChatListItem, error)
	GetChatHistory(ctx context.Context, userId, chatId uuid.UUID) ([]*dto.MessageResponse, error)
	RenameChat(ctx context.Context, userId, chatId uuid.UUID, req *dto.RenameChatRequest) (*dto.ChatResponse, error)
	DeleteChat(ctx context.Context, userId, chatId uuid.UUID) error

	// SendTurn runs one full turn: persist the user message, call the model
	// with the chat's recent history, persist and return the reply.
	SendTurn(ctx context.Context, userId uuid.UUID, req *dto.SendTurnRequest) (*dto.SendTurnResponse, error)

	// SendTurnStream is SendTurn with the reply delivered incrementally.
	// The returned channel is closed after the terminal delta.
	SendTurnStream(ctx context.Context, userId uuid.UUID, req *dto.SendTurnRequest) (<-chan dto.TurnDelta, error)
}

// chatLocks serializes turns per chat so two in-flight turns cannot
// interleave their persisted rows or read half of each other's context.
type chatLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[uuid.UUID]*chatLock)}
}

func (c *chatLocks) acquire(chatId uuid.UUID) {
	c.mu.Lock()
	l, ok := c.locks[chatId]
	if !ok {
		l = &chatLock{}
		c.locks[chatId] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
}

func (c *chatLocks) release(chatId uuid.UUID) {
	c.mu.Lock()
	l := c.locks[chatId]
	l.refs--
	if l.refs == 0 {
		delete(c.locks, chatId)
	}
	c.mu.Unlock()

	l.mu.Unlock()
}

type chatService struct {
	uowFactory unitofwork.RepositoryFactory
	provider   llm.LLMProvider
	log        logger.ILogger
	turnLocks  *chatLocks
}

func NewChatService(uowFactory unitofwork.RepositoryFactory, provider llm.LLMProvider, log logger.ILogger) IChatService {
	return &chatService{
		uowFactory: uowFactory,
		provider:   provider,
		log:        log,
		turnLocks:  newChatLocks(),
	}
}

func normalizeChatName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return constant.DefaultChatName, nil
	}
	if len([]rune(name)) > constant.ChatNameMaxLength {
		return "", fmt.Errorf("%w: chat name must be at most %d characters", ErrInvalidInput, constant.ChatNameMaxLength)
	}
	return name, nil
}

func chatToResponse(chat *entity.Chat) *dto.ChatResponse {
	return &dto.ChatResponse{
		Id:        chat.Id,
		Name:      chat.Name,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}
}

func messageToResponse(msg *entity.Message) *dto.MessageResponse {
	return &dto.MessageResponse{
		Id:        msg.Id,
		ChatId:    msg.ChatId,
		Content:   msg.Content,
		IsUser:    msg.IsUser,
		CreatedAt: msg.CreatedAt,
	}
}

func (s *chatService) CreateChat(ctx context.Context, userId uuid.UUID, req *dto.CreateChatRequest) (*dto.ChatResponse, error) {
	name, err := normalizeChatName(req.Name)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	now := time.Now()
	chat := &entity.Chat{
		Id:        uuid.New(),
		UserId:    userId,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uow.ChatRepository().Create(ctx, chat); err != nil {
		return nil, err
	}

	return chatToResponse(chat), nil
}

func (s *chatService) ListChats(ctx context.Context, userId uuid.UUID) ([]*dto.ChatListItem, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	chats, err := uow.ChatRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	chatIds := make([]uuid.UUID, len(chats))
	for i, chat := range chats {
		chatIds[i] = chat.Id
	}

	previews, err := uow.MessageRepository().FindLatestPerChat(ctx, chatIds)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.ChatListItem, len(chats))
	for i, chat := range chats {
		item := &dto.ChatListItem{
			Id:        chat.Id,
			Name:      chat.Name,
			CreatedAt: chat.CreatedAt,
			UpdatedAt: chat.UpdatedAt,
		}
		if preview, ok := previews[chat.Id]; ok {
			item.LastMessage = messageToResponse(preview)
		}
		items[i] = item
	}

	return items, nil
}

// findOwnedChat answers ErrNotFound whether the chat is missing or owned by
// someone else.
func (s *chatService) findOwnedChat(ctx context.Context, uow unitofwork.UnitOfWork, userId, chatId uuid.UUID) (*entity.Chat, error) {
	chat, err := uow.ChatRepository().FindOne(ctx,
		specification.ByID{ID: chatId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, fmt.Errorf("%w: chat not found", ErrNotFound)
	}
	return chat, nil
}

func (s *chatService) GetChatHistory(ctx context.Context, userId, chatId uuid.UUID) ([]*dto.MessageResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.findOwnedChat(ctx, uow, userId, chatId); err != nil {
		return nil, err
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByChatID{ChatID: chatId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.MessageResponse, len(messages))
	for i, msg := range messages {
		responses[i] = messageToResponse(msg)
	}
	return responses, nil
}

func (s *chatService) RenameChat(ctx context.Context, userId, chatId uuid.UUID, req *dto.RenameChatRequest) (*dto.ChatResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: chat name is required", ErrInvalidInput)
	}
	if len([]rune(name)) > constant.ChatNameMaxLength {
		return nil, fmt.Errorf("%w: chat name must be at most %d characters", ErrInvalidInput, constant.ChatNameMaxLength)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	chat, err := s.findOwnedChat(ctx, uow, userId, chatId)
	if err != nil {
		return nil, err
	}

	chat.Name = name
	chat.UpdatedAt = time.Now()
	if err := uow.ChatRepository().Update(ctx, chat); err != nil {
		return nil, err
	}

	return chatToResponse(chat), nil
}

func (s *chatService) DeleteChat(ctx context.Context, userId, chatId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.findOwnedChat(ctx, uow, userId, chatId); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.MessageRepository().DeleteByChatId(ctx, chatId); err != nil {
		return err
	}
	if err := uow.ChatRepository().Delete(ctx, chatId); err != nil {
		return err
	}

	return uow.Commit()
}

// resolveChat finds the owned chat of a turn, creating a fresh one when the
// request carries no chat id.
func (s *chatService) resolveChat(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, req *dto.SendTurnRequest) (*entity.Chat, error) {
	if req.ChatId != nil {
		return s.findOwnedChat(ctx, uow, userId, *req.ChatId)
	}

	now := time.Now()
	chat := &entity.Chat{
		Id:        uuid.New(),
		UserId:    userId,
		Name:      constant.DefaultChatName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uow.ChatRepository().Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// persistUserMessage writes the incoming message before the model is called,
// so a model failure never loses what the user said.
func (s *chatService) persistUserMessage(ctx context.Context, uow unitofwork.UnitOfWork, chat *entity.Chat, content string) (*entity.Message, error) {
	msg := &entity.Message{
		Id:        uuid.New(),
		ChatId:    chat.Id,
		Content:   content,
		IsUser:    true,
		CreatedAt: time.Now(),
	}
	if err := uow.MessageRepository().Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := uow.ChatRepository().Touch(ctx, chat.Id, msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}

// buildWindow reads the chat's most recent persisted messages, oldest first.
// The just-persisted user message is part of the window.
func (s *chatService) buildWindow(ctx context.Context, uow unitofwork.UnitOfWork, chatId uuid.UUID) ([]llm.Message, error) {
	recent, err := uow.MessageRepository().FindAll(ctx,
		specification.ByChatID{ChatID: chatId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{N: constant.ContextWindowSize},
	)
	if err != nil {
		return nil, err
	}

	window := make([]llm.Message, len(recent))
	for i, msg := range recent {
		role := llm.RoleAssistant
		if msg.IsUser {
			role = llm.RoleUser
		}
		// Reverse to chronological order.
		window[len(recent)-1-i] = llm.Message{
			Role:    role,
			Content: msg.Content,
		}
	}
	return window, nil
}

// persistReply writes the assistant message regardless of whether the caller
// is still connected.
func (s *chatService) persistReply(ctx context.Context, chatId uuid.UUID, content string) (*entity.Message, error) {
	detached := context.WithoutCancel(ctx)
	uow := s.uowFactory.NewUnitOfWork(detached)

	msg := &entity.Message{
		Id:        uuid.New(),
		ChatId:    chatId,
		Content:   content,
		IsUser:    false,
		CreatedAt: time.Now(),
	}

	if err := uow.Begin(detached); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.MessageRepository().Create(detached, msg); err != nil {
		return nil, err
	}
	if err := uow.ChatRepository().Touch(detached, chatId, msg.CreatedAt); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *chatService) SendTurn(ctx context.Context, userId uuid.UUID, req *dto.SendTurnRequest) (*dto.SendTurnResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	chat, err := s.resolveChat(ctx, uow, userId, req)
	if err != nil {
		return nil, err
	}

	s.turnLocks.acquire(chat.Id)
	defer s.turnLocks.release(chat.Id)

	sent, err := s.persistUserMessage(ctx, uow, chat, content)
	if err != nil {
		return nil, err
	}

	window, err := s.buildWindow(ctx, uow, chat.Id)
	if err != nil {
		return nil, err
	}

	replyText, err := s.provider.Chat(ctx, window,
		llm.WithSystemInstruction(constant.SystemInstruction),
	)
	if err != nil {
		s.log.Error("chat", "model call failed", map[string]interface{}{
			"chat_id": chat.Id.String(),
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	reply, err := s.persistReply(ctx, chat.Id, replyText)
	if err != nil {
		return nil, err
	}

	return &dto.SendTurnResponse{
		ChatId:       chat.Id,
		ChatName:     chat.Name,
		Sent:         messageToResponse(sent),
		Reply:        messageToResponse(reply),
		FinishReason: "stop",
	}, nil
}

func (s *chatService) SendTurnStream(ctx context.Context, userId uuid.UUID, req *dto.SendTurnRequest) (<-chan dto.TurnDelta, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	chat, err := s.resolveChat(ctx, uow, userId, req)
	if err != nil {
		return nil, err
	}

	s.turnLocks.acquire(chat.Id)

	if _, err := s.persistUserMessage(ctx, uow, chat, content); err != nil {
		s.turnLocks.release(chat.Id)
		return nil, err
	}

	window, err := s.buildWindow(ctx, uow, chat.Id)
	if err != nil {
		s.turnLocks.release(chat.Id)
		return nil, err
	}

	upstream, err := s.provider.ChatStream(ctx, window,
		llm.WithSystemInstruction(constant.SystemInstruction),
	)
	if err != nil {
		s.turnLocks.release(chat.Id)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	deltas := make(chan dto.TurnDelta)
	go func() {
		defer close(deltas)
		defer s.turnLocks.release(chat.Id)

		var full strings.Builder
		finishReason := "stop"

		for chunk := range upstream {
			if chunk.Err != nil {
				s.log.Error("chat", "model stream failed", map[string]interface{}{
					"chat_id": chat.Id.String(),
					"error":   chunk.Err.Error(),
				})
				deltas <- dto.TurnDelta{Error: "upstream model unavailable"}
				return
			}
			if chunk.Text != "" {
				full.WriteString(chunk.Text)
				deltas <- dto.TurnDelta{Text: chunk.Text, ChatId: &chat.Id}
			}
			if chunk.Done {
				if chunk.FinishReason != "" {
					finishReason = chunk.FinishReason
				}
				break
			}
		}

		if full.Len() == 0 {
			deltas <- dto.TurnDelta{Error: "upstream model returned an empty reply"}
			return
		}

		reply, err := s.persistReply(ctx, chat.Id, full.String())
		if err != nil {
			s.log.Error("chat", "failed to persist streamed reply", map[string]interface{}{
				"chat_id": chat.Id.String(),
				"error":   err.Error(),
			})
			deltas <- dto.TurnDelta{Error: "failed to persist reply"}
			return
		}

		deltas <- dto.TurnDelta{
			Done:         true,
			ChatId:       &chat.Id,
			MessageId:    &reply.Id,
			FinishReason: finishReason,
		}
	}()

	return deltas, nil
}
