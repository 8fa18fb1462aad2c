// Package repositorytest provides an in-memory repository.Store for tests.
package repositorytest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/repository"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

// Clock is a manually advanced time source shared by every write.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts the clock at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type state struct {
	seq        int64
	users      map[int64]domain.User
	chats      map[int64]domain.Chat
	topics     map[int64]domain.Topic
	responders map[[2]int64]struct{}
	tickets    map[int64]domain.Ticket
	messages   map[int64]domain.TicketMessage
}

func newState() *state {
	return &state{
		users:      map[int64]domain.User{},
		chats:      map[int64]domain.Chat{},
		topics:     map[int64]domain.Topic{},
		responders: map[[2]int64]struct{}{},
		tickets:    map[int64]domain.Ticket{},
		messages:   map[int64]domain.TicketMessage{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.chats {
		c.chats[k] = v
	}
	for k, v := range s.topics {
		c.topics[k] = v
	}
	for k := range s.responders {
		c.responders[k] = struct{}{}
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = v
	}
	return c
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store is an in-memory repository.Store. Transactions are serialized and
// rolled back by restoring a snapshot.
type Store struct {
	Clock *Clock

	mu   sync.Mutex
	txMu sync.Mutex
	data *state
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store whose clock starts at a fixed instant.
func New() *Store {
	return &Store{
		Clock: NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		data:  newState(),
	}
}

func (s *Store) Users() repository.UserRepository             { return userRepo{s} }
func (s *Store) Topics() repository.TopicRepository           { return topicRepo{s} }
func (s *Store) Chats() repository.ChatRepository             { return chatRepo{s} }
func (s *Store) Tickets() repository.TicketRepository         { return ticketRepo{s} }
func (s *Store) Messages() repository.TicketMessageRepository { return messageRepo{s} }

func (s *Store) Now(context.Context) (time.Time, error) {
	return s.Clock.Now(), nil
}

func (s *Store) WithinTx(_ context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(&txStore{Store: s}); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore runs nested WithinTx calls inline.
type txStore struct {
	*Store
}

func (t *txStore) WithinTx(_ context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

func (s *Store) with(fn func(d *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func later(current, now time.Time) time.Time {
	if now.After(current) {
		return now
	}
	return current
}

// Ticket returns a copy of the stored ticket for assertions.
func (s *Store) Ticket(id int64) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.tickets[id]
	return t, ok
}

// MessageCount returns the number of transcript entries of ticketID.
func (s *Store) MessageCount(ticketID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.data.messages {
		if m.TicketID == ticketID {
			n++
		}
	}
	return n
}

// SetTicketUpdatedAt rewinds a ticket's activity timestamp.
func (s *Store) SetTicketUpdatedAt(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.data.tickets[id]
	t.UpdatedAt = at
	s.data.tickets[id] = t
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	now := r.s.Clock.Now()
	return r.s.with(func(d *state) error {
		for _, u := range d.users {
			if user.PlatformID != nil && u.PlatformID != nil && *u.PlatformID == *user.PlatformID {
				return apperrors.NewConstraintViolation("users_platform_id_key", nil)
			}
			if user.Username != nil && u.Username != nil && strings.EqualFold(*u.Username, *user.Username) {
				return apperrors.NewConstraintViolation("users_username_lower_idx", nil)
			}
		}
		user.ID = d.nextID()
		user.CreatedAt, user.UpdatedAt = now, now
		d.users[user.ID] = *user
		return nil
	})
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.s.with(func(d *state) error {
		u, ok := d.users[id]
		if !ok {
			return apperrors.NewNotFound("user", nil)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r userRepo) find(match func(domain.User) bool) (*domain.User, error) {
	var out *domain.User
	err := r.s.with(func(d *state) error {
		for _, u := range d.users {
			if match(u) {
				u := u
				out = &u
				return nil
			}
		}
		return apperrors.NewNotFound("user", nil)
	})
	return out, err
}

func (r userRepo) GetByPlatformID(_ context.Context, platformID int64) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.PlatformID != nil && *u.PlatformID == platformID })
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username != nil && strings.EqualFold(*u.Username, username) })
}

func (r userRepo) update(id int64, fn func(d *state, u *domain.User) error) error {
	now := r.s.Clock.Now()
	return r.s.with(func(d *state) error {
		u, ok := d.users[id]
		if !ok {
			return apperrors.NewNotFound("user", nil)
		}
		if err := fn(d, &u); err != nil {
			return err
		}
		u.UpdatedAt = later(u.UpdatedAt, now)
		d.users[id] = u
		return nil
	})
}

func (r userRepo) LinkPlatformID(_ context.Context, id, platformID int64) error {
	return r.update(id, func(d *state, u *domain.User) error {
		if u.PlatformID != nil {
			return apperrors.NewNotFound("user", nil)
		}
		for _, other := range d.users {
			if other.PlatformID != nil && *other.PlatformID == platformID {
				return apperrors.NewConstraintViolation("users_platform_id_key", nil)
			}
		}
		u.PlatformID = &platformID
		return nil
	})
}

func (r userRepo) UpdateProfile(_ context.Context, id int64, username, firstName *string) error {
	return r.update(id, func(d *state, u *domain.User) error {
		if username != nil {
			for _, other := range d.users {
				if other.ID != id && other.Username != nil && strings.EqualFold(*other.Username, *username) {
					return apperrors.NewConstraintViolation("users_username_lower_idx", nil)
				}
			}
			u.Username = username
		}
		if firstName != nil {
			u.FirstName = firstName
		}
		return nil
	})
}

func (r userRepo) SetRole(_ context.Context, id int64, role domain.UserRole) error {
	return r.update(id, func(_ *state, u *domain.User) error {
		u.Role = role
		return nil
	})
}

func (r userRepo) SetDisplayName(_ context.Context, id int64, displayName *string) error {
	return r.update(id, func(_ *state, u *domain.User) error {
		u.DisplayName = displayName
		return nil
	})
}

func (r userRepo) List(_ context.Context, role *domain.UserRole) ([]domain.User, error) {
	var out []domain.User
	err := r.s.with(func(d *state) error {
		for _, u := range d.users {
			if role == nil || u.Role == *role {
				out = append(out, u)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

type chatRepo struct{ s *Store }

func (r chatRepo) Upsert(_ context.Context, platformChatID int64, title string) (*domain.Chat, error) {
	now := r.s.Clock.Now()
	var out domain.Chat
	err := r.s.with(func(d *state) error {
		for id, c := range d.chats {
			if c.PlatformChatID == platformChatID {
				c.Title, c.Active = title, true
				c.UpdatedAt = later(c.UpdatedAt, now)
				d.chats[id] = c
				out = c
				return nil
			}
		}
		out = domain.Chat{ID: d.nextID(), PlatformChatID: platformChatID, Title: title, Active: true, CreatedAt: now, UpdatedAt: now}
		d.chats[out.ID] = out
		return nil
	})
	return &out, err
}

func (r chatRepo) SetActive(_ context.Context, platformChatID int64, active bool) error {
	now := r.s.Clock.Now()
	return r.s.with(func(d *state) error {
		for id, c := range d.chats {
			if c.PlatformChatID == platformChatID {
				c.Active = active
				c.UpdatedAt = later(c.UpdatedAt, now)
				d.chats[id] = c
				return nil
			}
		}
		return apperrors.NewNotFound("chat", nil)
	})
}

func (r chatRepo) GetByID(_ context.Context, id int64) (*domain.Chat, error) {
	var out *domain.Chat
	err := r.s.with(func(d *state) error {
		c, ok := d.chats[id]
		if !ok {
			return apperrors.NewNotFound("chat", nil)
		}
		out = &c
		return nil
	})
	return out, err
}

func (r chatRepo) GetByPlatformID(_ context.Context, platformChatID int64) (*domain.Chat, error) {
	var out *domain.Chat
	err := r.s.with(func(d *state) error {
		for _, c := range d.chats {
			if c.PlatformChatID == platformChatID {
				c := c
				out = &c
				return nil
			}
		}
		return apperrors.NewNotFound("chat", nil)
	})
	return out, err
}

func (r chatRepo) List(context.Context) ([]domain.Chat, error) {
	var out []domain.Chat
	_ = r.s.with(func(d *state) error {
		for _, c := range d.chats {
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type topicRepo struct{ s *Store }

func (r topicRepo) Create(_ context.Context, topic *domain.Topic) error {
	now := r.s.Clock.Now()
	return r.s.with(func(d *state) error {
		for _, t := range d.topics {
			if t.Name == topic.Name {
				return apperrors.NewConstraintViolation("topics_name_key", nil)
			}
		}
		if topic.ChatID != nil {
			if _, ok := d.chats[*topic.ChatID]; !ok {
				return apperrors.NewConstraintViolation("topics_chat_id_fkey", nil)
			}
		}
		topic.ID = d.nextID()
		topic.CreatedAt = now
		d.topics[topic.ID] = *topic
		return nil
	})
}

func (r topicRepo) GetByID(_ context.Context, id int64) (*domain.Topic, error) {
	var out *domain.Topic
	err := r.s.with(func(d *state) error {
		t, ok := d.topics[id]
		if !ok {
			return apperrors.NewNotFound("topic", nil)
		}
		out = &t
		return nil
	})
	return out, err
}

func (r topicRepo) GetByName(_ context.Context, name string) (*domain.Topic, error) {
	var out *domain.Topic
	err := r.s.with(func(d *state) error {
		for _, t := range d.topics {
			if t.Name == name {
				t := t
				out = &t
				return nil
			}
		}
		return apperrors.NewNotFound("topic", nil)
	})
	return out, err
}

func (r topicRepo) Delete(_ context.Context, id int64) error {
	return r.s.with(func(d *state) error {
		if _, ok := d.topics[id]; !ok {
			return apperrors.NewNotFound("topic", nil)
		}
		delete(d.topics, id)
		for k := range d.responders {
			if k[0] == id {
				delete(d.responders, k)
			}
		}
		for tid, t := range d.tickets {
			if t.TopicID != nil && *t.TopicID == id {
				t.TopicID = nil
				d.tickets[tid] = t
			}
		}
		return nil
	})
}

func (r topicRepo) SetChat(_ context.Context, id int64, chatID *int64) error {
	return r.s.with(func(d *state) error {
		t, ok := d.topics[id]
		if !ok {
			return apperrors.NewNotFound("topic", nil)
		}
		if chatID != nil {
			if _, ok := d.chats[*chatID]; !ok {
				return apperrors.NewConstraintViolation("topics_chat_id_fkey", nil)
			}
		}
		t.ChatID = chatID
		d.topics[id] = t
		return nil
	})
}

func (r topicRepo) list(filter func(d *state, t domain.Topic) bool) []domain.Topic {
	var out []domain.Topic
	_ = r.s.with(func(d *state) error {
		for _, t := range d.topics {
			if filter(d, t) {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r topicRepo) List(context.Context) ([]domain.Topic, error) {
	return r.list(func(*state, domain.Topic) bool { return true }), nil
}

func (r topicRepo) ListAvailable(context.Context) ([]domain.Topic, error) {
	return r.list(func(d *state, t domain.Topic) bool {
		if t.ChatID == nil {
			return false
		}
		c, ok := d.chats[*t.ChatID]
		return ok && c.Active
	}), nil
}

func (r topicRepo) AddResponder(_ context.Context, topicID, userID int64) error {
	return r.s.with(func(d *state) error {
		if _, ok := d.topics[topicID]; !ok {
			return apperrors.NewConstraintViolation("topic_responders_topic_id_fkey", nil)
		}
		if _, ok := d.users[userID]; !ok {
			return apperrors.NewConstraintViolation("topic_responders_user_id_fkey", nil)
		}
		d.responders[[2]int64{topicID, userID}] = struct{}{}
		return nil
	})
}

func (r topicRepo) RemoveResponder(_ context.Context, topicID, userID int64) error {
	return r.s.with(func(d *state) error {
		delete(d.responders, [2]int64{topicID, userID})
		return nil
	})
}

func (r topicRepo) Responders(_ context.Context, topicID int64) ([]domain.User, error) {
	var out []domain.User
	_ = r.s.with(func(d *state) error {
		for k := range d.responders {
			if k[0] == topicID {
				out = append(out, d.users[k[1]])
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	now := r.s.Clock.Now()
	return r.s.with(func(d *state) error {
		if _, ok := d.users[ticket.RequesterID]; !ok {
			return apperrors.NewConstraintViolation("tickets_requester_id_fkey", nil)
		}
		if ticket.TopicID != nil {
			if _, ok := d.topics[*ticket.TopicID]; !ok {
				return apperrors.NewConstraintViolation("tickets_topic_id_fkey", nil)
			}
		}
		if ticket.ChatID != nil {
			if _, ok := d.chats[*ticket.ChatID]; !ok {
				return apperrors.NewConstraintViolation("tickets_chat_id_fkey", nil)
			}
		}
		ticket.ID = d.nextID()
		ticket.CreatedAt, ticket.UpdatedAt = now, now
		d.tickets[ticket.ID] = *ticket
		return nil
	})
}

func (r ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.s.with(func(d *state) error {
		t, ok := d.tickets[id]
		if !ok {
			return apperrors.NewNotFound("ticket", nil)
		}
		out = &t
		return nil
	})
	return out, err
}

func (r ticketRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r ticketRepo) find(match func(d *state, t domain.Ticket) bool) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.s.with(func(d *state) error {
		for _, t := range d.tickets {
			if match(d, t) && (out == nil || t.ID > out.ID) {
				t := t
				out = &t
			}
		}
		if out == nil {
			return apperrors.NewNotFound("ticket", nil)
		}
		return nil
	})
	return out, err
}

func inChat(d *state, t domain.Ticket, platformChatID int64) bool {
	if t.ChatID == nil {
		return false
	}
	c, ok := d.chats[*t.ChatID]
	return ok && c.PlatformChatID == platformChatID
}

func ownedBy(d *state, t domain.Ticket, requesterPlatformID int64) bool {
	u, ok := d.users[t.RequesterID]
	return ok && u.PlatformID != nil && *u.PlatformID == requesterPlatformID
}

func (r ticketRepo) FindByGroupMessage(_ context.Context, platformChatID, messageID int64) (*domain.Ticket, error) {
	return r.find(func(d *state, t domain.Ticket) bool {
		return t.GroupMessageID != nil && *t.GroupMessageID == messageID && inChat(d, t, platformChatID)
	})
}

func (r ticketRepo) FindByRequesterMessage(_ context.Context, requesterPlatformID, messageID int64) (*domain.Ticket, error) {
	return r.find(func(d *state, t domain.Ticket) bool {
		return t.RequesterMessageID != nil && *t.RequesterMessageID == messageID && ownedBy(d, t, requesterPlatformID)
	})
}

func (r ticketRepo) update(id int64, fn func(t *domain.Ticket)) (*domain.Ticket, error) {
	now := r.s.Clock.Now()
	var out domain.Ticket
	err := r.s.with(func(d *state) error {
		t, ok := d.tickets[id]
		if !ok {
			return apperrors.NewNotFound("ticket", nil)
		}
		fn(&t)
		t.UpdatedAt = later(t.UpdatedAt, now)
		d.tickets[id] = t
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r ticketRepo) SetGroupMessageID(_ context.Context, id, messageID int64) error {
	_, err := r.update(id, func(t *domain.Ticket) { t.GroupMessageID = &messageID })
	return err
}

func (r ticketRepo) SetRequesterMessageID(_ context.Context, id, messageID int64) error {
	_, err := r.update(id, func(t *domain.Ticket) { t.RequesterMessageID = &messageID })
	return err
}

func (r ticketRepo) Transition(_ context.Context, id int64, status domain.TicketStatus) (*domain.Ticket, error) {
	return r.update(id, func(t *domain.Ticket) { t.Status = status })
}

func (r ticketRepo) ListInactive(_ context.Context, threshold time.Duration) ([]domain.Ticket, error) {
	cutoff := r.s.Clock.Now().Add(-threshold)
	var out []domain.Ticket
	_ = r.s.with(func(d *state) error {
		for _, t := range d.tickets {
			if t.Status != domain.TicketStatusClosed && t.UpdatedAt.Before(cutoff) {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	_ = r.s.with(func(d *state) error {
		for _, t := range d.tickets {
			if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
				continue
			}
			if filter.ResponderUserID != nil {
				if t.TopicID == nil {
					continue
				}
				if _, ok := d.responders[[2]int64{*t.TopicID, *filter.ResponderUserID}]; !ok {
					continue
				}
			}
			if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsStatus(statuses []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (r ticketRepo) Stats(context.Context) (*domain.TicketStats, error) {
	var stats domain.TicketStats
	_ = r.s.with(func(d *state) error {
		for _, t := range d.tickets {
			stats.Total++
			switch t.Status {
			case domain.TicketStatusOpen:
				stats.Open++
			case domain.TicketStatusInProgress:
				stats.InProgress++
			case domain.TicketStatusClosed:
				stats.Closed++
			}
		}
		return nil
	})
	return &stats, nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	now := r.s.Clock.Now()
	return r.s.with(func(d *state) error {
		if _, ok := d.tickets[msg.TicketID]; !ok {
			return apperrors.NewConstraintViolation("ticket_messages_ticket_id_fkey", nil)
		}
		if msg.RequesterMessageID == nil && msg.GroupMessageID == nil {
			return apperrors.NewConstraintViolation("ticket_messages_check", nil)
		}
		msg.ID = d.nextID()
		msg.CreatedAt = now
		d.messages[msg.ID] = *msg
		return nil
	})
}

func (r messageRepo) find(match func(d *state, m domain.TicketMessage) bool) (*domain.TicketMessage, error) {
	var out *domain.TicketMessage
	err := r.s.with(func(d *state) error {
		for _, m := range d.messages {
			if match(d, m) && (out == nil || m.ID > out.ID) {
				m := m
				out = &m
			}
		}
		if out == nil {
			return apperrors.NewNotFound("ticket message", nil)
		}
		return nil
	})
	return out, err
}

func (r messageRepo) FindByGroupMessage(_ context.Context, platformChatID, messageID int64) (*domain.TicketMessage, error) {
	return r.find(func(d *state, m domain.TicketMessage) bool {
		return m.GroupMessageID != nil && *m.GroupMessageID == messageID && inChat(d, d.tickets[m.TicketID], platformChatID)
	})
}

func (r messageRepo) FindByRequesterMessage(_ context.Context, requesterPlatformID, messageID int64) (*domain.TicketMessage, error) {
	return r.find(func(d *state, m domain.TicketMessage) bool {
		return m.RequesterMessageID != nil && *m.RequesterMessageID == messageID && ownedBy(d, d.tickets[m.TicketID], requesterPlatformID)
	})
}

func (r messageRepo) update(id int64, fn func(m *domain.TicketMessage)) error {
	return r.s.with(func(d *state) error {
		m, ok := d.messages[id]
		if !ok {
			return apperrors.NewNotFound("ticket message", nil)
		}
		fn(&m)
		d.messages[id] = m
		return nil
	})
}

func (r messageRepo) SetOutboundID(_ context.Context, id int64, side domain.Side, messageID int64) error {
	return r.update(id, func(m *domain.TicketMessage) {
		m.SetMessageID(side, messageID)
		m.DeliveryError = nil
	})
}

func (r messageRepo) MarkDeliveryFailed(_ context.Context, id int64, reason string) error {
	return r.update(id, func(m *domain.TicketMessage) { m.DeliveryError = &reason })
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	var out []domain.TicketMessage
	_ = r.s.with(func(d *state) error {
		for _, m := range d.messages {
			if m.TicketID == ticketID {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
