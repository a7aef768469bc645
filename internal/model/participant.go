package model

import (
	"fmt"
	"slices"
	"time"
)

type Role string

const (
	RoleRequester        Role = "requester"         // Студент
	RoleProviderTeaching Role = "provider_teaching" // Преподаватель, принимает только по своим предметам
	RoleProviderAdvising Role = "provider_advising" // Консультант, принимает по любой теме
)

// ParseRole разбирает строковое значение роли
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleProviderTeaching, RoleProviderAdvising:
		return true
	}
	return false
}

// IsProvider сообщает, ведёт ли участник консультации
func (r Role) IsProvider() bool {
	switch r {
	case RoleProviderTeaching, RoleProviderAdvising:
		return true
	case RoleRequester:
		return false
	}
	return false
}

type Participant struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	Topics         []string  `json:"topics"`
	TelegramChatID int64     `json:"telegram_chat_id"` // 0 - доставка в Telegram отключена
	CreatedAt      time.Time `json:"created_at"`
}

// HasTopic проверяет, записан ли участник на предмет (или ведёт его)
func (p *Participant) HasTopic(topic string) bool {
	return slices.Contains(p.Topics, topic)
}

// AddTopic добавляет предмет, если его ещё нет. Возвращает true, если набор изменился
func (p *Participant) AddTopic(topic string) bool {
	if p.HasTopic(topic) {
		return false
	}
	p.Topics = append(p.Topics, topic)
	return true
}

// Clone возвращает независимую копию участника
func (p *Participant) Clone() *Participant {
	c := *p
	c.Topics = slices.Clone(p.Topics)
	return &c
}
