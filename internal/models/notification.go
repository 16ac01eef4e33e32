package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationApplication NotificationType = "application"
	NotificationJobMatch    NotificationType = "job_match"
	NotificationMessage     NotificationType = "message"
	NotificationSystem      NotificationType = "system"
)

// Notification is a message addressed to a single user.
type Notification struct {
	ID        string           `json:"id" gorm:"column:id;primaryKey;size:36"`
	UserID    string           `json:"user_id" gorm:"column:user_id;size:36;not null;index"`
	Type      NotificationType `json:"type" gorm:"column:type;size:16;not null"`
	Title     string           `json:"title" gorm:"column:title;size:200;not null"`
	Message   string           `json:"message" gorm:"column:message;not null"`
	IsRead    bool             `json:"is_read" gorm:"column:is_read;not null;index"`
	CreatedAt time.Time        `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	assignID(&n.ID)
	if n.Type == "" {
		n.Type = NotificationSystem
	}
	return nil
}

// NotificationInsert addresses a new notification to UserID.
type NotificationInsert struct {
	UserID  string           `json:"user_id"`
	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
}
