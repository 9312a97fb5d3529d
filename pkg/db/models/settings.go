package models

import "time"

// SingletonID is the fixed primary key of every singleton settings row.
const SingletonID = 1

type CampaignSettings struct {
	ID        int       `gorm:"column:id;primaryKey" json:"-"`
	GoalCents int64     `gorm:"column:goal_cents;not null" json:"goal_cents"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CampaignSettings) TableName() string { return "campaign_settings" }

type StoryContent struct {
	ID          int       `gorm:"column:id;primaryKey" json:"-"`
	Content     string    `gorm:"column:content;not null" json:"content"`
	CouplePhoto *string   `gorm:"column:couple_photo" json:"couple_photo,omitempty"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (StoryContent) TableName() string { return "story_content" }

type ThankYouTemplate struct {
	ID        int       `gorm:"column:id;primaryKey" json:"-"`
	Subject   string    `gorm:"column:subject;not null" json:"subject"`
	Body      string    `gorm:"column:body;not null" json:"body"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ThankYouTemplate) TableName() string { return "thankyou_template" }

// MercadoPagoSettings holds gateway credentials managed from the admin
// portal. Secrets are never serialized.
type MercadoPagoSettings struct {
	ID            int       `gorm:"column:id;primaryKey" json:"-"`
	AccessToken   *string   `gorm:"column:access_token" json:"-"`
	PublicKey     *string   `gorm:"column:public_key" json:"public_key,omitempty"`
	WebhookSecret *string   `gorm:"column:webhook_secret" json:"-"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (MercadoPagoSettings) TableName() string { return "mercadopago_settings" }
