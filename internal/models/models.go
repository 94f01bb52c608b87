// Package models declares the dashboard entities shared by the remote store and the local cache.
//
// Every entity carries gorm tags for the relational backend and snake_case JSON tags for the
// cache blobs, so a record read from either store has the same shape.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Record is implemented by pointers to entities that can be spliced into a cached collection by id.
type Record[T any] interface {
	*T
	GetID() string
	SetID(id string)
}

// Stamper is implemented by entities that track created/updated timestamps.
type Stamper interface {
	Stamp(now time.Time, created bool)
}

type FileType string

const (
	FileTypeClient FileType = "client"
	FileTypeServer FileType = "server"
	FileTypePatch  FileType = "patch"
	FileTypeTool   FileType = "tool"
	FileTypeOther  FileType = "other"
)

type FileStatus string

const (
	FileStatusActive     FileStatus = "active"
	FileStatusBeta       FileStatus = "beta"
	FileStatusDeprecated FileStatus = "deprecated"
)

// PublishStatus is shared by patch notes and documentation.
type PublishStatus string

const (
	StatusDraft     PublishStatus = "draft"
	StatusPublished PublishStatus = "published"
)

type BugSeverity string

const (
	SeverityLow      BugSeverity = "low"
	SeverityMedium   BugSeverity = "medium"
	SeverityHigh     BugSeverity = "high"
	SeverityCritical BugSeverity = "critical"
)

type BugStatus string

const (
	BugStatusOpen       BugStatus = "open"
	BugStatusInProgress BugStatus = "in_progress"
	BugStatusResolved   BugStatus = "resolved"
	BugStatusClosed     BugStatus = "closed"
)

type MetricType string

const (
	MetricDownloads MetricType = "downloads"
	MetricUsers     MetricType = "users"
	MetricSessions  MetricType = "sessions"
	MetricBandwidth MetricType = "bandwidth"
	MetricErrors    MetricType = "errors"
)

// AllMetricTypes lists metric types in display order.
var AllMetricTypes = []MetricType{MetricDownloads, MetricUsers, MetricSessions, MetricBandwidth, MetricErrors}

type DocVersionType string

const (
	DocVersionV4      DocVersionType = "v4"
	DocVersionV5      DocVersionType = "v5"
	DocVersionGeneral DocVersionType = "general"
)

type NotificationType string

const (
	NotificationPatchNote NotificationType = "patch_note"
	NotificationFile      NotificationType = "file"
)

// User is an account of the dashboard. TotalDownloads is denormalized from DownloadLog rows.
type User struct {
	ID             string     `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Name           string     `gorm:"column:name;size:320;not null" json:"name"`
	Email          string     `gorm:"column:email;size:320;index" json:"email"`
	Grade          Grade      `gorm:"column:grade;size:16;not null;default:'guest'" json:"grade"`
	JoinDate       time.Time  `gorm:"column:join_date" json:"join_date"`
	LastActive     time.Time  `gorm:"column:last_active" json:"last_active"`
	TotalDownloads int64      `gorm:"column:total_downloads;not null;default:0" json:"total_downloads"`
	IsGuest        bool       `gorm:"column:is_guest;not null;default:false" json:"is_guest"`
	IsBlocked      bool       `gorm:"column:is_blocked;not null;default:false" json:"is_blocked"`
	BlockedUntil   *time.Time `gorm:"column:blocked_until" json:"blocked_until"`
	AdminNotes     *string    `gorm:"column:admin_notes;type:text" json:"admin_notes"`
}

func (User) TableName() string { return "users" }

func (u *User) GetID() string   { return u.ID }
func (u *User) SetID(id string) { u.ID = id }

func (u *User) Stamp(now time.Time, created bool) {
	if created && u.JoinDate.IsZero() {
		u.JoinDate = now
	}
	if u.LastActive.IsZero() {
		u.LastActive = now
	}
}

// ServerFile is a downloadable build published by an admin.
type ServerFile struct {
	ID            string                     `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Name          string                     `gorm:"column:name;size:320;not null;index" json:"name"`
	Version       string                     `gorm:"column:version;size:64;not null" json:"version"`
	Description   string                     `gorm:"column:description;type:text" json:"description"`
	FileURL       string                     `gorm:"column:file_url;size:1024" json:"file_url"`
	FileSize      int64                      `gorm:"column:file_size;not null;default:0" json:"file_size"`
	FileType      FileType                   `gorm:"column:file_type;size:16;not null" json:"file_type"`
	MinGrade      Grade                      `gorm:"column:min_grade;size:16;not null;default:'guest'" json:"min_grade"`
	Status        FileStatus                 `gorm:"column:status;size:16;not null;default:'active'" json:"status"`
	DownloadCount int64                      `gorm:"column:download_count;not null;default:0" json:"download_count"`
	Changelog     datatypes.JSONSlice[string] `gorm:"column:changelog" json:"changelog"`
	CreatedBy     string                     `gorm:"column:created_by;size:190" json:"created_by"`
	CreatedAt     time.Time                  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time                  `gorm:"column:updated_at" json:"updated_at"`
}

func (ServerFile) TableName() string { return "server_files" }

func (f *ServerFile) GetID() string   { return f.ID }
func (f *ServerFile) SetID(id string) { f.ID = id }

func (f *ServerFile) Stamp(now time.Time, created bool) {
	if created && f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
}

// PatchNote is a markdown release note that moves draft -> published once.
type PatchNote struct {
	ID         string        `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Version    string        `gorm:"column:version;size:64;not null" json:"version"`
	Title      string        `gorm:"column:title;size:320;not null" json:"title"`
	Content    string        `gorm:"column:content;type:text" json:"content"`
	Status     PublishStatus `gorm:"column:status;size:16;not null;default:'draft'" json:"status"`
	AuthorID   string        `gorm:"column:author_id;size:190" json:"author_id"`
	AuthorName string        `gorm:"column:author_name;size:320" json:"author_name"`
	CreatedAt  time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (PatchNote) TableName() string { return "patch_notes" }

func (n *PatchNote) GetID() string   { return n.ID }
func (n *PatchNote) SetID(id string) { n.ID = id }

func (n *PatchNote) Stamp(now time.Time, created bool) {
	if created && n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
}

// DownloadLog is an append-only record of one file download.
type DownloadLog struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	UserName    string    `gorm:"column:user_name;size:320" json:"user_name"`
	FileID      string    `gorm:"column:file_id;size:190;not null;index" json:"file_id"`
	FileName    string    `gorm:"column:file_name;size:320" json:"file_name"`
	FileVersion string    `gorm:"column:file_version;size:64" json:"file_version"`
	IPAddress   string    `gorm:"column:ip_address;size:64" json:"ip_address"`
	UserAgent   string    `gorm:"column:user_agent;size:512" json:"user_agent"`
	CreatedAt   time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (DownloadLog) TableName() string { return "download_logs" }

func (l *DownloadLog) GetID() string   { return l.ID }
func (l *DownloadLog) SetID(id string) { l.ID = id }

func (l *DownloadLog) Stamp(now time.Time, created bool) {
	if created && l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
}

// ActivityLog is an append-only audit row.
type ActivityLog struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	UserName  string    `gorm:"column:user_name;size:320" json:"user_name"`
	Action    string    `gorm:"column:action;size:190;not null" json:"action"`
	Details   string    `gorm:"column:details;type:text" json:"details"`
	IPAddress string    `gorm:"column:ip_address;size:64" json:"ip_address"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

func (l *ActivityLog) GetID() string   { return l.ID }
func (l *ActivityLog) SetID(id string) { l.ID = id }

func (l *ActivityLog) Stamp(now time.Time, created bool) {
	if created && l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
}

// BugComment is one entry of a bug report discussion.
type BugComment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// BugReport is a user-filed defect.
type BugReport struct {
	ID               string                          `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Title            string                          `gorm:"column:title;size:320;not null" json:"title"`
	Description      string                          `gorm:"column:description;type:text" json:"description"`
	Severity         BugSeverity                     `gorm:"column:severity;size:16;not null;default:'medium'" json:"severity"`
	Category         string                          `gorm:"column:category;size:64" json:"category"`
	Status           BugStatus                       `gorm:"column:status;size:16;not null;default:'open'" json:"status"`
	ReporterID       string                          `gorm:"column:reporter_id;size:190;not null;index" json:"reporter_id"`
	ReporterName     string                          `gorm:"column:reporter_name;size:320" json:"reporter_name"`
	Steps            datatypes.JSONSlice[string]     `gorm:"column:steps" json:"steps"`
	ExpectedBehavior string                          `gorm:"column:expected_behavior;type:text" json:"expected_behavior"`
	ActualBehavior   string                          `gorm:"column:actual_behavior;type:text" json:"actual_behavior"`
	Environment      datatypes.JSONMap               `gorm:"column:environment" json:"environment"`
	Attachments      datatypes.JSONSlice[string]     `gorm:"column:attachments" json:"attachments"`
	Comments         datatypes.JSONSlice[BugComment] `gorm:"column:comments" json:"comments"`
	CreatedAt        time.Time                       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time                       `gorm:"column:updated_at" json:"updated_at"`
}

func (BugReport) TableName() string { return "bug_reports" }

func (b *BugReport) GetID() string   { return b.ID }
func (b *BugReport) SetID(id string) { b.ID = id }

func (b *BugReport) Stamp(now time.Time, created bool) {
	if created && b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// Documentation is an ordered markdown page within a version type and category.
type Documentation struct {
	ID          string                     `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Title       string                     `gorm:"column:title;size:320;not null" json:"title"`
	Slug        string                     `gorm:"column:slug;size:190;not null;index" json:"slug"`
	Content     string                     `gorm:"column:content;type:text" json:"content"`
	Category    string                     `gorm:"column:category;size:64;index:idx_docs_order,priority:2" json:"category"`
	VersionType DocVersionType             `gorm:"column:version_type;size:16;index:idx_docs_order,priority:1" json:"version_type"`
	Status      PublishStatus              `gorm:"column:status;size:16;not null;default:'draft'" json:"status"`
	OrderIndex  int                        `gorm:"column:order_index;not null;default:0;index:idx_docs_order,priority:3" json:"order_index"`
	Tags        datatypes.JSONSlice[string] `gorm:"column:tags" json:"tags"`
	AuthorID    string                     `gorm:"column:author_id;size:190" json:"author_id"`
	AuthorName  string                     `gorm:"column:author_name;size:320" json:"author_name"`
	CreatedAt   time.Time                  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time                  `gorm:"column:updated_at" json:"updated_at"`
}

func (Documentation) TableName() string { return "documentation" }

func (d *Documentation) GetID() string   { return d.ID }
func (d *Documentation) SetID(id string) { d.ID = id }

func (d *Documentation) Stamp(now time.Time, created bool) {
	if created && d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
}

// SystemMetric is a read-only daily aggregate row.
type SystemMetric struct {
	ID         string     `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	MetricType MetricType `gorm:"column:metric_type;size:32;not null;index:idx_metrics_type_date,priority:1" json:"metric_type"`
	Value      float64    `gorm:"column:value;not null" json:"value"`
	Date       time.Time  `gorm:"column:date;not null;index:idx_metrics_type_date,priority:2" json:"date"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (SystemMetric) TableName() string { return "system_metrics" }

func (m *SystemMetric) GetID() string   { return m.ID }
func (m *SystemMetric) SetID(id string) { m.ID = id }

// Notification is an entry in a user's personal notification list.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

func (n *Notification) GetID() string   { return n.ID }
func (n *Notification) SetID(id string) { n.ID = id }

// All returns the entities persisted by the remote store, in migration order.
func All() []any {
	return []any{
		&User{},
		&ServerFile{},
		&PatchNote{},
		&DownloadLog{},
		&ActivityLog{},
		&BugReport{},
		&Documentation{},
		&SystemMetric{},
	}
}
