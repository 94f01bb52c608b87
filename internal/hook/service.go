// Package hook is the dashboard's data-access layer.
//
// Every repository operation targets the remote store first and falls back to the local cache
// when the remote call fails. Reads never fail: they degrade to empty results. Writes return an
// error only when neither store accepted them, and post a readable message to the shared
// ErrorBoard for the UI. Each operation reports the Source that served it.
package hook

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/cache"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/remote"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	errMissingRemote     = errors.New("remote client is required")
	errMissingCache      = errors.New("local cache is required")
	errMissingIDProvider = errors.New("id provider is required")

	// ErrNotFound indicates the record exists in neither store.
	ErrNotFound = errors.New("hook: record not found")
	// ErrInvalidID indicates an empty record identifier.
	ErrInvalidID = errors.New("hook: invalid id")
	// ErrInvalidInput indicates a write payload failed validation.
	ErrInvalidInput = errors.New("hook: invalid input")

	noOpLogger = zap.NewNop()
)

// Source names the store that served an operation. SourceSynthetic marks generated metric series;
// SourceNone marks a best-effort step that landed in neither store.
type Source string

const (
	SourceNone      Source = ""
	SourceRemote    Source = "remote"
	SourceLocal     Source = "local"
	SourceSynthetic Source = "synthetic"
)

// ServiceError is returned by failed writes; Code is "<operation>.<reason>".
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const opNew = "hook.new"

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ErrorBoard holds the last human readable write failure for display.
type ErrorBoard struct {
	mu      sync.RWMutex
	message string
}

// Post replaces the current message.
func (b *ErrorBoard) Post(message string) {
	b.mu.Lock()
	b.message = message
	b.mu.Unlock()
}

func (b *ErrorBoard) Last() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.message
}

func (b *ErrorBoard) Clear() {
	b.Post("")
}

// IDProvider issues identifiers for records created without one.
type IDProvider interface {
	NewID() (string, error)
}

// Config wires a Hook to its stores and collaborators. Remote, Cache and IDProvider are required.
type Config struct {
	Remote     remote.Client
	Cache      *cache.Cache
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	// Registerer receives the hook's counters; nil keeps them on a private registry.
	Registerer prometheus.Registerer
	// Publisher receives every notification written by the fan-out; optional.
	Publisher NotificationPublisher
}

// core is shared by every repository of one Hook.
type core struct {
	remote  remote.Client
	cache   *cache.Cache
	clock   func() time.Time
	ids     IDProvider
	logger  *zap.Logger
	board   *ErrorBoard
	metrics *instrumentation
}

func (c *core) now() time.Time {
	return c.clock().UTC()
}

func (c *core) newID() (string, error) {
	return c.ids.NewID()
}

func (c *core) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	c.logger.Error("hook error", attrs...)
}

func (c *core) logFallback(table, action string, err error) {
	c.metrics.fallback(table, action)
	c.logger.Warn("remote store failed, using local cache",
		zap.String("operation", "hook."+table+"."+action),
		zap.String("table", table),
		zap.String("kind", string(remote.KindOf(err))),
		zap.Error(err))
}

// fail records a write failure on the board and returns it as a ServiceError.
func (c *core) fail(operation, reason, message string, cause error, fields ...zap.Field) error {
	c.logError(operation, reason, cause, fields...)
	c.board.Post(message)
	return newServiceError(operation, reason, cause)
}

// Hook bundles every repository over one remote client and one local cache.
type Hook struct {
	Users         *Users
	Files         *Files
	PatchNotes    *PatchNotes
	Docs          *Docs
	Bugs          *BugReports
	Activity      *ActivityLogs
	Downloads     *DownloadLogs
	Metrics       *Metrics
	Notifications *Notifications

	core *core
}

func New(cfg Config) (*Hook, error) {
	if cfg.Remote == nil {
		return nil, newServiceError(opNew, "missing_remote", errMissingRemote)
	}
	if cfg.Cache == nil {
		return nil, newServiceError(opNew, "missing_cache", errMissingCache)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	shared := &core{
		remote:  cfg.Remote,
		cache:   cfg.Cache,
		clock:   clock,
		ids:     cfg.IDProvider,
		logger:  logger,
		board:   &ErrorBoard{},
		metrics: newInstrumentation(cfg.Registerer),
	}

	h := &Hook{core: shared}
	h.Notifications = newNotifications(shared, cfg.Publisher)
	h.Users = newUsers(shared)
	h.Files = newFiles(shared, h.Users, h.Notifications)
	h.PatchNotes = newPatchNotes(shared, h.Users, h.Notifications)
	h.Docs = newDocs(shared)
	h.Bugs = newBugReports(shared)
	h.Activity = newActivityLogs(shared)
	h.Downloads = newDownloadLogs(shared, h.Users, h.Files)
	h.Metrics = newMetrics(shared)
	return h, nil
}

// LastError returns the most recent write failure message, or "".
func (h *Hook) LastError() string {
	return h.core.board.Last()
}

// ClearError resets the shared failure message.
func (h *Hook) ClearError() {
	h.core.board.Clear()
}
