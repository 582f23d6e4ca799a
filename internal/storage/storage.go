package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the complete storage interface.
type Store interface {
	// Monitors
	CreateMonitor(ctx context.Context, m *Monitor) error
	GetMonitor(ctx context.Context, id int64) (*Monitor, error)
	ListMonitors(ctx context.Context) ([]*Monitor, error)
	UpdateMonitor(ctx context.Context, m *Monitor) error
	DeleteMonitor(ctx context.Context, id int64) error
	ListMonitorsCreatedBefore(ctx context.Context, ts int64) ([]*Monitor, error)
	ListActiveMonitorsWithState(ctx context.Context) ([]*MonitorWithState, error)
	ListDueMonitors(ctx context.Context, checkedAt int64) ([]*MonitorWithState, error)

	// Monitor state
	GetMonitorState(ctx context.Context, monitorID int64) (*MonitorState, error)
	SetMonitorPaused(ctx context.Context, monitorID int64, paused bool, now int64) error

	// Checks
	ApplyCheck(ctx context.Context, b *CheckBatch) error
	ListChecksInRange(ctx context.Context, monitorID, from, to int64) ([]*CheckResult, error)
	ListHeartbeats(ctx context.Context, since int64, limit int) (map[int64][]Heartbeat, error)
	PurgeChecksBefore(ctx context.Context, ts int64) (int64, error)

	// Outages
	ListOutagesOverlapping(ctx context.Context, monitorID, from, to int64) ([]*Outage, error)
	ListAllOutagesOverlapping(ctx context.Context, from, to int64) (map[int64][]*Outage, error)
	CountOutagesStarted(ctx context.Context, from, to int64) (int64, error)
	ListOutagesResolvedIn(ctx context.Context, from, to int64) ([]*Outage, error)
	ListMonitorOutagesPage(ctx context.Context, monitorID, from, to, beforeID int64, limit int) ([]*Outage, error)

	// Incidents
	CreateIncident(ctx context.Context, inc *Incident) error
	GetIncident(ctx context.Context, id int64) (*Incident, error)
	ListIncidents(ctx context.Context, resolvedOnly bool, cursor int64, limit int) ([]*Incident, error)
	ListUnresolvedIncidents(ctx context.Context, limit int) ([]*Incident, error)
	AddIncidentUpdate(ctx context.Context, u *IncidentUpdate) error
	ResolveIncident(ctx context.Context, id, now int64) (resolvedAt int64, already bool, err error)
	DeleteIncident(ctx context.Context, id int64) error

	// Maintenance windows
	CreateMaintenanceWindow(ctx context.Context, mw *MaintenanceWindow) error
	GetMaintenanceWindow(ctx context.Context, id int64) (*MaintenanceWindow, error)
	ListMaintenanceWindows(ctx context.Context) ([]*MaintenanceWindow, error)
	UpdateMaintenanceWindow(ctx context.Context, mw *MaintenanceWindow) error
	DeleteMaintenanceWindow(ctx context.Context, id int64) error
	ActiveMaintenanceMonitorIDs(ctx context.Context, now int64) (map[int64]bool, error)
	ListActiveMaintenanceWindows(ctx context.Context, now int64, limit int) ([]*MaintenanceWindow, error)
	ListUpcomingMaintenanceWindows(ctx context.Context, now int64, limit int) ([]*MaintenanceWindow, error)

	// Notification channels
	CreateNotificationChannel(ctx context.Context, ch *NotificationChannel) error
	GetNotificationChannel(ctx context.Context, id int64) (*NotificationChannel, error)
	ListNotificationChannels(ctx context.Context) ([]*NotificationChannel, error)
	UpdateNotificationChannel(ctx context.Context, ch *NotificationChannel) error
	DeleteNotificationChannel(ctx context.Context, id int64) error
	ListActiveChannels(ctx context.Context) ([]*NotificationChannel, error)

	// Deliveries
	InsertDeliveryPlaceholder(ctx context.Context, eventKey string, channelID, now int64) (bool, error)
	FinalizeDelivery(ctx context.Context, eventKey string, channelID int64, status string, httpStatus *int, errMsg string) error
	ListDeliveries(ctx context.Context, eventKey string) ([]*NotificationDelivery, error)

	// Daily rollups
	UpsertRollups(ctx context.Context, rows []*DailyRollup) error
	GetRollup(ctx context.Context, monitorID, dayStart int64) (*DailyRollup, error)
	ListRollups(ctx context.Context, monitorID, fromDay, toDay int64) ([]*DailyRollup, error)
	ListAllRollups(ctx context.Context, fromDay, toDay int64) (map[int64][]*DailyRollup, error)

	// Locks
	AcquireLock(ctx context.Context, name string, now, ttlSec int64) (bool, error)

	// Snapshots
	GetSnapshot(ctx context.Context, key string) (*Snapshot, error)
	PutSnapshot(ctx context.Context, snap *Snapshot) error

	// Settings
	GetSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}
