package service

import "parking_dashboard/internal/domain"

// Broadcaster - interface cho WebSocket manager để tránh circular dependency
// giữa service và api/handler. Mọi implement phải non-blocking với producer:
// client chậm hay đã ngắt không bao giờ được kìm Reconciler hay Violation Engine.
type Broadcaster interface {
	BroadcastCapacityUpdate(n domain.CapacityUpdateNotification)
	BroadcastVehicleEvent(eventType domain.DashboardEventType, n domain.VehicleEventNotification)
	BroadcastViolation(v domain.Violation)
	BroadcastAlert(a domain.Alert)
	BroadcastConnectionStatus(n domain.ConnectionStatusNotification)
}
