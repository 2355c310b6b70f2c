package api

import (
	"parking_dashboard/internal/api/handler"
	"parking_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRouter khai báo toàn bộ surface HTTP của dashboard. Không có
// authentication: dashboard chạy trong mạng nội bộ của facility.
func SetupRouter(
	fs *service.FacilityService,
	registry *service.MonitorRegistry,
	commandService *service.CameraCommandService,
	wsManager *handler.WebSocketManager,
) *gin.Engine {
	r := gin.Default()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// WebSocket endpoint cho dashboard real-time
	wsHandler := handler.NewWebSocketHandler(wsManager)
	r.GET("/ws", wsHandler.HandleWebSocket)

	v1 := r.Group("/api/v1")
	{
		lotH := handler.NewParkingLotHandler(fs)
		monitorH := handler.NewMonitorHandler(registry, commandService)
		lotRoutes := v1.Group("/parking-lots")
		{
			lotRoutes.POST("", lotH.CreateParkingLot)
			lotRoutes.GET("", lotH.GetAllParkingLots)
			lotRoutes.GET("/:id", lotH.GetParkingLotByID)
			lotRoutes.PUT("/:id", lotH.UpdateParkingLot)
			lotRoutes.DELETE("/:id", lotH.DeleteParkingLot)
			lotRoutes.GET("/:id/slots", lotH.GetLotWithSlots)
			lotRoutes.POST("/:id/cameras/command", monitorH.SendCameraCommand)
		}

		contractorH := handler.NewContractorHandler(fs)
		contractorRoutes := v1.Group("/contractors")
		{
			contractorRoutes.POST("", contractorH.CreateContractor)
			contractorRoutes.GET("", contractorH.GetContractors)
			contractorRoutes.GET("/:id", contractorH.GetContractorByID)
			contractorRoutes.PUT("/:id", contractorH.UpdateContractor)
			contractorRoutes.DELETE("/:id", contractorH.DeleteContractor)
		}

		recordH := handler.NewVehicleRecordHandler(fs)
		recordRoutes := v1.Group("/vehicle-records")
		{
			recordRoutes.GET("", recordH.FindVehicleRecords)
			recordRoutes.GET("/:id", recordH.GetVehicleRecordByID)
		}
		v1.GET("/capacity-logs", recordH.FindCapacityLogs)

		violationH := handler.NewViolationHandler(fs)
		violationRoutes := v1.Group("/violations")
		{
			violationRoutes.GET("", violationH.FindViolations)
			violationRoutes.GET("/:id", violationH.GetViolationByID)
			violationRoutes.POST("/:id/acknowledge", violationH.AcknowledgeViolation)
			violationRoutes.POST("/:id/resolve", violationH.ResolveViolation)
		}

		alertH := handler.NewAlertHandler(fs)
		alertRoutes := v1.Group("/alerts")
		{
			alertRoutes.GET("", alertH.FindAlerts)
			alertRoutes.GET("/:id", alertH.GetAlertByID)
			alertRoutes.POST("/:id/acknowledge", alertH.AcknowledgeAlert)
			alertRoutes.POST("/:id/resolve", alertH.ResolveAlert)
		}

		v1.GET("/monitors", monitorH.GetMonitorStatuses)
	}
	return r
}
