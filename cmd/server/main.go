package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"communication-service/internal/database"
	"communication-service/internal/emails"
	"communication-service/internal/middleware"
	"communication-service/internal/models"
	"communication-service/internal/services"
	"communication-service/internal/utils"
	"communication-service/internal/worker"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
)

func main() {
	_ = godotenv.Load()

	newPass := flag.String("new-password", "", "Set new password")
	targetEmail := flag.String("email", "", "Email target")
	flag.Parse()

	database.Connect()

	if *newPass != "" && *targetEmail != "" {
		handlePasswordReset(*targetEmail, *newPass)
		return
	}

	services.MailSender = buildMailSender()
	services.RegisterExporter(services.CommunicationLogExporter{})

	// Start Worker
	bgWorker := worker.NewWorker()
	bgWorker.Start()

	e := echo.New()
	middleware.Setup(e)

	authService := services.AuthService{}
	queueService := services.QueueService{}
	exportService := services.ExportService{}
	gatewayClient := services.NewGatewayClient()

	// --- PUBLIC ROUTES ---

	e.POST("/api/login", func(c echo.Context) error {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
		}

		user, err := authService.Authenticate(body.Email, body.Password)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid Credentials"})
		}

		token, err := utils.GenerateToken(user.ID.String(), user.Role)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "failed to issue token"})
		}
		return c.JSON(http.StatusOK, echo.Map{"token": token})
	})

	// ==========================================
	// --- MANAGEMENT API (JWT) ---
	// ==========================================

	api := e.Group("/api/v1", middleware.JWTAuth)

	// --- TEMPLATES (CRUD) ---

	api.GET("/templates", func(c echo.Context) error {
		query := database.DB.Model(&models.Template{}).Order("name asc")
		if language := c.QueryParam("language"); language != "" {
			query = query.Where("language = ?", language)
		}
		if search := c.QueryParam("search"); search != "" {
			query = query.Where("name ILIKE ?", "%"+search+"%")
		}

		var templates []models.Template
		if err := query.Find(&templates).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
		}
		return c.JSON(http.StatusOK, templates)
	})

	api.POST("/templates", func(c echo.Context) error {
		var template models.Template
		if err := c.Bind(&template); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
		}
		if template.Language == "" {
			template.Language = "en"
		}
		if err := database.DB.Create(&template).Error; err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Failed to save: " + err.Error()})
		}
		return c.JSON(http.StatusCreated, template)
	})

	api.GET("/templates/:id", func(c echo.Context) error {
		var template models.Template
		if err := database.DB.First(&template, "id = ?", c.Param("id")).Error; err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Template not found"})
		}
		return c.JSON(http.StatusOK, template)
	})

	api.PUT("/templates/:id", func(c echo.Context) error {
		var template models.Template
		if err := database.DB.First(&template, "id = ?", c.Param("id")).Error; err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Template not found"})
		}

		var body models.Template
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
		}
		template.Name = body.Name
		template.Language = body.Language
		template.Content = body.Content
		if err := database.DB.Save(&template).Error; err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Failed to save: " + err.Error()})
		}
		return c.JSON(http.StatusOK, template)
	})

	api.DELETE("/templates/:id", func(c echo.Context) error {
		database.DB.Delete(&models.Template{}, "id = ?", c.Param("id"))
		return c.NoContent(http.StatusNoContent)
	})

	// --- GATEWAYS (CRUD + Test, admin only) ---

	gateways := api.Group("/gateways", middleware.RequireRole("ADMIN"))

	gateways.GET("", func(c echo.Context) error {
		query := database.DB.Model(&models.Gateway{}).Order("name asc")
		if gatewayType := c.QueryParam("type"); gatewayType != "" {
			query = query.Where("type = ?", gatewayType)
		}

		var gateways []models.Gateway
		if err := query.Find(&gateways).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
		}
		return c.JSON(http.StatusOK, gateways)
	})

	gateways.POST("", func(c echo.Context) error {
		var gateway models.Gateway
		if err := c.Bind(&gateway); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
		}
		if err := database.DB.Create(&gateway).Error; err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Failed to save: " + err.Error()})
		}
		return c.JSON(http.StatusCreated, gateway)
	})

	gateways.GET("/:id", func(c echo.Context) error {
		var gateway models.Gateway
		if err := database.DB.First(&gateway, "id = ?", c.Param("id")).Error; err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Gateway not found"})
		}
		return c.JSON(http.StatusOK, gateway)
	})

	gateways.PUT("/:id", func(c echo.Context) error {
		var gateway models.Gateway
		if err := database.DB.First(&gateway, "id = ?", c.Param("id")).Error; err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Gateway not found"})
		}
		if err := c.Bind(&gateway); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
		}
		if err := database.DB.Save(&gateway).Error; err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Failed to save: " + err.Error()})
		}
		return c.JSON(http.StatusOK, gateway)
	})

	gateways.DELETE("/:id", func(c echo.Context) error {
		database.DB.Delete(&models.Gateway{}, "id = ?", c.Param("id"))
		return c.NoContent(http.StatusNoContent)
	})

	gateways.POST("/:id/test", func(c echo.Context) error {
		var gateway models.Gateway
		if err := database.DB.First(&gateway, "id = ?", c.Param("id")).Error; err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Gateway not found"})
		}

		var context map[string]interface{}
		_ = c.Bind(&context)

		result, err := gatewayClient.TestGateway(&gateway, context)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
		}
		return c.JSON(http.StatusOK, result)
	})

	// --- STORAGE CONFIGS (CRUD) ---

	api.GET("/storage-configs", func(c echo.Context) error {
		var storages []models.StorageConfig
		if err := database.DB.Order("created_at asc").Find(&storages).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
		}
		return c.JSON(http.StatusOK, storages)
	})

	api.POST("/storage-configs", func(c echo.Context) error {
		var storage models.StorageConfig
		if err := c.Bind(&storage); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
		}
		if err := database.DB.Create(&storage).Error; err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Failed to save: " + err.Error()})
		}
		return c.JSON(http.StatusCreated, storage)
	})

	api.GET("/storage-configs/:id", func(c echo.Context) error {
		var storage models.StorageConfig
		if err := database.DB.First(&storage, "id = ?", c.Param("id")).Error; err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Storage config not found"})
		}
		return c.JSON(http.StatusOK, storage)
	})

	api.PUT("/storage-configs/:id", func(c echo.Context) error {
		var storage models.StorageConfig
		if err := database.DB.First(&storage, "id = ?", c.Param("id")).Error; err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Storage config not found"})
		}
		if err := c.Bind(&storage); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
		}
		if err := database.DB.Save(&storage).Error; err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Failed to save: " + err.Error()})
		}
		return c.JSON(http.StatusOK, storage)
	})

	api.DELETE("/storage-configs/:id", func(c echo.Context) error {
		database.DB.Delete(&models.StorageConfig{}, "id = ?", c.Param("id"))
		return c.NoContent(http.StatusNoContent)
	})

	// --- COMMUNICATION LOGS ---

	api.GET("/communication-logs", func(c echo.Context) error {
		page, _ := strconv.Atoi(c.QueryParam("page"))
		if page < 1 {
			page = 1
		}
		perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
		if perPage < 1 || perPage > 200 {
			perPage = 50
		}

		query := database.DB.Model(&models.CommunicationLog{})
		if communicationType := c.QueryParam("communication_type"); communicationType != "" {
			query = query.Where("communication_type = ?", communicationType)
		}

		var total int64
		if err := query.Count(&total).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
		}

		var logs []models.CommunicationLog
		err := query.Order("created_at desc").
			Offset((page - 1) * perPage).
			Limit(perPage).
			Find(&logs).Error
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
		}

		return c.JSON(http.StatusOK, echo.Map{
			"results":  logs,
			"page":     page,
			"per_page": perPage,
			"total":    total,
		})
	})

	api.GET("/communication-logs/export", func(c echo.Context) error {
		filters := map[string]interface{}{}
		if communicationType := c.QueryParam("communication_type"); communicationType != "" {
			filters["communication_type"] = communicationType
		}
		forceCompress := c.QueryParam("compress") == "true"

		exporter, _ := services.LookupExporter("communication_logs")
		result, err := exportService.GenerateCSV(exporter, filters, middleware.CurrentUser(c), forceCompress)
		if err != nil {
			var tooLarge *services.CSVTooLargeError
			if errors.As(err, &tooLarge) {
				return c.JSON(http.StatusAccepted, echo.Map{"message": tooLarge.Message})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
		}

		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename=%q`, result.FileName))
		return c.Blob(http.StatusOK, result.ContentType, result.Buffer.Bytes())
	})

	// ==========================================
	// --- OPERATIONS API (IP allowlist) ---
	// ==========================================

	ops := e.Group("/ops/v1", middleware.IPAllowlist)

	ops.POST("/notifications/:type", notificationsHandler(queueService))

	// --- HEALTH ---

	e.GET("/liveliness", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	e.GET("/readiness", func(c echo.Context) error {
		if err := pingDatabase(); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "database": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	e.GET("/health-check", func(c echo.Context) error {
		components := echo.Map{}
		healthy := true

		if err := pingDatabase(); err != nil {
			components["database"] = err.Error()
			healthy = false
		} else {
			components["database"] = "ok"
		}

		pending, err := queueService.CountByStatus(models.TaskStatusPending)
		if err != nil {
			components["queue"] = err.Error()
			healthy = false
		} else {
			components["queue"] = "ok"
			components["pending_tasks"] = pending
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusBadRequest
		}
		return c.JSON(status, echo.Map{"healthy": healthy, "components": components})
	})

	serverPort := os.Getenv("APP_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}
	e.Logger.Fatal(e.Start(":" + serverPort))
}

// notificationsHandler accepts public notification requests. The path
// type is the lowercase API value ("email"); only email dispatch is
// implemented, everything else is rejected up front.
func notificationsHandler(queueService services.QueueService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Param("type") != "email" {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid notifications request"})
		}

		var body struct {
			Template    string                 `json:"template"`
			Emails      []string               `json:"emails"`
			FromAddress string                 `json:"from_address"`
			Context     map[string]interface{} `json:"context"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid notifications request"})
		}

		if _, err := utils.ValidateEmailTemplate(utils.TemplatesDir(), body.Template); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
		}

		recipients := utils.ExtractValidEmails(body.Emails)
		if len(recipients) == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "No valid recipients"})
		}

		payload := models.JSONMap{
			"template":     body.Template,
			"emails":       recipients,
			"from_address": body.FromAddress,
			"context":      body.Context,
		}
		if _, err := queueService.Enqueue(services.TaskSendNotifications, payload); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
		}

		return c.JSON(http.StatusAccepted, echo.Map{"message": "Notification request is being processed."})
	}
}

func pingDatabase() error {
	sqlDB, err := database.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// / buildMailSender wires the outbound transport from the environment:
// SMTP when configured, console otherwise. ALLOWED_EMAIL_PATTERNS turns
// on recipient filtering so non-production setups never mail real
// addresses.
func buildMailSender() emails.Sender {
	var sender emails.Sender
	if os.Getenv("SMTP_HOST") != "" {
		sender = emails.NewSMTPSenderFromEnv()
	} else {
		log.Println("SMTP_HOST not set, using console mail sender")
		sender = emails.NewConsoleSender()
	}

	if raw := os.Getenv("ALLOWED_EMAIL_PATTERNS"); raw != "" {
		var patterns []string
		for _, pattern := range strings.Split(raw, ",") {
			if pattern = strings.TrimSpace(pattern); pattern != "" {
				patterns = append(patterns, pattern)
			}
		}
		sender = emails.NewFilteringSender(sender, patterns)
	}
	return sender
}

func handlePasswordReset(email, password string) {
	authService := services.AuthService{}
	if _, err := authService.UpsertAdminUser(email, password); err != nil {
		log.Fatal(err)
	}
	log.Printf("Password updated for %s", email)
	os.Exit(0)
}
