package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"route-feedback-api/config"
	"route-feedback-api/controllers"
	"route-feedback-api/middleware"
	"route-feedback-api/routes"
	"route-feedback-api/services"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logCloser := config.InitLogging("logs")
	defer logCloser.Close()

	settings, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	config.ReloadMailerConfig()

	// Reference lists feed the form; a missing file stops startup.
	lists, err := services.LoadReferenceLists(settings.IDCFile, settings.StationsFile)
	if err != nil {
		log.Fatal("Failed to load reference lists: ", err)
	}

	// Initialize database
	config.InitDB()
	ledger := services.NewSubmissionLedger(nil)
	if err := ledger.Migrate(); err != nil {
		log.Fatal("Failed to migrate submission ledger: ", err)
	}

	remote := services.NewGraphClient(settings.Remote, nil)
	if err := remote.Configured(); err != nil {
		log.Printf("Remote sync disabled: %v", err)
	}
	if !config.MailerConfigured() && len(settings.AlertEmails) > 0 {
		log.Printf("ALERT_EMAILS is set but SMTP is not configured; failure alerts will not be delivered")
	}

	localStore := services.NewLocalStore(settings.SubmissionsDir, settings.LocalExportFile)
	submissions := services.NewSubmissionService(
		services.PolicyFor(settings.FormVariant, settings.RequireStopAddress),
		services.NewPayloadBuilder(nil),
		localStore,
		remote,
		ledger,
		services.NewMailNotifier(settings.AlertEmails),
	)

	controllers.Configure(controllers.Dependencies{
		Settings:    settings,
		Submissions: submissions,
		Ledger:      ledger,
		LocalStore:  localStore,
		Remote:      remote,
		Lists:       lists,
	})

	// Set Gin mode
	if settings.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = config.LogWriter

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})
	router.Use(middleware.CORSMiddleware(settings.AllowedOrigins))

	// Attachments are capped per file; this bounds the multipart memory buffer.
	router.MaxMultipartMemory = 32 << 20

	routes.SetupRoutes(router, settings)

	log.Printf("Server starting on port %s (form variant %s, %d stations, %d IDCs)",
		settings.ServerPort, settings.FormVariant, len(lists.Stations), len(lists.IDCs))
	if err := router.Run(":" + settings.ServerPort); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
