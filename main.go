package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"quid/activity"
	"quid/admin"
	"quid/board"
	"quid/common"
	"quid/database"
	"quid/metrics"
	"quid/models"
	"quid/site"
	"quid/views"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDb loads the configuration and opens the database with its schema in place.
func openDb() (*common.Config, *gorm.DB, error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	db := common.ConnectDb(cfg.DBPath)
	if db == nil {
		return nil, nil, fmt.Errorf("failed to connect to database %s", cfg.DBPath)
	}

	if err := database.Setup(db); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return cfg, db, nil
}

func setupRouter(cfg *common.Config, db *gorm.DB) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("setting trusted proxies: %w", err)
	}

	store := cookie.NewStore([]byte(cfg.SecretKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.SSL,
	})

	router.Use(metrics.Middleware())
	router.Use(common.SecureHeaders(cfg.SSL))
	router.Use(common.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(sessions.Sessions("quid-session", store))

	views.Load(router)

	activityModule := activity.NewActivityModule(db)

	boardModule := board.NewBoardModule(db, activityModule, cfg)
	boardModule.RegisterRoutes(router)

	adminModule := admin.NewAdminModule(db, activityModule, cfg)
	adminModule.RegisterRoutes(router)

	siteModule := site.NewSiteModule(db, cfg.Domain)
	siteModule.RegisterRoutes(router)

	router.GET("/metrics", metrics.Handler())

	router.NoRoute(func(c *gin.Context) {
		common.RenderError(c, db, 404, "page introuvable")
	})

	return router, nil
}

var rootCmd = &cobra.Command{
	Use:   "quid",
	Short: "Anonymous discussion board",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDb()
		if err != nil {
			return err
		}

		gin.SetMode(cfg.GinMode)
		router, err := setupRouter(cfg, db)
		if err != nil {
			return err
		}

		log.Printf("Starting server on port %s...", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and seed default categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := openDb()
		if err != nil {
			return err
		}
		fmt.Printf("Database ready at %s\n", cfg.DBPath)
		return nil
	},
}

var interestCmd = &cobra.Command{
	Use:   "interest",
	Short: "List collected interest emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDb()
		if err != nil {
			return err
		}

		var emails []models.InterestEmail
		if err := db.Order("id ASC").Find(&emails).Error; err != nil {
			return fmt.Errorf("listing interest emails: %w", err)
		}
		for _, e := range emails {
			fmt.Printf("%d\t%s\t%s\n", e.ID, e.Email, e.CreatedAt.UTC().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(interestCmd)
}
