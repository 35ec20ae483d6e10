package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"teamkiosk/internal/attendance"
	"teamkiosk/internal/auth"
	"teamkiosk/internal/awards"
	"teamkiosk/internal/bridge"
	"teamkiosk/internal/config"
	"teamkiosk/internal/httpmiddleware"
	"teamkiosk/internal/kiosk"
	"teamkiosk/internal/metrics"
	"teamkiosk/internal/nfctag"
	"teamkiosk/internal/queue"
	"teamkiosk/internal/roster"
	"teamkiosk/internal/schedule"
	"teamkiosk/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		if db == nil {
			// No connection object at all; nothing downstream can work.
			return err
		}
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "kiosk:events")
	}

	repo := roster.NewRepository(db.Client)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Printf("warning: schema init failed: %v", err)
	}

	svc := kiosk.NewService(repo, cfg.Grace(), cfg.Location())
	boardCache := awards.NewCache(redisClient.Client, cfg.SnapshotTTL)
	signer := nfctag.NewSigner(cfg.NFCSecret)
	ctx := context.Background()

	recordScan := func(ctx context.Context, studentID string) error {
		action, err := svc.Toggle(ctx, studentID, time.Now())
		if err != nil {
			return err
		}
		metrics.SignEvents.WithLabelValues(string(action)).Inc()
		if err := q.Publish(ctx, queue.Message{Type: queue.TypeEventAppended, Body: []byte(studentID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
		return nil
	}
	hub := bridge.NewHub(signer, recordScan)

	// Rebuilds the full pipeline once, with timing.
	buildReport := func(ctx context.Context, now time.Time) (kiosk.Report, error) {
		started := time.Now()
		rep, err := svc.BuildReport(ctx, now)
		if err == nil {
			metrics.ReportDuration.Observe(time.Since(started).Seconds())
		}
		return rep, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware("/ws", "/healthz", "/metrics"))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/kiosks/register", func(c *gin.Context) {
		var req struct {
			KioskID string `json:"kiosk_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tokens, err := auth.Issue(req.KioskID, auth.RoleKiosk, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	r.POST("/v1/admin/login", func(c *gin.Context) {
		var req struct {
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !auth.CheckPassword(cfg.AdminPassHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		tokens, err := auth.Issue("admin", auth.RoleAdmin, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	// Websocket endpoint for the NFC bridge process and kiosk displays.
	// Browsers cannot set headers on websocket dials, so the token rides a
	// query parameter.
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	r.GET("/ws", func(c *gin.Context) {
		if _, err := auth.Parse(c.Query("token"), cfg.JWTSigningKey, cfg.JWTIssuer); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		go hub.Serve(ctx, conn, c.Query("role"))
	})

	kioskGroup := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer, ""))

	kioskGroup.GET("/roster", func(c *gin.Context) {
		students, err := repo.ListStudents(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		signedIn, err := svc.SignedInNow(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		present := make(map[string]bool, len(signedIn))
		for _, id := range signedIn {
			present[id] = true
		}
		type rosterRow struct {
			roster.Student
			SignedIn bool `json:"signed_in"`
		}
		rows := make([]rosterRow, 0, len(students))
		for _, s := range students {
			rows = append(rows, rosterRow{Student: s, SignedIn: present[s.ID]})
		}
		c.JSON(http.StatusOK, gin.H{"students": rows})
	})

	kioskGroup.POST("/toggle", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		action, err := svc.Toggle(c.Request.Context(), req.StudentID, time.Now())
		if err != nil {
			if err == roster.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		metrics.SignEvents.WithLabelValues(string(action)).Inc()
		if err := q.Publish(ctx, queue.Message{Type: queue.TypeEventAppended, Body: []byte(req.StudentID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
		c.JSON(http.StatusAccepted, gin.H{"student_id": req.StudentID, "action": action})
	})

	kioskGroup.POST("/scan", func(c *gin.Context) {
		var req struct {
			Payload string `json:"payload" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		studentID, err := signer.Verify(req.Payload)
		if err != nil {
			metrics.ScanRejected.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag"})
			return
		}
		if err := recordScan(c.Request.Context(), studentID); err != nil {
			if err == roster.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"student_id": studentID})
	})

	kioskGroup.GET("/leaderboards", func(c *gin.Context) {
		if snap, ok := boardCache.Get(c.Request.Context()); ok {
			metrics.SnapshotHits.WithLabelValues("hit").Inc()
			c.JSON(http.StatusOK, snap)
			return
		}
		metrics.SnapshotHits.WithLabelValues("miss").Inc()
		now := time.Now()
		rep, err := buildReport(c.Request.Context(), now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		snap := awards.BuildSnapshot(svc.Engine(rep), cfg.LeaderboardLimit, now)
		if err := boardCache.Set(c.Request.Context(), snap); err != nil {
			log.Printf("snapshot cache write failed: %v", err)
		}
		c.JSON(http.StatusOK, snap)
	})

	kioskGroup.GET("/students/:id/standing", func(c *gin.Context) {
		studentID := c.Param("id")
		if _, err := repo.GetStudent(c.Request.Context(), studentID); err != nil {
			if err == roster.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		rep, err := buildReport(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		engine := svc.Engine(rep)
		c.JSON(http.StatusOK, gin.H{
			"student_id": studentID,
			"streak":     engine.StudentStanding(awards.MetricStreak, studentID),
			"score":      engine.StudentStanding(awards.MetricScore, studentID),
			"time":       engine.StudentStanding(awards.MetricTime, studentID),
		})
	})

	adminGroup := r.Group("/v1/admin", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin))

	adminGroup.POST("/students", func(c *gin.Context) {
		var req struct {
			ID   string `json:"id" binding:"required"`
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := repo.UpsertStudent(c.Request.Context(), req.ID, req.Name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": req.ID, "name": req.Name})
	})

	adminGroup.DELETE("/students/:id", func(c *gin.Context) {
		if err := repo.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
			if err == roster.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	adminGroup.GET("/windows", func(c *gin.Context) {
		rules, err := repo.ListRules(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"windows": rules})
	})

	adminGroup.POST("/windows", func(c *gin.Context) {
		var rule schedule.Rule
		if err := c.ShouldBindJSON(&rule); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		created, err := repo.InsertRule(c.Request.Context(), rule)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	adminGroup.DELETE("/windows/:id", func(c *gin.Context) {
		if err := repo.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
			if err == roster.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "window not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	// Returns the signed payload to program onto a student's tag, for admins
	// writing tags without the hardware bridge attached.
	adminGroup.POST("/tags", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := repo.GetStudent(c.Request.Context(), req.StudentID); err != nil {
			if err == roster.ErrNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"payload": signer.Payload(req.StudentID)})
	})

	// Raw event history for admin review. The log itself stays append-only.
	adminGroup.GET("/events", func(c *gin.Context) {
		events, err := repo.ListEventsAscending(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		type eventRow struct {
			StudentID string            `json:"student_id"`
			At        time.Time         `json:"at"`
			Action    attendance.Action `json:"action"`
		}
		rows := make([]eventRow, 0, len(events))
		for _, evt := range events {
			rows = append(rows, eventRow{StudentID: evt.StudentID, At: evt.At, Action: evt.Action})
		}
		c.JSON(http.StatusOK, gin.H{"events": rows})
	})

	r.StaticFile("/", "web/index.html")
	r.Static("/static", "web/static")

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
