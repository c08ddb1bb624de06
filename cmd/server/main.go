package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frootex/backend/internal/audit"
	auditrepo "frootex/backend/internal/audit/repository"
	"frootex/backend/internal/authflow"
	"frootex/backend/internal/blobstore"
	"frootex/backend/internal/config"
	"frootex/backend/internal/db"
	"frootex/backend/internal/devotp"
	"frootex/backend/internal/docstore"
	identitylocal "frootex/backend/internal/identity/local"
	identityrepo "frootex/backend/internal/identity/repository"
	"frootex/backend/internal/mfa"
	"frootex/backend/internal/mfa/sms"
	"frootex/backend/internal/profile"
	"frootex/backend/internal/realtime"
	"frootex/backend/internal/routing"
	"frootex/backend/internal/security"
	"frootex/backend/internal/server"
	"frootex/backend/internal/session"
	"frootex/backend/internal/telemetry/otel"
	"frootex/backend/internal/verifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	telem, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "frootex-backend", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telem.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	priv, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	var devStore devotp.Store
	var sender sms.Sender
	if cfg.OTPReturnToClient {
		devStore = devotp.NewMemoryStore()
		log.Println("dev OTP mode: codes are not sent over SMS, fetch them from GET /dev/otp")
	} else {
		sender = sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
	}

	provider := identitylocal.NewProvider(
		identityrepo.NewPostgresRepository(conn),
		hasher,
		mfa.NewMemoryStore(),
		sender,
		identitylocal.Options{OTPTTL: cfg.OTPChallengeTTL(), DevOTPStore: devStore},
	)

	profiles := profile.NewStore(docstore.NewPostgresStore(conn))

	routes, err := routing.NewEngine()
	if err != nil {
		log.Fatalf("routing policy: %v", err)
	}

	captchaTokens := verifier.NewTokenBag()
	var widgets *verifier.Factory
	if cfg.CaptchaSecret != "" {
		captcha := verifier.NewCaptchaClient(cfg.CaptchaSecret, cfg.CaptchaVerifyURL)
		widgets = verifier.NewFactory(func(owner string) verifier.Widget {
			return verifier.NewCaptchaWidget(captcha, func() string { return captchaTokens.Take(owner) })
		})
	} else {
		if cfg.Env == "production" {
			log.Fatal("CAPTCHA_SECRET is required when APP_ENV=production")
		}
		widgets = verifier.NewFactory(func(string) verifier.Widget { return verifier.PassthroughWidget{} })
	}

	flows := authflow.NewRegistry(func(id string) *authflow.Controller {
		return authflow.NewController(id, provider, profiles, routes, widgets, authflow.Options{
			CountryCode:     cfg.PhoneCountryCode,
			CooldownSeconds: cfg.OTPResendCooldownSeconds,
		})
	}, authflow.DefaultFlowTTL)
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for range t.C {
			flows.Sweep()
		}
	}()

	tracker := session.NewTracker(provider)
	defer tracker.Close()

	blobs, err := blobstore.NewDiskStore(cfg.BlobDir, cfg.BlobBaseURL)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	srv := server.New(server.Deps{
		Config:        cfg,
		Provider:      provider,
		Flows:         flows,
		Tracker:       tracker,
		Profiles:      profiles,
		Routes:        routes,
		Tokens:        tokens,
		Audit:         audit.NewLogger(auditrepo.NewPostgresRepository(conn), server.ClientIPFromContext),
		Hub:           realtime.NewHub(),
		CaptchaTokens: captchaTokens,
		Blobs:         blobs,
		StaticRoot:    blobs.Root(),
		DevOTP:        devStore,
		DB:            conn,
	})
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
