package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "frootex-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "frootex-auth")
	}
	if cfg.JWTAudience != "frootex-web" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "frootex-web")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.PhoneCountryCode != "+91" {
		t.Errorf("PhoneCountryCode = %q, want %q", cfg.PhoneCountryCode, "+91")
	}
	if cfg.OTPResendCooldownSeconds != 60 {
		t.Errorf("OTPResendCooldownSeconds = %d, want 60", cfg.OTPResendCooldownSeconds)
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if cfg.SessionTTL() != 720*time.Hour {
		t.Errorf("SessionTTL = %v, want 720h", cfg.SessionTTL())
	}
	if cfg.OTPChallengeTTL() != 10*time.Minute {
		t.Errorf("OTPChallengeTTL = %v, want 10m", cfg.OTPChallengeTTL())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("PHONE_COUNTRY_CODE", "+1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.PhoneCountryCode != "+1" {
		t.Errorf("PhoneCountryCode = %q, want %q", cfg.PhoneCountryCode, "+1")
	}
}

func TestLoad_RejectsDevOTPInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject OTP_RETURN_TO_CLIENT in production")
	}
}

func TestLoad_RejectsBadCountryCode(t *testing.T) {
	os.Clearenv()
	os.Setenv("PHONE_COUNTRY_CODE", "91")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a country code without +")
	}
}

func TestLoad_RejectsBadBcryptCost(t *testing.T) {
	os.Clearenv()
	os.Setenv("BCRYPT_COST", "99")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject out-of-range BCRYPT_COST")
	}
}

func TestAllowedOriginsList(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: "http://a.test, http://b.test ,"}
	got := cfg.AllowedOriginsList()
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("AllowedOriginsList = %v", got)
	}
}
