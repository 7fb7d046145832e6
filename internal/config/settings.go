package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"ClassRoutineTracker/internal/schedule"
)

// Settings is the resolved runtime configuration. Values come from viper
// defaults overridden by environment variables (MONGO_URI, ATTENDANCE_GRACE_PERIOD, ...).
type Settings struct {
	Port        string
	CORSOrigins []string
	PublicURL   string

	MongoURI      string
	MongoDatabase string

	JWTKey []byte
	JWTTTL time.Duration

	Policy schedule.Policy

	MailDriver   string
	MailFrom     string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	DispatchSpec string
	RepairSpec   string

	LogLevel       string
	LogDevelopment bool

	LiveSendBuffer int
}

// NewViper creates a viper instance reading the environment.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.public_url", "http://localhost:5173")
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "class_routine_tracker")
	v.SetDefault("jwt.key", "")
	v.SetDefault("jwt.ttl", 12*time.Hour)
	v.SetDefault("attendance.grace_period", 30*time.Minute)
	v.SetDefault("attendance.default_duration", time.Hour)
	v.SetDefault("attendance.fallback_start", "09:00")
	v.SetDefault("attendance.timezone", "Asia/Kolkata")
	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.from", "noreply@localhost")
	v.SetDefault("resend.api_key", "")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("jobs.dispatch_spec", "@every 1m")
	v.SetDefault("jobs.repair_spec", "0 2 * * *")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("live.send_buffer", 16)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadSettings validates and resolves the configuration held by v.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Port:           v.GetString("server.port"),
		CORSOrigins:    v.GetStringSlice("server.cors_origins"),
		PublicURL:      strings.TrimRight(v.GetString("server.public_url"), "/"),
		MongoURI:       v.GetString("mongo.uri"),
		MongoDatabase:  v.GetString("mongo.database"),
		JWTKey:         []byte(v.GetString("jwt.key")),
		JWTTTL:         v.GetDuration("jwt.ttl"),
		MailDriver:     strings.ToLower(v.GetString("mail.driver")),
		MailFrom:       v.GetString("mail.from"),
		ResendAPIKey:   v.GetString("resend.api_key"),
		SMTPHost:       v.GetString("smtp.host"),
		SMTPPort:       v.GetInt("smtp.port"),
		SMTPUser:       v.GetString("smtp.user"),
		SMTPPassword:   v.GetString("smtp.password"),
		DispatchSpec:   v.GetString("jobs.dispatch_spec"),
		RepairSpec:     v.GetString("jobs.repair_spec"),
		LogLevel:       v.GetString("log.level"),
		LogDevelopment: v.GetBool("log.development"),
		LiveSendBuffer: v.GetInt("live.send_buffer"),
	}
	if s.MongoURI == "" {
		return nil, errors.New("mongo.uri (MONGO_URI) not set")
	}
	if len(s.JWTKey) == 0 {
		return nil, errors.New("jwt.key (JWT_KEY) not set")
	}

	policy, err := loadPolicy(v)
	if err != nil {
		return nil, err
	}
	s.Policy = policy
	return s, nil
}

func loadPolicy(v *viper.Viper) (schedule.Policy, error) {
	p := schedule.DefaultPolicy()
	p.GracePeriod = v.GetDuration("attendance.grace_period")
	p.DefaultDuration = v.GetDuration("attendance.default_duration")
	if p.GracePeriod < 0 || p.DefaultDuration <= 0 {
		return p, errors.New("attendance.grace_period must be >= 0 and attendance.default_duration > 0")
	}

	start := schedule.ParseSlot(v.GetString("attendance.fallback_start"), p)
	if start.Fallback {
		return p, errors.Errorf("attendance.fallback_start %q is not a clock time", v.GetString("attendance.fallback_start"))
	}
	p.FallbackStart = start.Start

	loc, err := time.LoadLocation(v.GetString("attendance.timezone"))
	if err != nil {
		return p, errors.Wrap(err, "attendance.timezone")
	}
	p.Location = loc
	return p, nil
}

// NewPolicy builds the schedule policy from the settings.
func NewPolicy(s *Settings) schedule.Policy {
	return s.Policy
}
