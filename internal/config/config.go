// Package config loads revisedeck settings from defaults, an optional YAML
// file, REVISEDECK_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/exam"
	"github.com/conorfennell/revisedeck/internal/plan"
	"github.com/conorfennell/revisedeck/internal/schedule"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// EnvPrefix namespaces environment overrides; "__" separates levels,
	// e.g. REVISEDECK_DATABASE__PATH.
	EnvPrefix = "REVISEDECK_"
	// DefaultFile is read when present and no file is named explicitly.
	DefaultFile = "revisedeck.yaml"
	dateLayout  = "2006-01-02"
)

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Review   ReviewConfig   `koanf:"review"`
	Exam     ExamConfig     `koanf:"exam"`
	Subjects []string       `koanf:"subjects" validate:"min=1,dive,required"`
	Sources  SourcesConfig  `koanf:"sources"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type ScheduleConfig struct {
	Intervals []int `koanf:"intervals" validate:"min=1,dive,gte=0"`
}

type ReviewConfig struct {
	Interleave          bool          `koanf:"interleave"`
	DailyTargetCap      int           `koanf:"daily_target_cap" validate:"gte=1"`
	DailyTargetFloor    int           `koanf:"daily_target_floor" validate:"gte=0,ltefield=DailyTargetCap"`
	HesitationThreshold time.Duration `koanf:"hesitation_threshold" validate:"gte=0"`
}

type ExamConfig struct {
	TargetDate            string `koanf:"target_date" validate:"omitempty,datetime=2006-01-02"`
	AllowOutcomeRecording bool   `koanf:"allow_outcome_recording"`
	SprintDailyCap        int    `koanf:"sprint_daily_cap" validate:"gte=0"`
	FinalSprintDays       int    `koanf:"final_sprint_days" validate:"gte=0"`
	WeakAndHighYieldDays  int    `koanf:"weak_and_high_yield_days" validate:"gtefield=FinalSprintDays"`
	HighYieldDays         int    `koanf:"high_yield_days" validate:"gtefield=WeakAndHighYieldDays"`
}

type SourcesConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// HandleTTL evicts sessions and sprints idle for longer. Zero keeps
	// them until deleted.
	HandleTTL time.Duration `koanf:"handle_ttl" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

func defaults() map[string]any {
	return map[string]any{
		"database.path":                 "revisedeck.db",
		"schedule.intervals":            schedule.DefaultIntervals,
		"review.interleave":             true,
		"review.daily_target_cap":       plan.DefaultTargetBounds.Ceiling,
		"review.daily_target_floor":     plan.DefaultTargetBounds.Floor,
		"review.hesitation_threshold":   "0s",
		"exam.target_date":              "",
		"exam.allow_outcome_recording":  true,
		"exam.sprint_daily_cap":         0,
		"exam.final_sprint_days":        plan.DefaultThresholds.FinalSprint,
		"exam.weak_and_high_yield_days": plan.DefaultThresholds.WeakAndHighYield,
		"exam.high_yield_days":          plan.DefaultThresholds.HighYield,
		"subjects":                      domain.DefaultSubjects,
		"sources.repos_dir":             "repos",
		"server.addr":                   ":8080",
		"server.handle_ttl":             "2h",
		"log.level":                     "info",
		"log.format":                    "text",
	}
}

// RegisterFlags adds the global flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file (default "+DefaultFile+" if present)")
	fs.String("db", "", "Path to the SQLite database file")
	fs.Bool("debug", false, "Enable debug logging")
	fs.String("log-format", "", "Log format: text or json")
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"db":         "database.path",
	"log-format": "log.format",
	"addr":       "server.addr",
	"interleave": "review.interleave",
	"daily-cap":  "exam.sprint_daily_cap",
}

// Load builds the configuration. fs may be nil. The config file is taken
// from the --config flag; a missing explicit file is an error, a missing
// default file is not.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path, explicit := DefaultFile, false
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			path, explicit = f.Value.String(), true
		}
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("%w: config file %s: %v", domain.ErrInvalidConfiguration, path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey(fs)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns REVISEDECK_REVIEW__DAILY_TARGET_CAP into review.daily_target_cap.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if f.Name == "debug" {
			if f.Changed && f.Value.String() == "true" {
				return "log.level", "debug"
			}
			return "", nil
		}
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct constraints and the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy builds the scheduling policy from schedule.intervals.
func (c *Config) Policy() (*schedule.Policy, error) {
	return schedule.NewPolicy(c.Schedule.Intervals)
}

// SubjectSet returns the closed subject set.
func (c *Config) SubjectSet() domain.SubjectSet {
	return domain.NewSubjectSet(c.Subjects)
}

// Thresholds returns the exam phase thresholds.
func (c *Config) Thresholds() plan.Thresholds {
	return plan.Thresholds{
		FinalSprint:      c.Exam.FinalSprintDays,
		WeakAndHighYield: c.Exam.WeakAndHighYieldDays,
		HighYield:        c.Exam.HighYieldDays,
	}
}

// TargetBounds returns the daily target clamp.
func (c *Config) TargetBounds() plan.TargetBounds {
	return plan.TargetBounds{Ceiling: c.Review.DailyTargetCap, Floor: c.Review.DailyTargetFloor}
}

// TargetDate parses exam.target_date in loc. ok is false when unset.
func (c *Config) TargetDate(loc *time.Location) (t time.Time, ok bool, err error) {
	if c.Exam.TargetDate == "" {
		return time.Time{}, false, nil
	}
	t, err = time.ParseInLocation(dateLayout, c.Exam.TargetDate, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: exam.target_date: %v", domain.ErrInvalidConfiguration, err)
	}
	return t, true, nil
}

// Phase returns the exam phase for now: explicit when override is set,
// otherwise derived from the target date, Normal without one.
func (c *Config) Phase(now time.Time, override string) (exam.Phase, error) {
	if override != "" {
		return exam.ParsePhase(override)
	}
	target, ok, err := c.TargetDate(now.Location())
	if err != nil || !ok {
		return exam.Normal, err
	}
	return plan.PhaseForDeadline(now, target, c.Thresholds()), nil
}
