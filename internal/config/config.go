// Package config loads and validates the Safe Warner engine configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the engine configuration.
const (
	DefaultCameraIndex        = 0
	DefaultFPS                = 5
	DefaultFrameTimeoutMs     = 500
	DefaultMaxFrameFailures   = 30
	DefaultEyeBreakPeriodS    = 1200 // 20 minutes, per the 20-20-20 rule
	DefaultBlinkPeriodS       = 300
	DefaultSafeDistanceCm     = 50.0
	DefaultCalibrationCm      = 4.0
	DefaultConfirmationFrames = 15
	DefaultHysteresisFrames   = 5
	DefaultExercisePhaseS     = 15
	DefaultNotifyCooldownS    = 30
	DefaultListenAddr         = ":8080"
	DefaultRetryMaxAttempts   = 5
	DefaultRetryInitialDelayS = 1
	DefaultRetryMaxDelayS     = 30
	DefaultPostureTiltDegrees = 15.0
	DefaultEarThreshold       = 0.20
	DefaultBlinkWindowS       = 10
)

// Retry controls the exponential backoff used when monitoring restarts
// after a camera failure.
type Retry struct {
	// MaxAttempts is the number of automatic restarts before the engine
	// gives up and waits for an explicit RestartMonitoring command.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelayS is the first backoff delay in seconds; each subsequent
	// attempt doubles it.
	InitialDelayS int `yaml:"initial_delay_s"`

	// MaxDelayS caps the backoff delay in seconds.
	MaxDelayS int `yaml:"max_delay_s"`
}

// Config holds all engine settings parsed from the yaml config file.
// It is read-only after Load; hot reloads produce a fresh Config.
type Config struct {
	// CameraIndex is the OS device index passed to the capture layer.
	CameraIndex int `yaml:"camera_index"`

	// FPS is the monitoring frame rate.
	FPS int `yaml:"fps"`

	// FrameTimeoutMs bounds the per-frame wait in the supervisor loop.
	FrameTimeoutMs int `yaml:"frame_timeout_ms"`

	// MaxFrameFailures is the number of consecutive failed reads before
	// the source escalates to a camera-lost condition.
	MaxFrameFailures int `yaml:"max_frame_failures"`

	// EyeBreakPeriodS is the 20-20-20 reminder period in seconds.
	EyeBreakPeriodS int `yaml:"eye_break_period_s"`

	// BlinkPeriodS is the blink reminder period in seconds.
	BlinkPeriodS int `yaml:"blink_period_s"`

	// SafeDistanceCm is the minimum comfortable viewing distance.
	SafeDistanceCm float64 `yaml:"safe_distance_cm"`

	// CalibrationCm converts normalized interocular span to centimeters.
	// Tunable per camera; there is no universal derivation.
	CalibrationCm float64 `yaml:"calibration_cm"`

	// ConfirmationWindowFrames is how many consecutive safe verdicts are
	// needed before monitoring suspends the camera.
	ConfirmationWindowFrames int `yaml:"confirmation_window_frames"`

	// HysteresisFrames is how many consecutive contrary observations are
	// needed before the safe verdict flips.
	HysteresisFrames int `yaml:"hysteresis_frames"`

	// RecheckIntervalS re-enters calibration this long after a safe
	// confirmation. 0 disables periodic re-checks.
	RecheckIntervalS int `yaml:"recheck_interval_s"`

	// ExercisePhaseS is the duration of each eye exercise phase.
	ExercisePhaseS int `yaml:"exercise_phase_s"`

	// NotifyCooldownS suppresses repeat notifications of the same kind.
	NotifyCooldownS int `yaml:"notify_cooldown_s"`

	// PostureTiltDegrees is the head tilt angle that triggers an alert.
	PostureTiltDegrees float64 `yaml:"posture_tilt_degrees"`

	// EarThreshold is the eye aspect ratio below which a blink is counted.
	EarThreshold float64 `yaml:"ear_threshold"`

	// BlinkWindowS is the sliding window for blink rate measurement.
	BlinkWindowS int `yaml:"blink_window_s"`

	// NotifierCommand is the external notifier executable. Empty disables
	// exec-based notification delivery.
	NotifierCommand string `yaml:"notifier_command"`

	// ListenAddr is the status server address.
	ListenAddr string `yaml:"listen_addr"`

	// DBPath is the sqlite database path. Empty uses ~/.safewarner/safewarner.db.
	DBPath string `yaml:"db_path"`

	// Retry controls monitoring restart backoff.
	Retry Retry `yaml:"retry"`
}

// EyeBreakPeriod returns the eye break period as a duration.
func (c *Config) EyeBreakPeriod() time.Duration {
	return time.Duration(c.EyeBreakPeriodS) * time.Second
}

// BlinkPeriod returns the blink reminder period as a duration.
func (c *Config) BlinkPeriod() time.Duration {
	return time.Duration(c.BlinkPeriodS) * time.Second
}

// FrameTimeout returns the per-frame wait bound as a duration.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.FrameTimeoutMs) * time.Millisecond
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation. A missing file yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		CameraIndex:              DefaultCameraIndex,
		FPS:                      DefaultFPS,
		FrameTimeoutMs:           DefaultFrameTimeoutMs,
		MaxFrameFailures:         DefaultMaxFrameFailures,
		EyeBreakPeriodS:          DefaultEyeBreakPeriodS,
		BlinkPeriodS:             DefaultBlinkPeriodS,
		SafeDistanceCm:           DefaultSafeDistanceCm,
		CalibrationCm:            DefaultCalibrationCm,
		ConfirmationWindowFrames: DefaultConfirmationFrames,
		HysteresisFrames:         DefaultHysteresisFrames,
		ExercisePhaseS:           DefaultExercisePhaseS,
		NotifyCooldownS:          DefaultNotifyCooldownS,
		PostureTiltDegrees:       DefaultPostureTiltDegrees,
		EarThreshold:             DefaultEarThreshold,
		BlinkWindowS:             DefaultBlinkWindowS,
		ListenAddr:               DefaultListenAddr,
		Retry: Retry{
			MaxAttempts:   DefaultRetryMaxAttempts,
			InitialDelayS: DefaultRetryInitialDelayS,
			MaxDelayS:     DefaultRetryMaxDelayS,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
// The engine must not start with an invalid config.
func validate(cfg *Config) error {
	if cfg.CameraIndex < 0 {
		return fmt.Errorf("camera_index must not be negative")
	}
	if cfg.FPS <= 0 {
		return fmt.Errorf("fps must be positive")
	}
	if cfg.FrameTimeoutMs <= 0 {
		return fmt.Errorf("frame_timeout_ms must be positive")
	}
	if cfg.MaxFrameFailures <= 0 {
		return fmt.Errorf("max_frame_failures must be positive")
	}
	if cfg.EyeBreakPeriodS <= 0 {
		return fmt.Errorf("eye_break_period_s must be positive")
	}
	if cfg.BlinkPeriodS <= 0 {
		return fmt.Errorf("blink_period_s must be positive")
	}
	if cfg.SafeDistanceCm <= 0 {
		return fmt.Errorf("safe_distance_cm must be positive")
	}
	if cfg.CalibrationCm <= 0 {
		return fmt.Errorf("calibration_cm must be positive")
	}
	if cfg.ConfirmationWindowFrames <= 0 {
		return fmt.Errorf("confirmation_window_frames must be positive")
	}
	if cfg.HysteresisFrames <= 0 {
		return fmt.Errorf("hysteresis_frames must be positive")
	}
	if cfg.RecheckIntervalS < 0 {
		return fmt.Errorf("recheck_interval_s must not be negative")
	}
	if cfg.ExercisePhaseS <= 0 {
		return fmt.Errorf("exercise_phase_s must be positive")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive")
	}
	if cfg.Retry.InitialDelayS <= 0 {
		return fmt.Errorf("retry.initial_delay_s must be positive")
	}
	if cfg.Retry.MaxDelayS < cfg.Retry.InitialDelayS {
		return fmt.Errorf("retry.max_delay_s must be >= retry.initial_delay_s")
	}
	return nil
}
