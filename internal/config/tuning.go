package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DialerTuning holds the operator-tunable constants of the dialing loop.
type DialerTuning struct {
	// LocalConcurrency caps concurrent call attempts within one campaign run.
	LocalConcurrency int `yaml:"local_concurrency" validate:"gte=1,lte=1000"`
	// FallbackSlots is used when the provider concurrency endpoint is unavailable.
	FallbackSlots int `yaml:"fallback_slots" validate:"gte=1,lte=1000"`

	SlotWait   time.Duration `yaml:"slot_wait" validate:"min=1ms"`
	PausePoll  time.Duration `yaml:"pause_poll" validate:"min=1ms"`
	BatchDelay time.Duration `yaml:"batch_delay" validate:"min=0s"`

	CallRetries     int           `yaml:"call_retries" validate:"gte=0,lte=10"`
	RetryBase       time.Duration `yaml:"retry_base" validate:"min=1ms"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" validate:"min=1ms"`

	AnalyzeConcurrency int `yaml:"analyze_concurrency" validate:"gte=1,lte=100"`

	LeaseTTL time.Duration `yaml:"lease_ttl" validate:"min=1s"`
	// AccountInflightCap limits concurrent calls per account across processes; 0 disables it.
	AccountInflightCap int `yaml:"account_inflight_cap" validate:"gte=0"`
}

// DefaultTuning returns the production defaults.
func DefaultTuning() DialerTuning {
	return DialerTuning{
		LocalConcurrency:   25,
		FallbackSlots:      10,
		SlotWait:           5 * time.Second,
		PausePoll:          5 * time.Second,
		BatchDelay:         2 * time.Second,
		CallRetries:        3,
		RetryBase:          time.Second,
		ProviderTimeout:    10 * time.Second,
		AnalyzeConcurrency: 5,
		LeaseTTL:           2 * time.Minute,
	}
}

var tuningValidator = validator.New()

// Validate reports out-of-range tuning values.
func (t DialerTuning) Validate() error {
	if err := tuningValidator.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("dialer tuning invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("dialer tuning invalid: %w", err)
	}
	return nil
}

// TuningSource yields the tuning in effect right now.
type TuningSource interface {
	Current() DialerTuning
}

// StaticTuning is a TuningSource that never changes.
type StaticTuning DialerTuning

func (s StaticTuning) Current() DialerTuning { return DialerTuning(s) }

func tuningFromEnv(base DialerTuning) (DialerTuning, []error) {
	var errs []error
	out := base

	ints := []struct {
		key string
		dst *int
	}{
		{"DIALER_LOCAL_CONCURRENCY", &out.LocalConcurrency},
		{"DIALER_FALLBACK_SLOTS", &out.FallbackSlots},
		{"DIALER_CALL_RETRIES", &out.CallRetries},
		{"DIALER_ANALYZE_CONCURRENCY", &out.AnalyzeConcurrency},
		{"ACCOUNT_INFLIGHT_CAP", &out.AccountInflightCap},
	}
	for _, f := range ints {
		v := strings.TrimSpace(os.Getenv(f.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be an integer, got %q", f.key, v))
			continue
		}
		*f.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DIALER_SLOT_WAIT", &out.SlotWait},
		{"DIALER_PAUSE_POLL", &out.PausePoll},
		{"DIALER_BATCH_DELAY", &out.BatchDelay},
		{"DIALER_RETRY_BASE", &out.RetryBase},
		{"DIALER_PROVIDER_TIMEOUT", &out.ProviderTimeout},
		{"DIALER_LEASE_TTL", &out.LeaseTTL},
	}
	for _, f := range durations {
		v := strings.TrimSpace(os.Getenv(f.key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be a duration, got %q", f.key, v))
			continue
		}
		*f.dst = d
	}
	return out, errs
}

// LoadTuningFile overlays the YAML file at path onto base and validates the result.
// Keys absent from the file keep their base values.
func LoadTuningFile(path string, base DialerTuning) (DialerTuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DialerTuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	out := base
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return DialerTuning{}, fmt.Errorf("parse tuning file: %w", err)
	}
	if err := out.Validate(); err != nil {
		return DialerTuning{}, err
	}
	return out, nil
}

// TuningWatcher serves tuning loaded from a YAML file and reloads it when the file changes.
// A file that fails to parse or validate is ignored; the last good tuning stays in effect.
type TuningWatcher struct {
	path string
	base DialerTuning
	log  *slog.Logger
	cur  atomic.Pointer[DialerTuning]
}

// NewTuningWatcher performs the initial load. base supplies values the file omits.
func NewTuningWatcher(path string, base DialerTuning, log *slog.Logger) (*TuningWatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	t, err := LoadTuningFile(path, base)
	if err != nil {
		return nil, err
	}
	w := &TuningWatcher{path: path, base: base, log: log}
	w.cur.Store(&t)
	return w, nil
}

func (w *TuningWatcher) Current() DialerTuning { return *w.cur.Load() }

// Reload re-reads the file once.
func (w *TuningWatcher) Reload() error {
	t, err := LoadTuningFile(w.path, w.base)
	if err != nil {
		return err
	}
	w.cur.Store(&t)
	return nil
}

// Run watches the file's directory until ctx is done.
// The directory is watched so that editors replacing the file via rename are observed.
func (w *TuningWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tuning watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("tuning watcher: %w", err)
	}
	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := w.Reload(); err != nil {
				w.log.Warn("tuning reload rejected", "path", w.path, "err", err)
				continue
			}
			w.log.Info("tuning reloaded", "path", w.path, "tuning", fmt.Sprintf("%+v", w.Current()))
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("tuning watcher error", "err", err)
		}
	}
}
