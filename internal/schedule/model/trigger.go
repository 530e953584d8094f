package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerKind tags which TriggerCondition variant is populated.
type TriggerKind string

const (
	TriggerScheduled   TriggerKind = "scheduled"
	TriggerFileWatcher TriggerKind = "file_watcher"
	TriggerHotkey      TriggerKind = "hotkey"
	TriggerIdle        TriggerKind = "idle"
	TriggerStartup     TriggerKind = "startup"
	TriggerManual      TriggerKind = "manual"
)

// RepeatUnit is the granularity a RepeatRule advances by.
type RepeatUnit string

const (
	RepeatMinute RepeatUnit = "min"
	RepeatHour   RepeatUnit = "h"
	RepeatDay    RepeatUnit = "day"
	RepeatWeek   RepeatUnit = "week"
	RepeatMonth  RepeatUnit = "month"
)

// RepeatRule extends a Scheduled trigger beyond a single daily firing.
type RepeatRule struct {
	Unit            RepeatUnit
	Interval        int // >= 1
	MaxOccurrences  *int
	EndDate         *time.Time
}

func (r RepeatRule) Validate() error {
	if r.Interval < 1 {
		return errors.New("repeat rule: interval must be >= 1")
	}
	switch r.Unit {
	case RepeatMinute, RepeatHour, RepeatDay, RepeatWeek, RepeatMonth:
	default:
		return fmt.Errorf("repeat rule: unknown unit %q", r.Unit)
	}
	return nil
}

// Scheduled fires at a fixed time-of-day on zero or more weekdays.
type Scheduled struct {
	TimeOfDay time.Time // only hour/minute are significant
	Weekdays  map[time.Weekday]bool
	Repeat    *RepeatRule
}

// FileWatcher fires when the observed path changes (spec.md §4.8: not
// polled by the scheduler loop, driven by an external observer instead).
type FileWatcher struct {
	Path string
}

// Hotkey fires when the named chord is pressed.
type Hotkey struct {
	Chord string
}

// Idle fires after the host has been idle for Duration.
type Idle struct {
	Duration time.Duration
}

// Startup fires once, Delay after process start.
type Startup struct {
	Delay time.Duration
}

// TriggerCondition is the tagged variant of spec.md §3.
type TriggerCondition struct {
	Kind        TriggerKind
	Scheduled   *Scheduled
	FileWatcher *FileWatcher
	Hotkey      *Hotkey
	Idle        *Idle
	Startup     *Startup
}

func NewScheduledTrigger(timeOfDay time.Time, weekdays map[time.Weekday]bool, repeat *RepeatRule) TriggerCondition {
	return TriggerCondition{Kind: TriggerScheduled, Scheduled: &Scheduled{TimeOfDay: timeOfDay, Weekdays: weekdays, Repeat: repeat}}
}

func NewFileWatcherTrigger(path string) TriggerCondition {
	return TriggerCondition{Kind: TriggerFileWatcher, FileWatcher: &FileWatcher{Path: path}}
}

func NewHotkeyTrigger(chord string) TriggerCondition {
	return TriggerCondition{Kind: TriggerHotkey, Hotkey: &Hotkey{Chord: chord}}
}

func NewIdleTrigger(d time.Duration) TriggerCondition {
	return TriggerCondition{Kind: TriggerIdle, Idle: &Idle{Duration: d}}
}

func NewStartupTrigger(delay time.Duration) TriggerCondition {
	return TriggerCondition{Kind: TriggerStartup, Startup: &Startup{Delay: delay}}
}

func NewManualTrigger() TriggerCondition {
	return TriggerCondition{Kind: TriggerManual}
}

// Validate checks the populated variant's own invariants.
func (t TriggerCondition) Validate() error {
	switch t.Kind {
	case TriggerScheduled:
		if t.Scheduled == nil {
			return errors.New("trigger: scheduled variant missing payload")
		}
		if t.Scheduled.Repeat != nil {
			return t.Scheduled.Repeat.Validate()
		}
		return nil
	case TriggerFileWatcher:
		if t.FileWatcher == nil || t.FileWatcher.Path == "" {
			return errors.New("trigger: file_watcher requires a non-empty path")
		}
		return nil
	case TriggerHotkey:
		if t.Hotkey == nil || t.Hotkey.Chord == "" {
			return errors.New("trigger: hotkey requires a non-empty chord")
		}
		return nil
	case TriggerIdle:
		if t.Idle == nil || t.Idle.Duration <= 0 {
			return errors.New("trigger: idle requires a positive duration")
		}
		return nil
	case TriggerStartup:
		if t.Startup == nil || t.Startup.Delay < 0 {
			return errors.New("trigger: startup delay must be non-negative")
		}
		return nil
	case TriggerManual:
		return nil
	default:
		return fmt.Errorf("trigger: unknown kind %q", t.Kind)
	}
}

// Polled reports whether the scheduler's tick loop evaluates this trigger
// directly, as opposed to it firing via an external observer calling
// scheduler.notify (spec.md §4.8).
func (t TriggerCondition) Polled() bool {
	return t.Kind == TriggerScheduled || t.Kind == TriggerStartup
}

// cronDayOfWeekList renders the weekday set as a cron dow field; an empty
// set means "every day".
func cronDayOfWeekList(weekdays map[time.Weekday]bool) string {
	if len(weekdays) == 0 {
		return "*"
	}
	days := make([]int, 0, len(weekdays))
	for d, on := range weekdays {
		if on {
			days = append(days, int(d))
		}
	}
	if len(days) == 0 {
		return "*"
	}
	sort.Ints(days)
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, ",")
}

// NextFire computes the next fire time per spec.md §4.8's
// trigger-evaluation rules. A Scheduled trigger's next time is computed
// from `after` (a repeat catch-up may land exactly on `after`); a Startup
// trigger fires once, at processStart plus its delay, whatever `after` is.
// Only Scheduled and Startup are
// meaningfully computed here; the other variants are observer-driven and
// always report a zero time to signal "not polled".
func (t TriggerCondition) NextFire(after time.Time, processStart time.Time, lastFire *time.Time) (time.Time, error) {
	switch t.Kind {
	case TriggerStartup:
		if lastFire != nil {
			return time.Time{}, nil // fires once
		}
		return processStart.Add(t.Startup.Delay), nil
	case TriggerScheduled:
		return t.Scheduled.nextFire(after, lastFire)
	default:
		return time.Time{}, nil
	}
}

func (s *Scheduled) nextFire(after time.Time, lastFire *time.Time) (time.Time, error) {
	spec := fmt.Sprintf("%d %d * * %s", s.TimeOfDay.Minute(), s.TimeOfDay.Hour(), cronDayOfWeekList(s.Weekdays))
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: parsing cron spec %q: %w", spec, err)
	}

	if s.Repeat == nil {
		return schedule.Next(after), nil
	}

	if s.Repeat.EndDate != nil && after.After(*s.Repeat.EndDate) {
		return time.Time{}, nil
	}

	// Without a prior fire, the base cron occurrence is the first run.
	if lastFire == nil {
		return schedule.Next(after), nil
	}

	next := advanceByRepeat(*lastFire, *s.Repeat)
	if next.Before(after) {
		// Catch up: keep stepping until we're past `after`, matching the
		// "apply repeat rule" instruction rather than firing a burst of
		// missed occurrences.
		for next.Before(after) {
			next = advanceByRepeat(next, *s.Repeat)
		}
	}
	if s.Repeat.EndDate != nil && next.After(*s.Repeat.EndDate) {
		return time.Time{}, nil
	}
	return next, nil
}

func advanceByRepeat(from time.Time, r RepeatRule) time.Time {
	switch r.Unit {
	case RepeatMinute:
		return from.Add(time.Duration(r.Interval) * time.Minute)
	case RepeatHour:
		return from.Add(time.Duration(r.Interval) * time.Hour)
	case RepeatDay:
		return from.AddDate(0, 0, r.Interval)
	case RepeatWeek:
		return from.AddDate(0, 0, 7*r.Interval)
	case RepeatMonth:
		return from.AddDate(0, r.Interval, 0)
	default:
		return from.AddDate(0, 0, 1)
	}
}
