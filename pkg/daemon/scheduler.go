package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	leadDuration       = time.Minute * 5 // leadDuration is the duration before the scheduled time to announce the upcoming scan.
	readyCheckMaxTimes = 30
	readyCheckInterval = time.Second * 10
)

type NotifyFunc func(data any)

// ScanFunc launches or gates a scheduled scan.
type ScanFunc func() error

// Scheduler fires recurring scans from a cron expression. One schedule
// is active at a time; the next occurrence can be postponed or skipped
// without touching the expression.
type Scheduler struct {
	OnUpcoming NotifyFunc // called before a scheduled scan starts
	OnError    NotifyFunc // called when a scheduled scan cannot start
	StartScan  ScanFunc   // launches the scan
	ReadyCheck ScanFunc   // instrument readiness check, run before launching

	parser cron.Parser

	schedule cron.Schedule
	nextRun  time.Time

	mu      sync.Mutex
	running bool

	controlCh chan controlMsg
	stopCh    chan struct{}
}

// internal control kinds (not user visible events)
type controlKind int

const (
	ctrlRecalculate controlKind = iota // timer needs recalculation due to schedule change
	ctrlPostpone                       // next scan postponed
	ctrlSkip                           // next scan skipped
)

type controlMsg struct {
	kind controlKind
	data any
}

func NewScheduler(startScan, readyCheck ScanFunc, onUpcoming, onError NotifyFunc) *Scheduler {
	if startScan == nil {
		panic("scan function cannot be nil")
	}

	s := &Scheduler{
		OnUpcoming: onUpcoming,
		OnError:    onError,
		StartScan:  startScan,
		ReadyCheck: readyCheck,
		parser:     cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh:  make(chan controlMsg, 4),
		stopCh:     make(chan struct{}),
	}
	return s
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh: // already closed
	default:
		close(s.stopCh)
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.loop()
}

// Schedule arms the scheduler with a cron expression, replacing any
// previous one.
func (s *Scheduler) Schedule(cronExpr string) error {
	sh, err := s.parser.Parse(cronExpr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	running := s.running
	if !running {
		s.schedule = sh
		s.nextRun = sh.Next(time.Now())
	}
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlRecalculate, sh)
	}
	return nil
}

// Disable clears the schedule. The scheduler keeps running and can be
// re-armed with Schedule.
func (s *Scheduler) Disable() {
	s.mu.Lock()
	running := s.running
	if !running {
		s.schedule = nil
		s.nextRun = time.Time{}
	}
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlRecalculate, nil)
	}
}

// Postpone delays the next scheduled scan by the given duration. The
// delayed time must still land before the occurrence after it.
func (s *Scheduler) Postpone(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("postpone duration must be positive")
	}

	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() {
		s.mu.Unlock()
		return fmt.Errorf("no active schedule to postpone")
	}
	orig := s.nextRun
	next := s.schedule.Next(orig).Truncate(time.Second)
	running := s.running
	s.mu.Unlock()

	if !running {
		return fmt.Errorf("no active schedule to postpone")
	}

	pp := orig.Add(d).Truncate(time.Second)
	if pp.Compare(next) >= 0 {
		return fmt.Errorf("postpone duration too long")
	}

	s.trySendControl(ctrlPostpone, pp)
	return nil
}

// Skip drops the next scheduled scan and moves on to the one after it.
func (s *Scheduler) Skip() error {
	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() {
		s.mu.Unlock()
		return fmt.Errorf("no active schedule to skip")
	}
	next := s.schedule.Next(s.nextRun)
	if !s.running {
		s.nextRun = next
		s.mu.Unlock()
		return nil
	}
	s.nextRun = next
	s.mu.Unlock()
	s.trySendControl(ctrlSkip, nil)
	return nil
}

func (s *Scheduler) Status() (nextRun time.Time, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextRun = s.nextRun
	running = s.running
	return
}

// loop waits out each occurrence in two stages: an announcement at
// leadDuration before the scan, then the scan itself, gated by the
// readiness check with bounded retries.
func (s *Scheduler) loop() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.Debug("scan scheduler stopped")
	}()

	logrus.Debug("scan scheduler started")

	for {
		leading := true

		attempts := 0
		var readyErr error

		schedule, nextRun := s.snapshot()
		var timer *time.Timer
		if schedule == nil || nextRun.IsZero() {
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(nextRun) - leadDuration
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		for {
			select {
			case <-timer.C:
				if schedule == nil || nextRun.IsZero() {
					break
				}

				if leading {
					logrus.Debugf("upcoming scheduled scan at %s", nextRun.Format(time.DateTime))
					leading = false
					runWait := time.Until(nextRun)
					if runWait < 0 {
						runWait = 0
					}
					timer.Reset(runWait)
					s.sendNotify(nextRun)
					continue
				}

				logrus.Debugf("starting scheduled scan at %s", nextRun.Format(time.DateTime))

				if s.ReadyCheck != nil {
					if err := s.ReadyCheck(); err != nil {
						if readyErr == nil || err.Error() != readyErr.Error() {
							readyErr = err
							s.sendError(fmt.Errorf("instrument not ready: %v", err))
						}

						attempts++
						if attempts <= readyCheckMaxTimes {
							logrus.Debugf("instrument not ready (%d/%d): %v; retrying in %s", attempts, readyCheckMaxTimes, err, readyCheckInterval)
							timer.Reset(readyCheckInterval)
							continue
						}

						timer.Stop()
						s.advanceNextRun()
						break
					}
				}

				timer.Stop()

				go func() {
					if err := s.StartScan(); err != nil {
						s.sendError(fmt.Errorf("scheduled scan failed to start: %v", err))
					}
				}()
				s.advanceNextRun()
			case <-s.stopCh:
				timer.Stop()
				s.mu.Lock()
				s.running = false
				s.mu.Unlock()
				return
			case msg := <-s.controlCh: // internal control messages
				logrus.WithFields(logrus.Fields{
					"kind": msg.kind,
					"data": msg.data,
				}).Debug("received control msg")

				switch msg.kind {
				case ctrlRecalculate:
					timer.Stop()
					sh, _ := msg.data.(cron.Schedule)
					s.mu.Lock()
					s.schedule = sh
					if sh == nil {
						s.nextRun = time.Time{}
					} else {
						s.nextRun = sh.Next(time.Now())
					}
					s.mu.Unlock()
				case ctrlPostpone: // only delays the current occurrence
					pp := msg.data.(time.Time)
					timer.Reset(time.Until(pp))
					continue
				case ctrlSkip:
					timer.Stop()
				}
			}

			break
		}
	}
}

func (s *Scheduler) snapshot() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

func (s *Scheduler) advanceNextRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return
	}
	s.nextRun = s.schedule.Next(s.nextRun)
}

func (s *Scheduler) sendNotify(runAt time.Time) {
	if s.OnUpcoming == nil {
		return
	}

	go s.OnUpcoming(runAt)
}

func (s *Scheduler) sendError(err error) {
	if s.OnError == nil {
		return
	}

	go s.OnError(err)
}

func (s *Scheduler) trySendControl(kind controlKind, data any) {
	select {
	case s.controlCh <- controlMsg{kind: kind, data: data}:
	default:
	}
}
