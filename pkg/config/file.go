package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kematusik/tomoscan/pkg/scan"
	"github.com/kematusik/tomoscan/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		Backend:        ptr.To(BackendSim),
		AllowOverwrite: ptr.To(false),
		ReturnToStart:  ptr.To(false),
		FrameTags:      ptr.To(scan.DefaultTagMap()),
		HistoryPath:    ptr.To("/var/lib/tomoscan/history.db"),
		// An empty cron expression means scheduled scans are off.
		ScheduleCron:       ptr.To(""),
		SchedulePreset:     ptr.To(""),
		AllowNonRootAccess: ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	Backend            *string      `json:"backend,omitempty"`
	AllowOverwrite     *bool        `json:"allowOverwrite,omitempty"`
	ReturnToStart      *bool        `json:"returnToStart,omitempty"`
	FrameTags          *scan.TagMap `json:"frameTags,omitempty"`
	HistoryPath        *string      `json:"historyPath,omitempty"`
	ScheduleCron       *string      `json:"scheduleCron,omitempty"`
	SchedulePreset     *string      `json:"schedulePreset,omitempty"`
	AllowNonRootAccess *bool        `json:"allowNonRootAccess,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		Backend:            ptr.To(c.Backend()),
		AllowOverwrite:     ptr.To(c.AllowOverwrite()),
		ReturnToStart:      ptr.To(c.ReturnToStart()),
		FrameTags:          ptr.To(c.FrameTags()),
		HistoryPath:        ptr.To(c.HistoryPath()),
		ScheduleCron:       ptr.To(c.ScheduleCron()),
		SchedulePreset:     ptr.To(c.SchedulePreset()),
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
	}

	return rawConfig, nil
}

func (f *File) Backend() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var backend string

	if f.c.Backend != nil {
		backend = *f.c.Backend
	} else {
		backend = *defaultFileConfig.Backend
	}

	return backend
}

func (f *File) AllowOverwrite() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var allowOverwrite bool

	if f.c.AllowOverwrite != nil {
		allowOverwrite = *f.c.AllowOverwrite
	} else {
		allowOverwrite = *defaultFileConfig.AllowOverwrite
	}

	return allowOverwrite
}

func (f *File) ReturnToStart() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var returnToStart bool

	if f.c.ReturnToStart != nil {
		returnToStart = *f.c.ReturnToStart
	} else {
		returnToStart = *defaultFileConfig.ReturnToStart
	}

	return returnToStart
}

func (f *File) FrameTags() scan.TagMap {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var tags scan.TagMap

	if f.c.FrameTags != nil {
		tags = *f.c.FrameTags
	} else {
		tags = *defaultFileConfig.FrameTags
	}

	return tags
}

func (f *File) HistoryPath() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var historyPath string

	if f.c.HistoryPath != nil {
		historyPath = *f.c.HistoryPath
	} else {
		historyPath = *defaultFileConfig.HistoryPath
	}

	return historyPath
}

func (f *File) ScheduleCron() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var cronExpr string

	if f.c.ScheduleCron != nil {
		cronExpr = *f.c.ScheduleCron
	} else {
		cronExpr = *defaultFileConfig.ScheduleCron
	}

	return cronExpr
}

func (f *File) SchedulePreset() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var preset string

	if f.c.SchedulePreset != nil {
		preset = *f.c.SchedulePreset
	} else {
		preset = *defaultFileConfig.SchedulePreset
	}

	return preset
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var allowNonRootAccess bool

	if f.c.AllowNonRootAccess != nil {
		allowNonRootAccess = *f.c.AllowNonRootAccess
	} else {
		allowNonRootAccess = *defaultFileConfig.AllowNonRootAccess
	}

	return allowNonRootAccess
}

func (f *File) SetBackend(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Backend = &s
}

func (f *File) SetAllowOverwrite(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowOverwrite = &b
}

func (f *File) SetReturnToStart(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.ReturnToStart = &b
}

func (f *File) SetFrameTags(t scan.TagMap) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.FrameTags = &t
}

func (f *File) SetHistoryPath(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.HistoryPath = &s
}

func (f *File) SetScheduleCron(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.ScheduleCron = &s
}

func (f *File) SetSchedulePreset(s string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.SchedulePreset = &s
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.c.AllowNonRootAccess = &b
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}
	configString := string(b)

	if strings.TrimSpace(configString) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"backend":            f.Backend(),
		"allowOverwrite":     f.AllowOverwrite(),
		"returnToStart":      f.ReturnToStart(),
		"frameTags":          f.FrameTags(),
		"historyPath":        f.HistoryPath(),
		"scheduleCron":       f.ScheduleCron(),
		"schedulePreset":     f.SchedulePreset(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
	}
}
