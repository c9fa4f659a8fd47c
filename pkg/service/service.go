package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fpga-tools/regaccess-go/pkg/access"
	"github.com/fpga-tools/regaccess-go/pkg/log"
	"github.com/fpga-tools/regaccess-go/pkg/regmap"
	"github.com/fpga-tools/regaccess-go/pkg/transport"
)

var (
	// ErrAmbiguousPath is returned when a bare register name matches
	// more than one register.
	ErrAmbiguousPath = errors.New("ambiguous register path")

	// ErrNotStarted is returned when querying a service before Start.
	ErrNotStarted = errors.New("service not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("service already started")
)

// Service owns one register access session: map, engine, poller and
// transport, started and stopped as a unit.
type Service struct {
	mu sync.Mutex

	config    Config
	sessionID string

	tr     transport.Transport
	rmap   *regmap.Map
	engine *access.Engine
	poller *access.Poller

	logger      *slog.Logger
	eventLogger log.Logger
	fileLogger  *log.FileLogger

	started bool
}

// New creates a Service with the transport the configuration selects.
func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var tr transport.Transport
	switch cfg.Transport.Kind {
	case "", TransportLoopback:
		tr = transport.NewLoopback()
	case TransportXDMA:
		tr = transport.NewXDMA(transport.XDMAConfig{
			DeviceIndex: cfg.Transport.DeviceIndex,
			WindowSize:  cfg.Transport.WindowSize,
		})
	}
	return NewWithTransport(cfg, tr)
}

// NewWithTransport creates a Service over a caller-supplied transport.
func NewWithTransport(cfg Config, tr transport.Transport) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		config:    cfg,
		sessionID: uuid.NewString(),
		tr:        tr,
		logger:    cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// SessionID returns the session identifier stamped on every event this
// service emits.
func (s *Service) SessionID() string { return s.sessionID }

// Start loads the register map, attaches the access engine, opens the
// transport and launches the poller. Call Stop to undo.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	loader := &regmap.Loader{Logger: s.logger}
	m, err := loader.LoadWithPolicy(s.config.MapFile, s.config.PolicyFile)
	if err != nil {
		return fmt.Errorf("load register map: %w", err)
	}

	if err := s.setupEventLogger(); err != nil {
		return err
	}

	defaultPolicy := access.PolicyStatic
	if s.config.DefaultPolicy != "" {
		defaultPolicy, err = access.ParsePolicy(s.config.DefaultPolicy)
		if err != nil {
			return err
		}
	}

	engine := access.New(s.tr, access.Config{
		DefaultPolicy:       defaultPolicy,
		DefaultPollInterval: time.Duration(s.config.PollRateMS) * time.Millisecond,
		SessionID:           s.sessionID,
		Logger:              s.eventLogger,
	})
	if err := engine.Attach(m); err != nil {
		s.teardownEventLogger()
		return fmt.Errorf("attach register map: %w", err)
	}

	if err := s.tr.Open(); err != nil {
		s.teardownEventLogger()
		return fmt.Errorf("open transport: %w", err)
	}
	s.logEvent(log.OpOpen, "")

	s.rmap = m
	s.engine = engine
	s.poller = access.NewPoller(engine)
	s.started = true

	if s.config.ReadOnOpen {
		if err := engine.ReadAll(); err != nil {
			// Individual registers may fail; the session stays usable.
			s.logger.Warn("initial register sweep incomplete", "error", err)
		}
	}

	s.poller.Start()
	s.logger.Info("service started",
		"session_id", s.sessionID,
		"map_file", s.config.MapFile,
		"registers", m.Len())
	return nil
}

// Stop halts the poller, closes the transport and releases the event
// log. The poller stops first so nothing touches the transport while
// it closes.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}

	s.poller.Stop()
	s.logEvent(log.OpClose, "")
	err := s.tr.Close()
	s.teardownEventLogger()
	s.started = false

	s.logger.Info("service stopped", "session_id", s.sessionID)
	if err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// Connected reports the transport connection state.
func (s *Service) Connected() bool { return s.tr.Connected() }

// Map returns the loaded register map, or nil before Start.
func (s *Service) Map() *regmap.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rmap
}

// Engine returns the access engine, or nil before Start.
func (s *Service) Engine() *access.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *Service) setupEventLogger() error {
	loggers := make([]log.Logger, 0, 2)
	if s.config.EventLogger != nil {
		loggers = append(loggers, s.config.EventLogger)
	}
	if s.config.LogFile != "" {
		fl, err := log.NewFileLogger(s.config.LogFile)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		s.fileLogger = fl
		loggers = append(loggers, fl)
	}

	switch len(loggers) {
	case 0:
		s.eventLogger = log.NoopLogger{}
	case 1:
		s.eventLogger = loggers[0]
	default:
		s.eventLogger = teeLogger(loggers)
	}
	return nil
}

func (s *Service) teardownEventLogger() {
	if s.fileLogger != nil {
		_ = s.fileLogger.Close()
		s.fileLogger = nil
	}
	s.eventLogger = nil
}

func (s *Service) logEvent(op log.Op, register string) {
	if s.eventLogger == nil {
		return
	}
	s.eventLogger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.sessionID,
		Op:        op,
		Register:  register,
		Connected: s.tr.Connected(),
	})
}

// teeLogger fans one event out to several loggers.
type teeLogger []log.Logger

func (t teeLogger) Log(event log.Event) {
	for _, l := range t {
		l.Log(event)
	}
}

// FieldInfo describes one bit field in query metadata.
type FieldInfo struct {
	Name       string `json:"name"`
	Permission string `json:"permission"`
	Mask       uint64 `json:"mask"`
	Value      uint64 `json:"value"`
}

// RegisterInfo is the metadata variant of a query result.
type RegisterInfo struct {
	Path         string        `json:"path"`
	Addr         uint64        `json:"addr"`
	Size         uint32        `json:"size"`
	Description  string        `json:"desc,omitempty"`
	Permission   string        `json:"permission"`
	Policy       string        `json:"policy"`
	PollInterval time.Duration `json:"poll_interval,omitempty"`
	Value        uint64        `json:"value"`
	LastRead     time.Time     `json:"last_read,omitzero"`
	Fields       []FieldInfo   `json:"fields,omitempty"`
}

// Get reads the register or field the path names. Without metadata the
// result is the uint64 value; with metadata it is a *RegisterInfo.
// Field paths always return the bare field value.
func (s *Service) Get(path string, includeMetadata bool) (any, error) {
	engine, m, err := s.session()
	if err != nil {
		return nil, err
	}

	r, field, err := resolveTarget(m, path)
	if err != nil {
		return nil, err
	}
	if field != "" {
		return engine.ReadField(r, field)
	}

	value, err := engine.Read(r)
	if err != nil {
		return nil, err
	}
	if !includeMetadata {
		return value, nil
	}

	st, err := engine.State(r)
	if err != nil {
		return nil, err
	}
	info := &RegisterInfo{
		Addr:        r.Addr,
		Size:        r.Size,
		Description: r.Description,
		Permission:  r.Permission,
		Policy:      st.Policy.String(),
		Value:       value,
		LastRead:    st.LastRead,
	}
	if st.Policy == access.PolicyPolled {
		info.PollInterval = st.PollInterval
	}
	if p, ok := m.PathOf(r); ok {
		info.Path = p
	}
	for _, f := range r.Fields {
		info.Fields = append(info.Fields, FieldInfo{
			Name:       f.Name,
			Permission: f.Permission,
			Mask:       f.Mask,
			Value:      (value & f.Mask) >> f.Shift(),
		})
	}
	return info, nil
}

// SetValue writes the register or field the path names.
func (s *Service) SetValue(path string, value uint64) error {
	engine, m, err := s.session()
	if err != nil {
		return err
	}

	r, field, err := resolveTarget(m, path)
	if err != nil {
		return err
	}
	if field != "" {
		return engine.WriteField(r, field, value)
	}
	return engine.Write(r, value)
}

func (s *Service) session() (*access.Engine, *regmap.Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.engine, s.rmap, nil
}

// resolveTarget maps a path to a register, and possibly a field of it.
// A path whose terminal segment is no register is retried with that
// segment as a bit field name of the register the prefix names.
func resolveTarget(m *regmap.Map, path string) (*regmap.Register, string, error) {
	regs, err := m.Resolve(path)
	if err == nil && len(regs) == 1 {
		return regs[0], "", nil
	}
	if err == nil && len(regs) > 1 {
		return nil, "", fmt.Errorf("%w: %q matches %d registers", ErrAmbiguousPath, path, len(regs))
	}

	idx := strings.LastIndex(path, "/")
	if idx > 0 && idx < len(path)-1 {
		prefix, fieldName := path[:idx], path[idx+1:]
		if regs, ferr := m.Resolve(prefix); ferr == nil {
			if len(regs) > 1 {
				return nil, "", fmt.Errorf("%w: %q matches %d registers", ErrAmbiguousPath, prefix, len(regs))
			}
			if len(regs) == 1 {
				if _, ok := regs[0].Field(fieldName); ok {
					return regs[0], fieldName, nil
				}
			}
		}
	}

	if err != nil {
		return nil, "", err
	}
	return nil, "", fmt.Errorf("%w: %q", regmap.ErrNotFound, path)
}
