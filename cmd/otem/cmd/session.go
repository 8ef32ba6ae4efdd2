package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceEM/internal/config"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/simhost"
)

// session bundles the per-command plumbing: loaded config, logger and a
// live invoker, either a socket connection or the in-process simulator.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	inv    remote.Invoker
	conn   *remote.Conn // nil in simulator mode
}

func sessionBase() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFromDir(configDir)
	if err != nil {
		return nil, nil, err
	}
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// openSession loads the config, builds the logger and connects to the
// host named by --host. The scenario only matters in simulator mode; nil
// selects the built-in default.
func openSession(scenario *simhost.Scenario) (*session, error) {
	if hostFlag == "sim" || hostFlag == "simulator" {
		return openSimSession(scenario)
	}
	cfg, logger, err := sessionBase()
	if err != nil {
		return nil, err
	}
	addr := hostFlag
	if addr == "" {
		addr = cfg.Host.Addr()
	} else if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, strconv.Itoa(cfg.Host.Port))
	}
	logger.Debug("dialing desktop host", "addr", addr)
	conn, err := remote.DialTimeout(addr, cfg.Host.Timeout.Dial, cfg.Host.Timeout.Call)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &session{cfg: cfg, logger: logger, inv: conn, conn: conn}, nil
}

// openSimSession is openSession pinned to the simulator regardless of
// --host.
func openSimSession(scenario *simhost.Scenario) (*session, error) {
	cfg, logger, err := sessionBase()
	if err != nil {
		return nil, err
	}
	logger.Debug("using built-in simulator")
	return &session{cfg: cfg, logger: logger, inv: simhost.New(scenario, logger)}, nil
}

// simulated reports whether the session runs against the in-process
// simulator.
func (s *session) simulated() bool {
	return s.conn == nil
}

func (s *session) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
