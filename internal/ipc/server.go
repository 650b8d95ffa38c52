package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"autoxdcc/internal/api"
	"autoxdcc/internal/daemon"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/logs"
	"autoxdcc/internal/transport"
)

const (
	defaultCommandBatch = 50
	maxCommandWait      = 30 * time.Second
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

// Close stops the server, drops open connections and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.connMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun axdcc stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.DaemonStatus = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Offer(req transport.Offer, resp *EventResponse) error {
	result, err := s.daemon.Workflow().HandleOffer(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = fromEventResult(result)
	return nil
}

func (s *service) Connect(req transport.Connect, resp *EventResponse) error {
	result, err := s.daemon.Workflow().HandleConnect(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = fromEventResult(result)
	return nil
}

func (s *service) Complete(req transport.Complete, resp *EventResponse) error {
	result, err := s.daemon.Workflow().HandleComplete(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = fromEventResult(result)
	return nil
}

func (s *service) Failed(req transport.Failed, resp *EventResponse) error {
	result, err := s.daemon.Workflow().HandleFailed(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = fromEventResult(result)
	return nil
}

func (s *service) Stalled(req transport.Stalled, resp *EventResponse) error {
	result, err := s.daemon.Workflow().HandleStalled(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = fromEventResult(result)
	return nil
}

func (s *service) Commands(req CommandsRequest, resp *CommandsResponse) error {
	limit := req.Max
	if limit <= 0 {
		limit = defaultCommandBatch
	}
	wait := min(time.Duration(req.WaitMillis)*time.Millisecond, maxCommandWait)
	cmds, err := s.daemon.Commands(s.ctx, limit, wait)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Commands = cmds
	if resp.Commands == nil {
		resp.Commands = []transport.Command{}
	}
	return nil
}

func (s *service) ShowList(req ShowListRequest, resp *ShowListResponse) error {
	shows, err := s.daemon.Shows().List(s.ctx, req.Archived, req.Query)
	if err != nil {
		return err
	}
	resp.Shows = shows
	return nil
}

func (s *service) ShowAdd(req api.ShowRequest, resp *ShowResponse) error {
	change, err := s.daemon.Shows().Add(s.ctx, req)
	if err != nil {
		return err
	}
	resp.ShowChange = change
	s.logger.Info("show added",
		logging.String(logging.FieldEventType, "show_added"),
		logging.String("show", change.Show.Name))
	return nil
}

func (s *service) ShowUpdate(req api.ShowRequest, resp *ShowResponse) error {
	change, err := s.daemon.Shows().Update(s.ctx, req)
	if err != nil {
		return err
	}
	resp.ShowChange = change
	s.logger.Info("show updated",
		logging.String(logging.FieldEventType, "show_updated"),
		logging.String("show", change.Show.Name),
		logging.Int("changes", len(change.Changes)))
	return nil
}

func (s *service) ShowRemove(req ShowRequest, resp *ShowResponse) error {
	change, err := s.daemon.Shows().Remove(s.ctx, req.Name)
	if err != nil {
		return err
	}
	resp.ShowChange = change
	s.logger.Info("show removed",
		logging.String(logging.FieldEventType, "show_removed"),
		logging.String("show", change.Show.Name))
	return nil
}

func (s *service) ShowArchive(req ShowRequest, resp *ShowResponse) error {
	change, err := s.daemon.Shows().Archive(s.ctx, req.Name)
	if err != nil {
		return err
	}
	resp.ShowChange = change
	s.logger.Info("show archived",
		logging.String(logging.FieldEventType, "show_archived"),
		logging.String("show", change.Show.Name))
	return nil
}

func (s *service) ShowRestore(req ShowRequest, resp *ShowResponse) error {
	change, err := s.daemon.Shows().Restore(s.ctx, req.Name)
	if err != nil {
		return err
	}
	resp.ShowChange = change
	s.logger.Info("show restored",
		logging.String(logging.FieldEventType, "show_restored"),
		logging.String("show", change.Show.Name))
	return nil
}

func (s *service) PacklistReset(req PacklistRequest, resp *PacklistResponse) error {
	if err := s.daemon.Workflow().ResetPacklist(s.ctx, req.Name); err != nil {
		return err
	}
	resp.Name = req.Name
	resp.Message = "packlist reset to pack 0"
	return nil
}

func (s *service) PacklistRun(req PacklistRequest, resp *PacklistResponse) error {
	if err := s.daemon.Workflow().RunPacklist(req.Name); err != nil {
		return err
	}
	resp.Name = req.Name
	resp.Message = "packlist check scheduled"
	return nil
}

func (s *service) PacklistTimer(req PacklistTimerRequest, resp *PacklistTimerResponse) error {
	if req.IntervalSeconds < 0 {
		return fmt.Errorf("invalid interval %d", req.IntervalSeconds)
	}
	interval, err := s.daemon.Workflow().SetRefresh(req.Name, time.Duration(req.IntervalSeconds)*time.Second, req.Off)
	if err != nil {
		return err
	}
	resp.Name = req.Name
	resp.IntervalSeconds = int(interval / time.Second)
	return nil
}

func (s *service) BotList(req BotRequest, resp *BotResponse) error {
	bots, err := s.daemon.Workflow().TrustedBots(req.Packlist)
	if err != nil {
		return err
	}
	resp.Packlist = req.Packlist
	resp.Bots = bots
	return nil
}

func (s *service) BotAdd(req BotRequest, resp *BotResponse) error {
	return s.setBotTrust(req, true, resp)
}

func (s *service) BotRemove(req BotRequest, resp *BotResponse) error {
	return s.setBotTrust(req, false, resp)
}

func (s *service) setBotTrust(req BotRequest, trusted bool, resp *BotResponse) error {
	changed, err := s.daemon.Workflow().SetBotTrust(s.ctx, req.Packlist, req.Nick, trusted)
	if err != nil {
		return err
	}
	if err := s.BotList(req, resp); err != nil {
		return err
	}
	resp.Changed = changed
	return nil
}

func (s *service) BotGet(req BotGetRequest, resp *BotGetResponse) error {
	if err := s.daemon.Workflow().RequestPack(s.ctx, req.Bot, req.Pack); err != nil {
		return err
	}
	resp.Message = fmt.Sprintf("requested pack %d from %s", req.Pack, req.Bot)
	return nil
}

func (s *service) DownloadClear(_ DownloadClearRequest, resp *DownloadClearResponse) error {
	resp.Cleared = s.daemon.Workflow().ClearDownloadQueue()
	return nil
}

func (s *service) DownloadHistory(req DownloadHistoryRequest, resp *DownloadHistoryResponse) error {
	rows, err := s.daemon.History().History(s.ctx, req.Packlist, req.Limit)
	if err != nil {
		return err
	}
	resp.Downloads = rows
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	wait := min(time.Duration(req.WaitMillis)*time.Millisecond, maxCommandWait)
	result, err := logs.Tail(s.ctx, s.daemon.LogPath(), logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
		Match:  req.Match,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Lines = result.Lines
	if resp.Lines == nil {
		resp.Lines = []string{}
	}
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
