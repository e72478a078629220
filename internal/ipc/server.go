package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"clipforge/internal/daemon"
	"clipforge/internal/encoder"
	"clipforge/internal/library"
	"clipforge/internal/logging"
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
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Clipforge", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun clipforge stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func convertEncoder(p encoder.Profile) EncoderInfo {
	return EncoderInfo{
		Kind:      string(p.Kind),
		Name:      p.Name,
		Codec:     p.Codec,
		Device:    p.Device,
		Available: p.Available,
		Hardware:  p.Hardware(),
	}
}

func convertLibraryItem(rec library.Recording) LibraryItem {
	return LibraryItem{
		ID:              rec.ID,
		Title:           rec.Title,
		Path:            rec.Path,
		SizeBytes:       rec.SizeBytes,
		DurationSeconds: rec.DurationSeconds,
		Resolution:      rec.Resolution(),
		FPS:             rec.FPS,
		Codec:           rec.Codec,
		Container:       rec.Container,
		SourceType:      string(rec.SourceType),
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
	}
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.Recording = RecordingStatus{
		Status:         string(status.Recording.Status),
		SessionID:      status.Recording.SessionID,
		Encoder:        status.Recording.Encoder,
		ElapsedSeconds: int64(status.Recording.Elapsed / time.Second),
		Segments:       status.Recording.Segments,
	}
	resp.Replay = ReplayStatus{
		Active:          status.Replay.Active,
		Segments:        status.Replay.Segments,
		BufferedSeconds: status.Replay.BufferedSeconds,
		CapacitySeconds: status.Replay.CapacitySeconds,
	}
	resp.Encoders = make([]EncoderInfo, 0, len(status.Encoders))
	for _, p := range status.Encoders {
		resp.Encoders = append(resp.Encoders, convertEncoder(p))
	}
	resp.LibraryCount = status.LibraryCount
	resp.LibraryDBPath = status.LibraryDBPath
	resp.LockPath = status.LockFilePath
	resp.SocketPath = status.SocketPath
	resp.PID = status.PID
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) RecordStart(_ RecordStartRequest, resp *RecordStartResponse) error {
	s.log().Debug("recording start requested")
	id, err := s.daemon.StartRecording(s.ctx)
	if err != nil {
		resp.Code = CodeForError(err)
		resp.Message = err.Error()
		return nil
	}
	resp.SessionID = id
	return nil
}

func (s *service) RecordStop(_ RecordStopRequest, resp *RecordStopResponse) error {
	s.log().Debug("recording stop requested")
	path, err := s.daemon.StopRecording(s.ctx)
	if err != nil {
		resp.Code = CodeForError(err)
		resp.Message = err.Error()
		return nil
	}
	resp.Path = path
	return nil
}

func (s *service) RecordStatus(_ RecordStatusRequest, resp *RecordStatusResponse) error {
	status := s.daemon.RecordingStatus()
	resp.Recording = RecordingStatus{
		Status:         string(status.Status),
		SessionID:      status.SessionID,
		Encoder:        status.Encoder,
		ElapsedSeconds: int64(status.Elapsed / time.Second),
		Segments:       status.Segments,
	}
	return nil
}

func (s *service) ReplayToggle(_ ReplayToggleRequest, resp *ReplayToggleResponse) error {
	s.log().Debug("replay toggle requested")
	active, err := s.daemon.ToggleReplay(s.ctx)
	if err != nil {
		resp.Code = CodeForError(err)
		resp.Message = err.Error()
		return nil
	}
	resp.Active = active
	return nil
}

func (s *service) ReplaySave(req ReplaySaveRequest, resp *ReplaySaveResponse) error {
	s.log().Debug("replay save requested", logging.Int("seconds", req.Seconds))
	path, err := s.daemon.SaveReplay(s.ctx, time.Duration(req.Seconds)*time.Second)
	if err != nil {
		resp.Code = CodeForError(err)
		resp.Message = err.Error()
		return nil
	}
	resp.Path = path
	return nil
}

func (s *service) ReplayStatus(_ ReplayStatusRequest, resp *ReplayStatusResponse) error {
	status := s.daemon.ReplayStatus()
	resp.Replay = ReplayStatus{
		Active:          status.Active,
		Segments:        status.Segments,
		BufferedSeconds: status.BufferedSeconds,
		CapacitySeconds: status.CapacitySeconds,
	}
	return nil
}

func (s *service) Encoders(req EncodersRequest, resp *EncodersResponse) error {
	profiles := s.daemon.Encoders(s.ctx, req.Probe)
	resp.Encoders = make([]EncoderInfo, 0, len(profiles))
	for _, p := range profiles {
		resp.Encoders = append(resp.Encoders, convertEncoder(p))
	}
	return nil
}

func (s *service) LibraryList(req LibraryListRequest, resp *LibraryListResponse) error {
	var (
		items []library.Recording
		err   error
	)
	if req.Query != "" {
		items, err = s.daemon.LibrarySearch(s.ctx, req.Query)
	} else {
		items, err = s.daemon.LibraryList(s.ctx, req.Limit)
	}
	if err != nil {
		return err
	}
	resp.Items = make([]LibraryItem, 0, len(items))
	for _, rec := range items {
		resp.Items = append(resp.Items, convertLibraryItem(rec))
	}
	return nil
}

func (s *service) LibraryRemove(req LibraryRemoveRequest, resp *LibraryRemoveResponse) error {
	if req.ID == "" {
		return errors.New("library remove requires an id")
	}
	rec, err := s.daemon.LibraryRemove(s.ctx, req.ID, req.DeleteFile)
	if err != nil {
		resp.Code = CodeForError(err)
		resp.Message = err.Error()
		return nil
	}
	resp.Removed = convertLibraryItem(rec)
	s.log().Info("library entry removed",
		logging.String("id", req.ID),
		logging.String(logging.FieldEventType, "library_remove"))
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
