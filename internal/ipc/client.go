package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Clipforge.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Clipforge.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordStart begins a manual recording.
func (c *Client) RecordStart() (*RecordStartResponse, error) {
	var resp RecordStartResponse
	if err := c.client.Call("Clipforge.RecordStart", RecordStartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordStop ends the recording and returns the finished file path.
func (c *Client) RecordStop() (*RecordStopResponse, error) {
	var resp RecordStopResponse
	if err := c.client.Call("Clipforge.RecordStop", RecordStopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordStatus returns the recording state machine snapshot.
func (c *Client) RecordStatus() (*RecordStatusResponse, error) {
	var resp RecordStatusResponse
	if err := c.client.Call("Clipforge.RecordStatus", RecordStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReplayToggle flips the instant-replay buffer.
func (c *Client) ReplayToggle() (*ReplayToggleResponse, error) {
	var resp ReplayToggleResponse
	if err := c.client.Call("Clipforge.ReplayToggle", ReplayToggleRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReplaySave writes the trailing replay window to a clip.
func (c *Client) ReplaySave(seconds int) (*ReplaySaveResponse, error) {
	var resp ReplaySaveResponse
	if err := c.client.Call("Clipforge.ReplaySave", ReplaySaveRequest{Seconds: seconds}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReplayStatus returns the replay buffer snapshot.
func (c *Client) ReplayStatus() (*ReplayStatusResponse, error) {
	var resp ReplayStatusResponse
	if err := c.client.Call("Clipforge.ReplayStatus", ReplayStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Encoders returns encoder profiles, optionally re-probing.
func (c *Client) Encoders(probe bool) (*EncodersResponse, error) {
	var resp EncodersResponse
	if err := c.client.Call("Clipforge.Encoders", EncodersRequest{Probe: probe}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LibraryList returns library entries, optionally filtered by a search
// query.
func (c *Client) LibraryList(limit int, query string) (*LibraryListResponse, error) {
	var resp LibraryListResponse
	req := LibraryListRequest{Limit: limit, Query: query}
	if err := c.client.Call("Clipforge.LibraryList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LibraryRemove deletes a library entry and optionally its file.
func (c *Client) LibraryRemove(id string, deleteFile bool) (*LibraryRemoveResponse, error) {
	var resp LibraryRemoveResponse
	req := LibraryRemoveRequest{ID: id, DeleteFile: deleteFile}
	if err := c.client.Call("Clipforge.LibraryRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Clipforge.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
