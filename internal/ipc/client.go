package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"autoxdcc/internal/api"
	"autoxdcc/internal/transport"
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

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Offer reports a DCC send offer.
func (c *Client) Offer(ev transport.Offer) (*EventResponse, error) {
	return call[EventResponse](c, "Offer", ev)
}

// Connect reports an established transfer connection.
func (c *Client) Connect(ev transport.Connect) (*EventResponse, error) {
	return call[EventResponse](c, "Connect", ev)
}

// Complete reports a finished receive.
func (c *Client) Complete(ev transport.Complete) (*EventResponse, error) {
	return call[EventResponse](c, "Complete", ev)
}

// Failed reports an aborted receive.
func (c *Client) Failed(ev transport.Failed) (*EventResponse, error) {
	return call[EventResponse](c, "Failed", ev)
}

// Stalled reports a transfer that stopped making progress.
func (c *Client) Stalled(ev transport.Stalled) (*EventResponse, error) {
	return call[EventResponse](c, "Stalled", ev)
}

// Commands collects up to max pending chat commands, waiting at most wait
// for the first one.
func (c *Client) Commands(max int, wait time.Duration) (*CommandsResponse, error) {
	return call[CommandsResponse](c, "Commands", CommandsRequest{Max: max, WaitMillis: int(wait / time.Millisecond)})
}

// ShowList lists active or archived shows, optionally filtered by query.
func (c *Client) ShowList(archived bool, query string) (*ShowListResponse, error) {
	return call[ShowListResponse](c, "ShowList", ShowListRequest{Archived: archived, Query: query})
}

// ShowAdd registers a show.
func (c *Client) ShowAdd(req api.ShowRequest) (*ShowResponse, error) {
	return call[ShowResponse](c, "ShowAdd", req)
}

// ShowUpdate changes an existing show.
func (c *Client) ShowUpdate(req api.ShowRequest) (*ShowResponse, error) {
	return call[ShowResponse](c, "ShowUpdate", req)
}

// ShowRemove deletes a show.
func (c *Client) ShowRemove(name string) (*ShowResponse, error) {
	return call[ShowResponse](c, "ShowRemove", ShowRequest{Name: name})
}

// ShowArchive moves a show to the archive.
func (c *Client) ShowArchive(name string) (*ShowResponse, error) {
	return call[ShowResponse](c, "ShowArchive", ShowRequest{Name: name})
}

// ShowRestore brings a show back from the archive.
func (c *Client) ShowRestore(name string) (*ShowResponse, error) {
	return call[ShowResponse](c, "ShowRestore", ShowRequest{Name: name})
}

// PacklistReset rewinds a packlist cursor to zero.
func (c *Client) PacklistReset(name string) (*PacklistResponse, error) {
	return call[PacklistResponse](c, "PacklistReset", PacklistRequest{Name: name})
}

// PacklistRun schedules a single packlist check.
func (c *Client) PacklistRun(name string) (*PacklistResponse, error) {
	return call[PacklistResponse](c, "PacklistRun", PacklistRequest{Name: name})
}

// PacklistTimer disables or re-enables a packlist refresh timer.
func (c *Client) PacklistTimer(req PacklistTimerRequest) (*PacklistTimerResponse, error) {
	return call[PacklistTimerResponse](c, "PacklistTimer", req)
}

// BotList lists the trusted bots of a packlist.
func (c *Client) BotList(packlist string) (*BotResponse, error) {
	return call[BotResponse](c, "BotList", BotRequest{Packlist: packlist})
}

// BotAdd trusts nick for a packlist.
func (c *Client) BotAdd(packlist, nick string) (*BotResponse, error) {
	return call[BotResponse](c, "BotAdd", BotRequest{Packlist: packlist, Nick: nick})
}

// BotRemove stops trusting nick for a packlist.
func (c *Client) BotRemove(packlist, nick string) (*BotResponse, error) {
	return call[BotResponse](c, "BotRemove", BotRequest{Packlist: packlist, Nick: nick})
}

// BotGet asks bot for a single pack.
func (c *Client) BotGet(bot string, pack int) (*BotGetResponse, error) {
	return call[BotGetResponse](c, "BotGet", BotGetRequest{Bot: bot, Pack: pack})
}

// DownloadClear drops the in-flight set.
func (c *Client) DownloadClear() (*DownloadClearResponse, error) {
	return call[DownloadClearResponse](c, "DownloadClear", DownloadClearRequest{})
}

// DownloadHistory reads transfer history.
func (c *Client) DownloadHistory(packlist string, limit int) (*DownloadHistoryResponse, error) {
	return call[DownloadHistoryResponse](c, "DownloadHistory", DownloadHistoryRequest{Packlist: packlist, Limit: limit})
}

// LogTail reads lines from the daemon log.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
